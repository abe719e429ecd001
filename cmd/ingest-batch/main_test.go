package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vendorquery-backend/internal/batches"
	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/uploads"
)

func TestLoadFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{"b.xlsx": "bb", "a.xlsx": "a", "notes.txt": "n"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := loadFiles(dir, "s3://bucket/prereq.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	if files[0].Name != "a.xlsx" || files[1].Name != "b.xlsx" || files[2].Name != "notes.txt" {
		t.Fatalf("files not in name order: %s %s %s", files[0].Name, files[1].Name, files[2].Name)
	}
	if files[0].ContentType != uploads.XLSXContentType || files[1].DeclaredSize != 2 {
		t.Fatalf("unexpected file metadata %+v", files[1])
	}
	if files[2].PrerequisiteURI != "s3://bucket/prereq.json" {
		t.Fatalf("prerequisite not carried")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, batches.Summary{BatchID: "b1", Total: 2, Complete: 1, Error: 1, Done: true}, []jobs.Job{
		{SourceFileName: "a.xlsx", ProcessingReference: "PRF-2026-AAAAAAAA", Status: jobs.StatusComplete, QueryCount: 4, ResultBlobLocation: "s3://bucket/results/a.json"},
		{SourceFileName: "b.xlsx", ProcessingReference: "PRF-2026-BBBBBBBB", Status: jobs.StatusError, LastError: "upload: transfer: status 403"},
	})

	out := buf.String()
	for _, want := range []string{"batch b1: 2 total, 1 complete, 1 error, done=true", "s3://bucket/results/a.json", "upload: transfer: status 403"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "OBJECT_STORE", "UPLOAD_TIMEOUT", "MAX_BATCH_FILES", "PUBLIC_BASE_URL", "PRESIGN_EXPIRY",
		"MAX_FILE_BYTES", "JOB_HEARTBEAT_INTERVAL", "RECONCILE_STALE_AFTER", "RECONCILE_ON_START"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %s", cfg.ObjectStoreType)
	}
	if cfg.UploadTimeout != 0 || cfg.MaxBatchFiles != 0 {
		t.Fatalf("expected unbounded defaults, got timeout=%s max=%d", cfg.UploadTimeout, cfg.MaxBatchFiles)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected public base url %s", cfg.PublicBaseURL)
	}
	if cfg.PresignExpiry != 15*time.Minute {
		t.Fatalf("unexpected presign expiry %s", cfg.PresignExpiry)
	}
	if cfg.MaxFileBytes != 64<<20 {
		t.Fatalf("unexpected per-file limit %d", cfg.MaxFileBytes)
	}
	if !cfg.ReconcileOnStart || cfg.HeartbeatInterval != 30*time.Second || cfg.ReconcileStaleAfter != 5*time.Minute {
		t.Fatalf("unexpected reconcile defaults on=%t heartbeat=%s stale=%s", cfg.ReconcileOnStart, cfg.HeartbeatInterval, cfg.ReconcileStaleAfter)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OBJECT_STORE", "MinIO")
	t.Setenv("UPLOAD_TIMEOUT", "45")
	t.Setenv("GENERATION_TIMEOUT", "2m")
	t.Setenv("MAX_BATCH_FILES", "25")
	t.Setenv("PIPELINE_CONCURRENCY", "-3")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MAX_FILE_BYTES", "1048576")
	t.Setenv("JOB_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("RECONCILE_STALE_AFTER", "90s")
	t.Setenv("RECONCILE_ON_START", "false")

	cfg := Load()
	if cfg.ObjectStoreType != "minio" {
		t.Fatalf("expected minio, got %s", cfg.ObjectStoreType)
	}
	if cfg.UploadTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.UploadTimeout)
	}
	if cfg.GenerationTimeout != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", cfg.GenerationTimeout)
	}
	if cfg.MaxBatchFiles != 25 {
		t.Fatalf("expected 25, got %d", cfg.MaxBatchFiles)
	}
	if cfg.PipelineConcurrency != 0 {
		t.Fatalf("negative concurrency should fall back to 0, got %d", cfg.PipelineConcurrency)
	}
	if !cfg.MinIOUseSSL {
		t.Fatalf("expected ssl enabled")
	}
	if cfg.MaxFileBytes != 1<<20 {
		t.Fatalf("expected 1MiB per-file limit, got %d", cfg.MaxFileBytes)
	}
	if cfg.ReconcileOnStart || cfg.HeartbeatInterval != 10*time.Second || cfg.ReconcileStaleAfter != 90*time.Second {
		t.Fatalf("unexpected reconcile overrides on=%t heartbeat=%s stale=%s", cfg.ReconcileOnStart, cfg.HeartbeatInterval, cfg.ReconcileStaleAfter)
	}
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line    string
		key     string
		val     string
		wantSet bool
	}{
		{line: "PORT=9000", key: "PORT", val: "9000", wantSet: true},
		{line: "export S3_BUCKET = vendor-queries ", key: "S3_BUCKET", val: "vendor-queries", wantSet: true},
		{line: `EXTRACTION_URL="http://extract:8000/run"`, key: "EXTRACTION_URL", val: "http://extract:8000/run", wantSet: true},
		{line: "BLOB_SIGNING_KEY='a #b'", key: "BLOB_SIGNING_KEY", val: "a #b", wantSet: true},
		{line: "MAX_BATCH_FILES=20 # per batch", key: "MAX_BATCH_FILES", val: "20", wantSet: true},
		{line: "# comment"},
		{line: "NOVALUE"},
		{line: "=orphan"},
	}
	for _, tt := range tests {
		key, val, ok := parseEnvLine(tt.line)
		if ok != tt.wantSet || key != tt.key || val != tt.val {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tt.line, key, val, ok)
		}
	}
}

func TestLoadEnvFilesKeepsProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VQ_TEST_FROM_FILE=file\nVQ_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VQ_TEST_PRESET", "process")
	t.Setenv("VQ_TEST_FROM_FILE", "")
	os.Unsetenv("VQ_TEST_FROM_FILE")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("VQ_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := os.Getenv("VQ_TEST_PRESET"); got != "process" {
		t.Fatalf("process env must win, got %q", got)
	}
}

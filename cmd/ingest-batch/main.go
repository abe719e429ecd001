package main

// Submit every file in a directory as one batch and wait for it to finish:
//   go run ./cmd/ingest-batch -dir ./vendor-queries -wait 10m

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"vendorquery-backend/internal/batches"
	"vendorquery-backend/internal/bootstrap"
	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/shared/config"
	"vendorquery-backend/internal/uploads"
)

func main() {
	dir := flag.String("dir", "", "directory of files to submit as one batch")
	wait := flag.Duration("wait", 10*time.Minute, "maximum time to wait for the batch to finish")
	prerequisite := flag.String("prerequisite", "", "optional prerequisite URI passed to the processing services")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	files, err := loadFiles(*dir, *prerequisite)
	if err != nil {
		log.Fatalf("load files: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	// A one-shot run must not touch jobs owned by a running server.
	cfg.ReconcileOnStart = false
	summary, list, err := run(ctx, cfg, files, *wait)
	if err != nil && summary.BatchID == "" {
		log.Fatalf("ingest: %v", err)
	}
	printReport(os.Stdout, summary, list)
	if err != nil {
		log.Printf("batch %s did not finish: %v", summary.BatchID, err)
		os.Exit(1)
	}
	if summary.Error > 0 {
		os.Exit(1)
	}
}

// run submits files through the in-process pipeline. With the local object store the
// blob routes are served on a loopback listener so signed URLs resolve.
func run(ctx context.Context, cfg config.Config, files []uploads.File, wait time.Duration) (batches.Summary, []jobs.Job, error) {
	var ln net.Listener
	if cfg.ObjectStoreType == "local" {
		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return batches.Summary{}, nil, fmt.Errorf("listen: %w", err)
		}
		cfg.PublicBaseURL = "http://" + ln.Addr().String()
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		if ln != nil {
			ln.Close()
		}
		return batches.Summary{}, nil, err
	}
	if ln != nil {
		srv := &http.Server{Handler: app.Router, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("blob server: %v", err)
			}
		}()
		defer srv.Close()
	}
	if app.DB != nil {
		defer app.DB.Close()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := app.Supervisor.Shutdown(shutdownCtx); err != nil {
			log.Printf("supervisor shutdown: %v", err)
		}
	}()

	sub, err := app.Supervisor.Submit(ctx, files)
	for _, r := range sub.Rejected {
		log.Printf("rejected %s: %s", r.FileName, r.Reason)
	}
	if err != nil {
		return batches.Summary{}, nil, err
	}
	log.Printf("batch %s accepted with %d jobs", sub.BatchID, len(sub.Jobs))

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	summary, waitErr := app.Supervisor.Wait(waitCtx, sub.BatchID)

	list, err := app.Supervisor.JobsOf(context.WithoutCancel(ctx), sub.BatchID)
	if err != nil {
		return summary, nil, err
	}
	return summary, list, waitErr
}

// loadFiles reads the regular files of dir in name order.
func loadFiles(dir, prerequisite string) ([]uploads.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []uploads.File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, uploads.File{
			Name:            e.Name(),
			ContentType:     uploads.ContentTypeForName(e.Name()),
			DeclaredSize:    int64(len(data)),
			Data:            data,
			PrerequisiteURI: prerequisite,
		})
	}
	return files, nil
}

func printReport(w io.Writer, summary batches.Summary, list []jobs.Job) {
	fmt.Fprintf(w, "batch %s: %d total, %d complete, %d error, done=%t\n",
		summary.BatchID, summary.Total, summary.Complete, summary.Error, summary.Done)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tREFERENCE\tSTATUS\tQUERIES\tDETAIL")
	for _, job := range list {
		detail := job.ResultBlobLocation
		if job.Status == jobs.StatusError {
			detail = job.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", job.SourceFileName, job.ProcessingReference, job.Status, job.QueryCount, detail)
	}
	tw.Flush()
}

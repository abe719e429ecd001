package jobs

import (
	"context"
	"testing"
	"time"
)

func TestReconcileUnfinished(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepo()
	ctx := context.Background()
	created := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return created }

	seed := []struct {
		id     string
		ref    string
		status []Status
	}{
		{id: "up", ref: "PRF-2026-AAAAAAAA"},
		{id: "proc", ref: "PRF-2026-BBBBBBBB", status: []Status{StatusProcessing}},
		{id: "live", ref: "PRF-2026-DDDDDDDD", status: []Status{StatusProcessing}},
		{id: "done", ref: "PRF-2026-CCCCCCCC", status: []Status{StatusProcessing, StatusComplete}},
	}
	for _, s := range seed {
		job := Job{ID: s.id, BatchID: "b1", SourceFileName: "f.xlsx", ProcessingReference: s.ref, Status: StatusUploading, CreatedAt: created, UpdatedAt: created}
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create: %v", err)
		}
		for _, st := range s.status {
			upd := Update{}
			switch st {
			case StatusProcessing:
				upd.RawBlobLocation = "s3://b/raw/" + s.id
			case StatusComplete:
				upd.ResultBlobLocation = "s3://b/results/" + s.id
			}
			if _, err := repo.Transition(ctx, s.id, st, upd); err != nil {
				t.Fatalf("transition %s: %v", s.id, err)
			}
		}
	}

	now := created.Add(10 * time.Minute)
	if _, err := repo.Heartbeat(ctx, []string{"live", "done"}, now.Add(-time.Minute)); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	if n, err := ReconcileUnfinished(ctx, repo, 0, now); err != nil || n != 0 {
		t.Fatalf("disabled reconciliation must not touch jobs, got %d %v", n, err)
	}

	n, err := ReconcileUnfinished(ctx, repo, 5*time.Minute, now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reconciled jobs, got %d", n)
	}
	for _, id := range []string{"up", "proc"} {
		job, _ := repo.GetByID(ctx, id)
		if job.Status != StatusError || job.LastError != InterruptedReason {
			t.Fatalf("%s: unexpected state %s %q", id, job.Status, job.LastError)
		}
	}
	if job, _ := repo.GetByID(ctx, "live"); job.Status != StatusProcessing {
		t.Fatalf("heartbeating job must be untouched, got %s", job.Status)
	}
	if job, _ := repo.GetByID(ctx, "done"); job.Status != StatusComplete || !job.HeartbeatAt.Equal(created) {
		t.Fatalf("complete job must be untouched, got %s heartbeat=%s", job.Status, job.HeartbeatAt)
	}
	if n, _ := ReconcileUnfinished(ctx, repo, 5*time.Minute, now); n != 0 {
		t.Fatalf("second pass should be a no-op, got %d", n)
	}
}

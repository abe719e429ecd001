package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newJob(id, batchID, ref string, position int) Job {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	return Job{
		ID:                  id,
		BatchID:             batchID,
		Position:            position,
		SourceFileName:      id + ".xlsx",
		ProcessingReference: ref,
		Status:              StatusUploading,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestMemoryRepoRejectsDuplicateReference(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("job-1", "batch-1", "PRF-2026-AAAA", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, newJob("job-2", "batch-1", "PRF-2026-AAAA", 1))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "job-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rejected job to be absent, got %v", err)
	}
}

func TestMemoryRepoListByBatchKeepsSubmissionOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	for i, id := range []string{"job-c", "job-a", "job-b"} {
		if err := repo.Create(ctx, newJob(id, "batch-1", "REF-"+id, i)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := repo.Create(ctx, newJob("job-other", "batch-2", "REF-other", 0)); err != nil {
		t.Fatalf("create other: %v", err)
	}

	list, err := repo.ListByBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(list))
	}
	for i, want := range []string{"job-c", "job-a", "job-b"} {
		if list[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}
}

func TestMemoryRepoTransitionIsTerminal(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, newJob("job-1", "batch-1", "REF-1", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Transition(ctx, "job-1", StatusError, Update{LastError: "upload: transfer: boom"}); err != nil {
		t.Fatalf("to error: %v", err)
	}
	_, err := repo.Transition(ctx, "job-1", StatusProcessing, Update{RawBlobLocation: "local://x"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusError || got.LastError != "upload: transfer: boom" {
		t.Fatalf("unexpected job state: %+v", got)
	}

	unfinished, err := repo.ListUnfinished(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list unfinished: %v", err)
	}
	if len(unfinished) != 0 {
		t.Fatalf("expected no unfinished jobs, got %d", len(unfinished))
	}
}

func TestMemoryRepoConcurrentReadsSeeWholeStates(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, newJob("job-1", "batch-1", "REF-1", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 1)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				job, err := repo.GetByID(ctx, "job-1")
				if err != nil {
					continue
				}
				if (job.ResultBlobLocation != "") != (job.Status == StatusComplete) {
					select {
					case errs <- string(job.Status):
					default:
					}
				}
			}
		}()
	}

	if _, err := repo.Transition(ctx, "job-1", StatusProcessing, Update{RawBlobLocation: "local://raw"}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := repo.Transition(ctx, "job-1", StatusComplete, Update{ResultBlobLocation: "local://result", QueryCount: 1}); err != nil {
		t.Fatalf("to complete: %v", err)
	}
	close(stop)
	wg.Wait()

	select {
	case status := <-errs:
		t.Fatalf("observed torn job state with status %s", status)
	default:
	}
}

func TestMemoryRepoHeartbeatKeepsJobsFresh(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	for i, id := range []string{"job-1", "job-2"} {
		if err := repo.Create(ctx, newJob(id, "batch-1", "REF-"+id, i)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	created := newJob("x", "", "", 0).CreatedAt
	if job, _ := repo.GetByID(ctx, "job-1"); !job.HeartbeatAt.Equal(created) {
		t.Fatalf("heartbeat should start at creation, got %s", job.HeartbeatAt)
	}

	beat := created.Add(3 * time.Minute)
	n, err := repo.Heartbeat(ctx, []string{"job-1", "missing"}, beat)
	if err != nil || n != 1 {
		t.Fatalf("expected one refreshed job, got %d %v", n, err)
	}

	stale, err := repo.ListUnfinished(ctx, created.Add(time.Minute))
	if err != nil {
		t.Fatalf("list unfinished: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "job-2" {
		t.Fatalf("only the silent job should be stale, got %+v", stale)
	}
	if got, _ := repo.GetByID(ctx, "job-1"); !got.LastActivity().Equal(beat) {
		t.Fatalf("unexpected last activity %s", got.LastActivity())
	}
}

package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu         sync.RWMutex
	data       map[string]Job      // jobID -> job
	references map[string]struct{} // every reference ever issued
	now        func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data:       make(map[string]Job),
		references: make(map[string]struct{}),
		now:        time.Now,
	}
}

// Create stores a new job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[job.ID]; ok {
		return ErrDuplicateID
	}
	if _, ok := r.references[job.ProcessingReference]; ok {
		return ErrDuplicateReference
	}
	if job.HeartbeatAt.IsZero() {
		job.HeartbeatAt = job.CreatedAt
	}
	r.references[job.ProcessingReference] = struct{}{}
	r.data[job.ID] = job
	return nil
}

// GetByID returns a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.data[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByBatch returns the jobs of a batch oldest-first.
func (r *MemoryRepo) ListByBatch(ctx context.Context, batchID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0)
	for _, job := range r.data {
		if job.BatchID == batchID {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

// ListUnfinished returns non-terminal jobs with no activity since staleBefore.
func (r *MemoryRepo) ListUnfinished(ctx context.Context, staleBefore time.Time) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0)
	for _, job := range r.data {
		if !job.Status.Terminal() && job.LastActivity().Before(staleBefore) {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

// Heartbeat refreshes HeartbeatAt on the unfinished jobs among jobIDs.
func (r *MemoryRepo) Heartbeat(ctx context.Context, jobIDs []string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range jobIDs {
		job, ok := r.data[id]
		if !ok || job.Status.Terminal() {
			continue
		}
		job.HeartbeatAt = at.UTC()
		r.data[id] = job
		n++
	}
	return n, nil
}

// Transition moves a job to a new status under the repo lock.
func (r *MemoryRepo) Transition(ctx context.Context, jobID string, to Status, upd Update) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.data[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	next, err := Apply(job, to, upd, r.now())
	if err != nil {
		return job, err
	}
	r.data[jobID] = next
	return next, nil
}

func sortJobs(list []Job) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

var _ Repo = (*MemoryRepo)(nil)

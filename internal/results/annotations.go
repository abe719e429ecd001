package results

import (
	"context"
	"sync"
	"time"
)

// AnnotationRepo stores out-of-band edits keyed by job and query ID.
type AnnotationRepo interface {
	Upsert(ctx context.Context, a Annotation) (Annotation, error)
	ListByJob(ctx context.Context, jobID string) (map[string]Annotation, error)
}

// MemoryAnnotationRepo is an in-memory AnnotationRepo.
type MemoryAnnotationRepo struct {
	mu   sync.RWMutex
	data map[string]map[string]Annotation // jobID -> queryID -> annotation
	now  func() time.Time
}

// NewMemoryAnnotationRepo constructs a MemoryAnnotationRepo.
func NewMemoryAnnotationRepo() *MemoryAnnotationRepo {
	return &MemoryAnnotationRepo{
		data: make(map[string]map[string]Annotation),
		now:  time.Now,
	}
}

// Upsert merges the non-nil fields of a into the stored annotation.
func (r *MemoryAnnotationRepo) Upsert(ctx context.Context, a Annotation) (Annotation, error) {
	if err := ctx.Err(); err != nil {
		return Annotation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byQuery, ok := r.data[a.JobID]
	if !ok {
		byQuery = make(map[string]Annotation)
		r.data[a.JobID] = byQuery
	}
	merged := mergeAnnotation(byQuery[a.QueryID], a)
	merged.UpdatedAt = r.now().UTC()
	byQuery[a.QueryID] = merged
	return merged, nil
}

// ListByJob returns the annotations of a job keyed by query ID.
func (r *MemoryAnnotationRepo) ListByJob(ctx context.Context, jobID string) (map[string]Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Annotation, len(r.data[jobID]))
	for k, v := range r.data[jobID] {
		out[k] = v
	}
	return out, nil
}

func mergeAnnotation(existing, update Annotation) Annotation {
	out := existing
	out.JobID = update.JobID
	out.QueryID = update.QueryID
	if update.AnswerText != nil {
		out.AnswerText = update.AnswerText
	}
	if update.InterventionFlag != nil {
		out.InterventionFlag = update.InterventionFlag
	}
	if update.StatusMarker != nil {
		out.StatusMarker = update.StatusMarker
	}
	if update.InternalNote != nil {
		out.InternalNote = update.InternalNote
	}
	return out
}

package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrQueryNotFound = errors.New("query not found")

// Service exposes materialized records with annotations overlaid.
type Service struct {
	Materializer *Materializer
	Annotations  AnnotationRepo
}

// Records materializes jobID, overlays stored annotations and applies f.
func (s *Service) Records(ctx context.Context, jobID string, f Filter) ([]QueryRecord, error) {
	records, err := s.Materializer.Materialize(ctx, jobID)
	if err != nil {
		return nil, err
	}
	annotations, err := s.Annotations.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	return f.Apply(Overlay(records, annotations)), nil
}

// Annotate records an out-of-band edit for one query of a Complete job.
func (s *Service) Annotate(ctx context.Context, jobID, queryID string, a Annotation) (Annotation, error) {
	records, err := s.Materializer.Materialize(ctx, jobID)
	if err != nil {
		return Annotation{}, err
	}
	found := false
	for _, r := range records {
		if r.ID == queryID {
			found = true
			break
		}
	}
	if !found {
		return Annotation{}, fmt.Errorf("%w: %s", ErrQueryNotFound, queryID)
	}

	a.JobID = jobID
	a.QueryID = queryID
	if a.InternalNote != nil {
		note := strings.TrimSpace(*a.InternalNote)
		a.InternalNote = &note
	}
	return s.Annotations.Upsert(ctx, a)
}

package uploads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/shared/metrics"
	"vendorquery-backend/internal/shared/storage/object"
	"vendorquery-backend/internal/shared/telemetry"
	"vendorquery-backend/internal/shared/util"
)

// Transferer is the part of the blob client the orchestrator needs.
type Transferer interface {
	WriteDestination(ctx context.Context, storageKey, contentType string) (object.Destination, error)
	Transfer(ctx context.Context, dest object.Destination, contentType string, body []byte) error
	ResolveReadURI(ctx context.Context, storageKey string) (string, error)
}

// Service creates jobs for accepted files and drives each one through upload.
type Service struct {
	Jobs    jobs.Repo
	Blobs   Transferer
	Prefix  string
	Timeout time.Duration
	Now     func() time.Time
	NewID   func() string
}

// NewService constructs an upload orchestrator. A zero timeout leaves steps unbounded.
func NewService(repo jobs.Repo, blobs Transferer, prefix string, timeout time.Duration) *Service {
	return &Service{
		Jobs:    repo,
		Blobs:   blobs,
		Prefix:  prefix,
		Timeout: timeout,
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// CreateJobs creates one Uploading job per file, in order. On failure the jobs created so
// far are returned with the error.
func (s *Service) CreateJobs(ctx context.Context, batchID string, files []File) ([]jobs.Job, error) {
	now := s.now().UTC()
	created := make([]jobs.Job, 0, len(files))
	for i, f := range files {
		job := jobs.Job{
			ID:                  s.newID(),
			BatchID:             batchID,
			Position:            i,
			SourceFileName:      f.Name,
			ContentType:         normalizeContentType(f),
			SizeBytes:           int64(len(f.Data)),
			ProcessingReference: jobs.NewReference(now),
			Status:              jobs.StatusUploading,
			PrerequisiteURI:     f.PrerequisiteURI,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.Jobs.Create(ctx, job); err != nil {
			return created, fmt.Errorf("create job for %s: %w", f.Name, err)
		}
		metrics.IncJobsCreated()
		telemetry.Info("job.created", map[string]any{
			"job_id":               job.ID,
			"batch_id":             batchID,
			"processing_reference": job.ProcessingReference,
			"file_name":            f.Name,
			"size_bytes":           job.SizeBytes,
			"sha256":               util.ContentDigest(f.Data),
		})
		created = append(created, job)
	}
	return created, nil
}

// Upload stores the file's bytes and moves the job to Processing, or to Error naming the
// failed step. The returned job is the job's state after the transition.
func (s *Service) Upload(ctx context.Context, job jobs.Job, f File) (jobs.Job, error) {
	key, err := s.storageKey(job, f.Name)
	if err != nil {
		return s.fail(ctx, job, &StepError{Step: StepDestination, Err: err})
	}

	var dest object.Destination
	err = s.step(ctx, func(ctx context.Context) error {
		var err error
		dest, err = s.Blobs.WriteDestination(ctx, key, job.ContentType)
		return err
	})
	if err != nil {
		return s.fail(ctx, job, &StepError{Step: StepDestination, Err: err})
	}

	err = s.step(ctx, func(ctx context.Context) error {
		return s.Blobs.Transfer(ctx, dest, job.ContentType, f.Data)
	})
	if err != nil {
		return s.fail(ctx, job, &StepError{Step: StepTransfer, Err: err})
	}

	var uri string
	err = s.step(ctx, func(ctx context.Context) error {
		var err error
		uri, err = s.Blobs.ResolveReadURI(ctx, key)
		return err
	})
	if err != nil {
		return s.fail(ctx, job, &StepError{Step: StepResolve, Err: err})
	}

	next, err := s.Jobs.Transition(context.WithoutCancel(ctx), job.ID, jobs.StatusProcessing, jobs.Update{RawBlobLocation: uri})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) || errors.Is(err, jobs.ErrNotFound) {
			return job, err
		}
		return s.fail(ctx, job, fmt.Errorf("upload: record raw location: %w", err))
	}
	jobs.LogTransition(job.Status, next)
	return next, nil
}

func (s *Service) step(ctx context.Context, fn func(context.Context) error) error {
	if s.Timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return fn(stepCtx)
}

func (s *Service) fail(ctx context.Context, job jobs.Job, cause error) (jobs.Job, error) {
	next, err := s.Jobs.Transition(context.WithoutCancel(ctx), job.ID, jobs.StatusError, jobs.Update{
		LastError: util.SanitizeError(cause),
	})
	if err != nil {
		telemetry.Error("job.fail.update_failed", map[string]any{
			"job_id": job.ID,
			"err":    err.Error(),
			"cause":  util.SanitizeError(cause),
		})
		return job, fmt.Errorf("record upload failure: %w", err)
	}
	jobs.LogTransition(job.Status, next)
	return next, cause
}

func (s *Service) storageKey(job jobs.Job, fileName string) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(s.Prefix, "batches", job.BatchID, job.ID, s.newID()+"-"+sanitized), nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

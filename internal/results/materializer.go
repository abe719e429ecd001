package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vendorquery-backend/internal/jobs"
)

var (
	ErrNotComplete = errors.New("job is not complete")
	ErrArtifact    = errors.New("result artifact unavailable")
)

// Fetcher reads an artifact by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Materializer turns a Complete job's result artifact into query records. It never
// changes the job.
type Materializer struct {
	Jobs    jobs.Repo
	Blobs   Fetcher
	Timeout time.Duration
}

// NewMaterializer constructs a Materializer. A zero timeout leaves the fetch unbounded.
func NewMaterializer(repo jobs.Repo, blobs Fetcher, timeout time.Duration) *Materializer {
	return &Materializer{Jobs: repo, Blobs: blobs, Timeout: timeout}
}

// Materialize fetches and maps the artifact of jobID. It returns ErrNotComplete for jobs
// in any other state and an error wrapping ErrArtifact when the artifact cannot be
// fetched or parsed.
func (m *Materializer) Materialize(ctx context.Context, jobID string) ([]QueryRecord, error) {
	job, err := m.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != jobs.StatusComplete {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotComplete, job.ID, job.Status)
	}

	fetchCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	data, err := m.Blobs.Fetch(fetchCtx, job.ResultBlobLocation)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetch %s: timed out", ErrArtifact, job.ResultBlobLocation)
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrArtifact, job.ResultBlobLocation, err)
	}

	records, err := Map(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	return records, nil
}

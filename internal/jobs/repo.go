package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for processing jobs.
// Transition is the only mutation after Create; it validates the move against the
// stored status so concurrent writers cannot skip or reverse a state.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByBatch(ctx context.Context, batchID string) ([]Job, error)
	// ListUnfinished returns non-terminal jobs whose LastActivity is before staleBefore.
	ListUnfinished(ctx context.Context, staleBefore time.Time) ([]Job, error)
	// Heartbeat sets HeartbeatAt on the listed jobs that are still unfinished.
	Heartbeat(ctx context.Context, jobIDs []string, at time.Time) (int, error)
	Transition(ctx context.Context, jobID string, to Status, upd Update) (Job, error)
}

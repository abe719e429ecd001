package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vendorquery-backend/internal/shared/telemetry"
)

// InterruptedReason is recorded on jobs whose owning process stopped heartbeating.
const InterruptedReason = "interrupted: service restarted"

// ReconcileUnfinished moves Uploading or Processing jobs to Error when neither a transition
// nor a heartbeat has touched them for staleAfter. Jobs of live processes keep heartbeating
// and are left alone. A non-positive staleAfter disables reconciliation.
func ReconcileUnfinished(ctx context.Context, repo Repo, staleAfter time.Duration, now time.Time) (int, error) {
	if staleAfter <= 0 {
		return 0, nil
	}
	staleBefore := now.Add(-staleAfter)
	list, err := repo.ListUnfinished(ctx, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}
	n := 0
	for _, job := range list {
		current, err := repo.GetByID(ctx, job.ID)
		if err != nil {
			return n, fmt.Errorf("reload job %s: %w", job.ID, err)
		}
		if current.Status.Terminal() || !current.LastActivity().Before(staleBefore) {
			continue
		}
		next, err := repo.Transition(ctx, job.ID, StatusError, Update{LastError: InterruptedReason})
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return n, fmt.Errorf("reconcile job %s: %w", job.ID, err)
		}
		LogTransition(current.Status, next)
		n++
	}
	if n > 0 {
		telemetry.Warn("jobs.reconciled", map[string]any{
			"count":        n,
			"stale_after":  staleAfter.String(),
			"stale_before": staleBefore.UTC().Format(time.RFC3339),
		})
	}
	return n, nil
}

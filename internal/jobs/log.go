package jobs

import (
	"vendorquery-backend/internal/shared/telemetry"
)

// LogTransition writes the job.status line for a transition that just happened.
func LogTransition(from Status, job Job) {
	fields := map[string]any{
		"job_id":               job.ID,
		"batch_id":             job.BatchID,
		"processing_reference": job.ProcessingReference,
		"status":               job.Status,
		"status_transition":    TransitionLabel(from, job.Status),
		"duration_ms":          DurationMs(job),
	}
	if job.Status == StatusError {
		fields["last_error"] = job.LastError
		telemetry.Warn("job.status", fields)
		return
	}
	telemetry.Info("job.status", fields)
}

// DurationMs is the time between the job's creation and its last transition.
func DurationMs(job Job) float64 {
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		return 0
	}
	return float64(job.UpdatedAt.Sub(job.CreatedAt).Microseconds()) / 1000.0
}

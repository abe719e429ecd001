package batches

import (
	"time"

	"vendorquery-backend/internal/jobs"
)

// Summary aggregates the statuses of every job in a batch.
type Summary struct {
	BatchID     string     `json:"batchId"`
	Total       int        `json:"total"`
	Uploading   int        `json:"uploading"`
	Processing  int        `json:"processing"`
	Complete    int        `json:"complete"`
	Error       int        `json:"error"`
	Done        bool       `json:"done"`
	SubmittedAt time.Time  `json:"submittedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (s *Summary) add(status jobs.Status) {
	s.Total++
	switch status {
	case jobs.StatusUploading:
		s.Uploading++
	case jobs.StatusProcessing:
		s.Processing++
	case jobs.StatusComplete:
		s.Complete++
	case jobs.StatusError:
		s.Error++
	}
}

// summary must be called with the supervisor lock held.
func (b *batchState) summary() Summary {
	out := Summary{BatchID: b.id, SubmittedAt: b.submittedAt}
	for _, id := range b.order {
		out.add(b.statuses[id])
	}
	out.Done = b.fired
	if b.fired {
		completedAt := b.completedAt
		out.CompletedAt = &completedAt
	}
	return out
}

// summarize builds a summary from stored jobs, for batches this process does not track.
func summarize(batchID string, list []jobs.Job) Summary {
	out := Summary{BatchID: batchID}
	var last time.Time
	for i, job := range list {
		out.add(job.Status)
		if i == 0 || job.CreatedAt.Before(out.SubmittedAt) {
			out.SubmittedAt = job.CreatedAt
		}
		if job.UpdatedAt.After(last) {
			last = job.UpdatedAt
		}
	}
	out.Done = out.Total > 0 && out.Complete+out.Error == out.Total
	if out.Done {
		out.CompletedAt = &last
	}
	return out
}

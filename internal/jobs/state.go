package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Update carries the fields a transition sets alongside the new status.
type Update struct {
	RawBlobLocation    string
	ResultBlobLocation string
	QueryCount         int
	LastError          string
}

var allowedTransitions = map[Status][]Status{
	StatusUploading:  {StatusProcessing, StatusError},
	StatusProcessing: {StatusComplete, StatusError},
}

// CanTransition reports whether from -> to is an edge of the job state machine.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionLabel formats a transition for logs, e.g. "uploading->processing".
func TransitionLabel(from, to Status) string {
	return string(from) + "->" + string(to)
}

// Apply returns job moved to status to. The input is not modified.
// Fields that the target status requires must be present in upd.
func Apply(job Job, to Status, upd Update, now time.Time) (Job, error) {
	if !CanTransition(job.Status, to) {
		return job, fmt.Errorf("%w: %s", ErrInvalidTransition, TransitionLabel(job.Status, to))
	}

	next := job
	switch to {
	case StatusProcessing:
		loc := strings.TrimSpace(upd.RawBlobLocation)
		if loc == "" {
			return job, fmt.Errorf("%w: raw blob location required", ErrInvalidTransition)
		}
		next.RawBlobLocation = loc
	case StatusComplete:
		loc := strings.TrimSpace(upd.ResultBlobLocation)
		if loc == "" {
			return job, fmt.Errorf("%w: result blob location required", ErrInvalidTransition)
		}
		if upd.QueryCount < 0 {
			return job, fmt.Errorf("%w: negative query count", ErrInvalidTransition)
		}
		next.ResultBlobLocation = loc
		next.QueryCount = upd.QueryCount
	case StatusError:
		msg := strings.TrimSpace(upd.LastError)
		if msg == "" {
			msg = "unknown error"
		}
		next.LastError = msg
		next.ResultBlobLocation = ""
		next.QueryCount = 0
	}
	next.Status = to
	next.UpdatedAt = now.UTC()
	return next, nil
}

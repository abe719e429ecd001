package processing

import (
	"context"
	"errors"
)

var (
	ErrNotProcessing     = errors.New("job is not in processing state")
	ErrMalformedResponse = errors.New("malformed response")
)

// Stage names, used as the lastError prefix.
const (
	StageExtraction = "extraction"
	StageGeneration = "generation"
)

// StageError identifies which external call failed for a job.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return e.Stage + ": timed out"
	}
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

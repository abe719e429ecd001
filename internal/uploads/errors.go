package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrEmptyBatch    = errors.New("batch contains no files")
	ErrBatchTooLarge = errors.New("batch exceeds the maximum number of files")
)

// Rejection describes one submitted file that was refused before any job was created.
type Rejection struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// ValidationError is returned when no file in a batch is acceptable.
type ValidationError struct {
	Rejections []Rejection
}

func (e *ValidationError) Error() string {
	if len(e.Rejections) == 0 {
		return ErrValidation.Error()
	}
	reasons := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		reasons = append(reasons, fmt.Sprintf("%s: %s", r.FileName, r.Reason))
	}
	return ErrValidation.Error() + ": " + strings.Join(reasons, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Upload steps, named in lastError.
const (
	StepDestination = "destination request"
	StepTransfer    = "transfer"
	StepResolve     = "uri resolution"
)

// StepError identifies which upload step failed for a job.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "upload: " + e.Step + ": timed out"
	}
	return "upload: " + e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }

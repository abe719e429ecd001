package jobs

import "errors"

var (
	ErrNotFound           = errors.New("job not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDuplicateReference = errors.New("duplicate processing reference")
	ErrDuplicateID        = errors.New("duplicate job id")
)

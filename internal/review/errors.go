package review

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict matches every *ConflictError via errors.Is.
	ErrConflict = errors.New("conflict")
)

// InvalidInputError indicates a review event was rejected before any state
// was touched.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid review event: %s", e.Reason)
	}
	return fmt.Sprintf("invalid review event: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func (e *InvalidInputError) Unwrap() error { return e.Err }

// ConflictError indicates the schedule kept changing underneath the write
// and the retry budget ran out. The caller decides whether to resubmit.
type ConflictError struct {
	LearnerID string
	ItemID    string
	Attempts  int
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule %s/%s still conflicting after %d attempts: %v",
		e.LearnerID, e.ItemID, e.Attempts, e.Err)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrTimeout          = errors.New("stage timeout")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// TimeoutError marks a stage-scoped deadline failure so callers can apply
// stage-specific fallback instead of aborting the pipeline.
type TimeoutError struct {
	Stage string
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: timeout", e.Stage)
	}
	return fmt.Sprintf("%s: timeout: %v", e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func NewTimeoutError(stage string, err error) *TimeoutError {
	return &TimeoutError{Stage: stage, Err: err}
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

package task

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing task field. It is raised
// before any store write and the caller is expected to re-prompt.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OperationError reports a failed store operation. The core never retries it.
type OperationError struct {
	Op  string // create, update, delete, subscribe
	ID  string // task or owner id, empty for create
	Err error
}

func (e *OperationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s task: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s: %v", e.Op, e.ID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// SchedulingInconsistency reports that a task was no longer eligible for
// archival when a sweep or timer reached it. It is logged, never surfaced.
type SchedulingInconsistency struct {
	TaskID string
	Reason error
}

func (e *SchedulingInconsistency) Error() string {
	return fmt.Sprintf("task %s not eligible for archival: %v", e.TaskID, e.Reason)
}

func (e *SchedulingInconsistency) Unwrap() error { return e.Reason }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsOperation reports whether err is or wraps an *OperationError.
func IsOperation(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe)
}

// IsSchedulingInconsistency reports whether err is or wraps a *SchedulingInconsistency.
func IsSchedulingInconsistency(err error) bool {
	var se *SchedulingInconsistency
	return errors.As(err, &se)
}

// Op wraps err as an *OperationError. A nil err stays nil and an error that is
// already an *OperationError is returned unchanged.
func Op(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return err
	}
	return &OperationError{Op: op, ID: id, Err: err}
}

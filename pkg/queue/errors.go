package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueUnavailable is returned when the queue is closed or cannot be
	// reached.
	ErrQueueUnavailable = errors.New("task queue unavailable")

	// ErrDuplicate is returned when a unique task with the same key is
	// already pending.
	ErrDuplicate = errors.New("task already queued")

	// ErrEmpty is returned by Next when no task is pending.
	ErrEmpty = errors.New("no pending task")

	// ErrTaskNotFound is returned for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
)

// QueueError represents an error from a queue backend.
type QueueError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	return fmt.Sprintf("queue error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueueError) Unwrap() error {
	return e.Cause
}

// NewQueueError creates a new QueueError.
func NewQueueError(backend, operation string, cause error) *QueueError {
	return &QueueError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

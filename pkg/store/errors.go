package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record, user or stub does not exist.
	ErrNotFound = errors.New("not found")

	// ErrParentNotFound is returned when a record is put under a missing parent.
	ErrParentNotFound = errors.New("parent not found")

	// ErrDuplicateArchiveItem is returned when a record already has a stub.
	ErrDuplicateArchiveItem = errors.New("archive item already exists for record")
)

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Storage backend ("memory", "sqlite", "postgres")
	Operation string // Operation that failed ("get", "put", "delete", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. Entity-specific variants below wrap it so callers can match
	// either the generic or the specific error.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTerminalState is returned when an operation would move a task out
	// of a terminal state (PROCESSED or DROPPED).
	ErrTerminalState = errors.New("task is in a terminal state")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrRecordNotFound indicates that the requested processed record does
	// not exist for the task.
	ErrRecordNotFound = fmt.Errorf("%w: record", ErrNotFound)

	// ErrHarvestedRecordNotFound indicates that the requested harvested
	// record does not exist in the dataset.
	ErrHarvestedRecordNotFound = fmt.Errorf("%w: harvested record", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

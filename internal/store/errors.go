package store

import (
	"errors"
	"fmt"
)

// Common store error types that abstract away database-specific errors.
var (
	// ErrNotFound indicates that a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("user: %w", ErrNotFound)

	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("task: %w", ErrNotFound)

	// ErrLedgerEntryNotFound indicates the requested ledger entry does not exist.
	ErrLedgerEntryNotFound = fmt.Errorf("ledger entry: %w", ErrNotFound)

	// ErrEmailExists indicates an attempt to create a user with an email
	// address that is already registered.
	ErrEmailExists = errors.New("email already exists")

	// ErrDuplicateEntry indicates a unique constraint violation, such as a
	// second ledger debit for the same task.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrNotClaimed indicates a conditional status update matched no row,
	// meaning another worker already claimed the task or its status changed.
	ErrNotClaimed = errors.New("task not claimed")

	// ErrStatusConflict indicates a terminal status write matched no row
	// because the task left processing first. Whoever moved it owns the
	// outcome; the loser must not touch billing or retry state.
	ErrStatusConflict = errors.New("task no longer in processing")

	// ErrTransactionFailed indicates a failure during transaction management
	// itself (begin, commit, rollback) rather than the operations inside it.
	ErrTransactionFailed = errors.New("transaction failed")
)

// StoreError wraps an underlying database error with additional context while
// preserving the original error for inspection via errors.Is / errors.As.
type StoreError struct {
	msg string
	err error
}

// NewStoreError creates a StoreError with a formatted message wrapping err.
func NewStoreError(err error, format string, args ...any) *StoreError {
	return &StoreError{
		msg: fmt.Sprintf(format, args...),
		err: err,
	}
}

func (e *StoreError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// IsNotFoundError reports whether err indicates a missing entity,
// regardless of which entity-specific sentinel wrapped it.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

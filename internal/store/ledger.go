package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
)

// LedgerStore defines persistence operations for billing ledger entries.
type LedgerStore interface {
	// CreateEntry saves a new ledger entry. A second entry with the same
	// (task_id, direction) pair violates the ledger's uniqueness
	// constraint and returns ErrDuplicateEntry.
	CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error

	// GetEntriesForTask retrieves all ledger entries recorded for a task,
	// oldest first.
	GetEntriesForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.LedgerEntry, error)

	// GetEntriesForUser retrieves a user's ledger entries, newest first.
	GetEntriesForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error)

	// WithTx returns a LedgerStore bound to the given transaction.
	WithTx(tx *sql.Tx) LedgerStore
}

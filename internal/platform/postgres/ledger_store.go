package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/store"
)

// LedgerStore implements store.LedgerStore using PostgreSQL.
type LedgerStore struct {
	db store.DBTX
}

var _ store.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a LedgerStore backed by the given database handle.
func NewLedgerStore(db store.DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx returns a LedgerStore bound to the given transaction.
func (s *LedgerStore) WithTx(tx *sql.Tx) store.LedgerStore {
	return &LedgerStore{db: tx}
}

const ledgerColumns = `id, task_id, user_id, direction, amount, reason, created_at`

// CreateEntry inserts a ledger entry. The unique index on
// (task_id, direction) makes a repeated debit for the same task surface as
// store.ErrDuplicateEntry, which is how billing stays exactly-once.
func (s *LedgerStore) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validating ledger entry: %w", err)
	}

	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.TaskID, entry.UserID, entry.Direction,
		entry.Amount, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return store.NewStoreError(MapError(err), "inserting ledger entry for task %s", entry.TaskID)
	}
	return nil
}

func (s *LedgerStore) GetEntriesForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE task_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "listing ledger entries for task %s", taskID)
	}
	defer rows.Close()

	return s.scanEntries(rows)
}

func (s *LedgerStore) GetEntriesForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "listing ledger entries for user %s", userID)
	}
	defer rows.Close()

	return s.scanEntries(rows)
}

func (s *LedgerStore) scanEntries(rows *sql.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		err := rows.Scan(
			&entry.ID, &entry.TaskID, &entry.UserID, &entry.Direction,
			&entry.Amount, &entry.Reason, &entry.CreatedAt,
		)
		if err != nil {
			return nil, store.NewStoreError(err, "scanning ledger entry row")
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(err, "iterating ledger entry rows")
	}
	return entries, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revivephoto/revive-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// If it returns an error the transaction is rolled back, otherwise committed.
type TxFn func(tx *sql.Tx) error

// RunInTransaction executes fn inside a transaction, handling begin, commit
// and rollback. A panic inside fn triggers a rollback and is re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction after panic",
					"error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to rollback transaction", "error", rbErr)
			return fmt.Errorf("%w: rollback after %v: %v", ErrTransactionFailed, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}

package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/store"
)

// ErrAlreadyBilled indicates a debit was already recorded for the task.
// Callers treat this as success since the charge happened exactly once.
var ErrAlreadyBilled = errors.New("task already billed")

// Ledger records credit movements against user balances. Every movement
// writes a ledger entry and adjusts the balance in the same transaction,
// and the ledger's (task_id, direction) uniqueness makes each direction
// happen at most once per task no matter how many times it is attempted.
type Ledger struct {
	db          *sql.DB
	taskStore   store.TaskStore
	ledgerStore store.LedgerStore
	userStore   store.UserStore

	// runTx is swappable in tests where no real database is available.
	runTx func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewLedger creates a Ledger service.
func NewLedger(db *sql.DB, taskStore store.TaskStore, ledgerStore store.LedgerStore, userStore store.UserStore) *Ledger {
	return &Ledger{
		db:          db,
		taskStore:   taskStore,
		ledgerStore: ledgerStore,
		userStore:   userStore,
		runTx:       store.RunInTransaction,
	}
}

// CanAfford reports whether the user's balance covers cost.
func (l *Ledger) CanAfford(ctx context.Context, userID uuid.UUID, cost int64) (bool, error) {
	user, err := l.userStore.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}
	return user.Balance >= cost, nil
}

// DebitForTask charges the task's cost to its owner. The ledger entry,
// balance adjustment and the task's billed flag commit atomically.
// Returns ErrAlreadyBilled if a debit for this task already exists.
func (l *Ledger) DebitForTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	entry, err := domain.NewLedgerEntry(task.ID, task.UserID, domain.LedgerDirectionDebit, task.Cost, "task charge")
	if err != nil {
		return fmt.Errorf("building debit entry: %w", err)
	}

	err = l.runTx(ctx, l.db, func(tx *sql.Tx) error {
		if err := l.ledgerStore.WithTx(tx).CreateEntry(ctx, entry); err != nil {
			return err
		}
		if _, err := l.userStore.WithTx(tx).AdjustBalance(ctx, task.UserID, -task.Cost); err != nil {
			return err
		}
		return l.taskStore.WithTx(tx).SetBilled(ctx, task.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEntry) {
			log.Debug("debit already recorded for task", "task_id", task.ID)
			return ErrAlreadyBilled
		}
		return fmt.Errorf("debiting task %s: %w", task.ID, err)
	}

	log.Info("debited task",
		"task_id", task.ID, "user_id", task.UserID, "amount", task.Cost)
	return nil
}

// CreditForTask refunds the task's cost to its owner, at most once per
// task. Used when a billed task ends in a terminal failure.
func (l *Ledger) CreditForTask(ctx context.Context, task *domain.Task, reason string) error {
	log := logger.FromContext(ctx)

	entry, err := domain.NewLedgerEntry(task.ID, task.UserID, domain.LedgerDirectionCredit, task.Cost, reason)
	if err != nil {
		return fmt.Errorf("building credit entry: %w", err)
	}

	err = l.runTx(ctx, l.db, func(tx *sql.Tx) error {
		if err := l.ledgerStore.WithTx(tx).CreateEntry(ctx, entry); err != nil {
			return err
		}
		_, err := l.userStore.WithTx(tx).AdjustBalance(ctx, task.UserID, task.Cost)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEntry) {
			log.Debug("credit already recorded for task", "task_id", task.ID)
			return nil
		}
		return fmt.Errorf("crediting task %s: %w", task.ID, err)
	}

	log.Info("credited task",
		"task_id", task.ID, "user_id", task.UserID, "amount", task.Cost, "reason", reason)
	return nil
}

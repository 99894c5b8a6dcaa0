package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
)

// TaskStore defines persistence operations for generation tasks.
type TaskStore interface {
	// CreateTask saves a new task to the store.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its ID.
	// Returns ErrTaskNotFound if no task exists with the given ID.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetTasksByUserID retrieves tasks owned by a user, newest first.
	GetTasksByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error)

	// ClaimForProcessing transitions a task from the given status to
	// processing, but only if it is still in that status. Returns
	// ErrNotClaimed when the conditional update matches no row, which
	// means another worker got there first or the status changed.
	ClaimForProcessing(ctx context.Context, id uuid.UUID, from domain.TaskStatus) error

	// MarkCompleted records a successful outcome: status completed, the
	// provider result reference, and the accumulated retry count. The
	// update is conditional on the task still being in processing and
	// returns ErrStatusConflict when it is not, so racing writers cannot
	// both land an outcome.
	MarkCompleted(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error

	// MarkFailed records a terminal or exhausted outcome: status failed,
	// the last error message, whether that error was transient, and the
	// accumulated retry count. Conditional on processing like
	// MarkCompleted.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryable bool, retryCount int) error

	// MarkPendingBackgroundRetry hands a task over to the background
	// scheduler after the foreground budget ran out. Conditional on
	// processing like MarkCompleted.
	MarkPendingBackgroundRetry(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error

	// SetBilled flags the task as debited. Called inside the debit
	// transaction so the flag and the ledger entry commit together.
	SetBilled(ctx context.Context, id uuid.UUID) error

	// SetBillingFailed flags a completed task whose debit could not be
	// recorded. Such tasks are surfaced for manual reconciliation and are
	// never picked up by the scheduler again.
	SetBillingFailed(ctx context.Context, id uuid.UUID) error

	// ListEligibleForRetry returns tasks the background scheduler should
	// pick up: pending_background_retry tasks, plus failed tasks whose
	// last error was transient and whose last attempt is older than
	// cooldown. Tasks older than maxAge or at the retry cap are excluded.
	// Results are oldest submission first, capped at limit.
	ListEligibleForRetry(ctx context.Context, cooldown, maxAge time.Duration, maxRetries, limit int) ([]*domain.Task, error)

	// ListStuck returns tasks that have sat in processing longer than
	// threshold, oldest first.
	ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.Task, error)

	// CountByStatus returns the number of tasks in each status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	// WithTx returns a TaskStore bound to the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}

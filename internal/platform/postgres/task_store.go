package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/store"
)

// TaskStore implements store.TaskStore using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore backed by the given database handle.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx}
}

const taskColumns = `id, user_id, kind, payload, status, cost, retry_count,
	result, last_error, last_error_retryable, billed, billing_suppressed,
	billing_failed, origin_task_id, created_at, updated_at`

func (s *TaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validating task: %w", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.Kind, task.Payload, task.Status,
		task.Cost, task.RetryCount, task.Result, task.LastError,
		task.LastErrorRetryable, task.Billed, task.BillingSuppressed,
		task.BillingFailed, task.OriginTaskID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return store.NewStoreError(MapError(err), "inserting task %s", task.ID)
	}
	return nil
}

func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return s.scanTask(s.db.QueryRowContext(ctx, query, id))
}

func (s *TaskStore) GetTasksByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "listing tasks for user %s", userID)
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

// ClaimForProcessing performs a compare-and-set on the task's status so
// that exactly one caller wins when several race for the same task.
func (s *TaskStore) ClaimForProcessing(ctx context.Context, id uuid.UUID, from domain.TaskStatus) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	result, err := s.db.ExecContext(ctx, query, domain.TaskStatusProcessing, id, from)
	if err != nil {
		return store.NewStoreError(MapError(err), "claiming task %s", id)
	}
	return checkRowsAffected(result, store.ErrNotClaimed)
}

const markCompletedQuery = `
		UPDATE tasks
		SET status = $1, result = $2, retry_count = $3, last_error = '',
			updated_at = NOW()
		WHERE id = $4 AND status = $5`

// MarkCompleted moves a processing task to completed. Like every transition
// out of processing it is conditional on the row still being in processing,
// so a worker and the reaper racing for the same task cannot both land an
// outcome; the loser gets store.ErrStatusConflict.
func (s *TaskStore) MarkCompleted(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error {
	result, err := s.db.ExecContext(ctx, markCompletedQuery,
		domain.TaskStatusCompleted, resultRef, retryCount, id,
		domain.TaskStatusProcessing)
	if err != nil {
		return store.NewStoreError(MapError(err), "completing task %s", id)
	}
	return checkRowsAffected(result, store.ErrStatusConflict)
}

const markFailedQuery = `
		UPDATE tasks
		SET status = $1, last_error = $2, last_error_retryable = $3,
			retry_count = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6`

// MarkFailed moves a processing task to failed, conditional on the row
// still being in processing. See MarkCompleted.
func (s *TaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryable bool, retryCount int) error {
	result, err := s.db.ExecContext(ctx, markFailedQuery,
		domain.TaskStatusFailed, errMsg, retryable, retryCount, id,
		domain.TaskStatusProcessing)
	if err != nil {
		return store.NewStoreError(MapError(err), "failing task %s", id)
	}
	return checkRowsAffected(result, store.ErrStatusConflict)
}

const markPendingBackgroundRetryQuery = `
		UPDATE tasks
		SET status = $1, last_error = $2, last_error_retryable = TRUE,
			retry_count = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`

// MarkPendingBackgroundRetry parks a processing task for the background
// scheduler, conditional on the row still being in processing.
func (s *TaskStore) MarkPendingBackgroundRetry(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	result, err := s.db.ExecContext(ctx, markPendingBackgroundRetryQuery,
		domain.TaskStatusPendingBackgroundRetry, errMsg, retryCount, id,
		domain.TaskStatusProcessing)
	if err != nil {
		return store.NewStoreError(MapError(err), "deferring task %s", id)
	}
	return checkRowsAffected(result, store.ErrStatusConflict)
}

func (s *TaskStore) SetBilled(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks SET billed = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return store.NewStoreError(MapError(err), "marking task %s billed", id)
	}
	return checkRowsAffected(result, store.ErrTaskNotFound)
}

func (s *TaskStore) SetBillingFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks SET billing_failed = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return store.NewStoreError(MapError(err), "marking task %s billing_failed", id)
	}
	return checkRowsAffected(result, store.ErrTaskNotFound)
}

// Oldest submission first, so a young task that keeps failing cannot
// starve an older deferred one.
const listEligibleForRetryQuery = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE retry_count < $1
		  AND billing_failed = FALSE
		  AND created_at > NOW() - $2::interval
		  AND (
			status = $3
			OR (status = $4 AND last_error_retryable = TRUE
				AND updated_at < NOW() - $5::interval)
			OR (status = $6 AND updated_at < NOW() - $5::interval)
		  )
		ORDER BY created_at ASC
		LIMIT $7`

// ListEligibleForRetry selects work for the background scheduler. Deferred
// tasks are picked up unconditionally; failed tasks only when their last
// error was transient and the cooldown has elapsed. Pending tasks the
// foreground path never claimed (a crash between create and claim) are
// picked up after the same cooldown. Tasks past the retry cap or older
// than maxAge never qualify.
func (s *TaskStore) ListEligibleForRetry(ctx context.Context, cooldown, maxAge time.Duration, maxRetries, limit int) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, listEligibleForRetryQuery,
		maxRetries,
		pgInterval(maxAge),
		domain.TaskStatusPendingBackgroundRetry,
		domain.TaskStatusFailed,
		pgInterval(cooldown),
		domain.TaskStatusPending,
		limit,
	)
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "listing retryable tasks")
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

func (s *TaskStore) ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1 AND updated_at < NOW() - $2::interval
		ORDER BY updated_at ASC`

	rows, err := s.db.QueryContext(ctx, query,
		domain.TaskStatusProcessing, pgInterval(threshold))
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "listing stuck tasks")
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

func (s *TaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.NewStoreError(MapError(err), "counting tasks by status")
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, store.NewStoreError(err, "scanning status count row")
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(err, "iterating status count rows")
	}
	return counts, nil
}

// pgInterval renders a duration as a PostgreSQL interval literal.
func pgInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TaskStore) scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID, &task.UserID, &task.Kind, &task.Payload, &task.Status,
		&task.Cost, &task.RetryCount, &task.Result, &task.LastError,
		&task.LastErrorRetryable, &task.Billed, &task.BillingSuppressed,
		&task.BillingFailed, &task.OriginTaskID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError(err, "scanning task row")
	}
	return &task, nil
}

func (s *TaskStore) scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(err, "iterating task rows")
	}
	return tasks, nil
}

// Package mocks provides hand-written test doubles for the store and
// service interfaces. Each mock exposes Fn fields so tests inject only
// the behavior they care about; unset functions return zero values.
package mocks

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/store"
)

// MockTaskStore implements store.TaskStore.
type MockTaskStore struct {
	CreateTaskFn                 func(ctx context.Context, task *domain.Task) error
	GetTaskFn                    func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	GetTasksByUserIDFn           func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error)
	ClaimForProcessingFn         func(ctx context.Context, id uuid.UUID, from domain.TaskStatus) error
	MarkCompletedFn              func(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error
	MarkFailedFn                 func(ctx context.Context, id uuid.UUID, errMsg string, retryable bool, retryCount int) error
	MarkPendingBackgroundRetryFn func(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetBilledFn                  func(ctx context.Context, id uuid.UUID) error
	SetBillingFailedFn           func(ctx context.Context, id uuid.UUID) error
	ListEligibleForRetryFn       func(ctx context.Context, cooldown, maxAge time.Duration, maxRetries, limit int) ([]*domain.Task, error)
	ListStuckFn                  func(ctx context.Context, threshold time.Duration) ([]*domain.Task, error)
	CountByStatusFn              func(ctx context.Context) (map[domain.TaskStatus]int, error)
}

var _ store.TaskStore = (*MockTaskStore)(nil)

func (m *MockTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if m.CreateTaskFn != nil {
		return m.CreateTaskFn(ctx, task)
	}
	return nil
}

func (m *MockTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetTaskFn != nil {
		return m.GetTaskFn(ctx, id)
	}
	return nil, store.ErrTaskNotFound
}

func (m *MockTaskStore) GetTasksByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error) {
	if m.GetTasksByUserIDFn != nil {
		return m.GetTasksByUserIDFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *MockTaskStore) ClaimForProcessing(ctx context.Context, id uuid.UUID, from domain.TaskStatus) error {
	if m.ClaimForProcessingFn != nil {
		return m.ClaimForProcessingFn(ctx, id, from)
	}
	return nil
}

func (m *MockTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error {
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, id, resultRef, retryCount)
	}
	return nil
}

func (m *MockTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryable bool, retryCount int) error {
	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, id, errMsg, retryable, retryCount)
	}
	return nil
}

func (m *MockTaskStore) MarkPendingBackgroundRetry(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	if m.MarkPendingBackgroundRetryFn != nil {
		return m.MarkPendingBackgroundRetryFn(ctx, id, errMsg, retryCount)
	}
	return nil
}

func (m *MockTaskStore) SetBilled(ctx context.Context, id uuid.UUID) error {
	if m.SetBilledFn != nil {
		return m.SetBilledFn(ctx, id)
	}
	return nil
}

func (m *MockTaskStore) SetBillingFailed(ctx context.Context, id uuid.UUID) error {
	if m.SetBillingFailedFn != nil {
		return m.SetBillingFailedFn(ctx, id)
	}
	return nil
}

func (m *MockTaskStore) ListEligibleForRetry(ctx context.Context, cooldown, maxAge time.Duration, maxRetries, limit int) ([]*domain.Task, error) {
	if m.ListEligibleForRetryFn != nil {
		return m.ListEligibleForRetryFn(ctx, cooldown, maxAge, maxRetries, limit)
	}
	return nil, nil
}

func (m *MockTaskStore) ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.Task, error) {
	if m.ListStuckFn != nil {
		return m.ListStuckFn(ctx, threshold)
	}
	return nil, nil
}

func (m *MockTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	return map[domain.TaskStatus]int{}, nil
}

func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// MockLedgerStore implements store.LedgerStore.
type MockLedgerStore struct {
	CreateEntryFn       func(ctx context.Context, entry *domain.LedgerEntry) error
	GetEntriesForTaskFn func(ctx context.Context, taskID uuid.UUID) ([]*domain.LedgerEntry, error)
	GetEntriesForUserFn func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error)
}

var _ store.LedgerStore = (*MockLedgerStore)(nil)

func (m *MockLedgerStore) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if m.CreateEntryFn != nil {
		return m.CreateEntryFn(ctx, entry)
	}
	return nil
}

func (m *MockLedgerStore) GetEntriesForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.LedgerEntry, error) {
	if m.GetEntriesForTaskFn != nil {
		return m.GetEntriesForTaskFn(ctx, taskID)
	}
	return nil, nil
}

func (m *MockLedgerStore) GetEntriesForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	if m.GetEntriesForUserFn != nil {
		return m.GetEntriesForUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *MockLedgerStore) WithTx(tx *sql.Tx) store.LedgerStore { return m }

// MockUserStore implements store.UserStore.
type MockUserStore struct {
	CreateFn        func(ctx context.Context, user *domain.User) error
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmailFn    func(ctx context.Context, email string) (*domain.User, error)
	AdjustBalanceFn func(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
}

var _ store.UserStore = (*MockUserStore)(nil)

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	return nil
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, store.ErrUserNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	return nil, store.ErrUserNotFound
}

func (m *MockUserStore) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	if m.AdjustBalanceFn != nil {
		return m.AdjustBalanceFn(ctx, id, delta)
	}
	return 0, nil
}

func (m *MockUserStore) WithTx(tx *sql.Tx) store.UserStore { return m }

package mocks

import (
	"context"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/provider"
)

// MockProvider implements provider.Provider.
type MockProvider struct {
	GenerateFn func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error)

	// Calls counts invocations of Generate. Not safe for concurrent use
	// unless the test serializes access.
	Calls int
}

var _ provider.Provider = (*MockProvider)(nil)

func (m *MockProvider) Generate(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
	m.Calls++
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, kind, payload)
	}
	return &provider.Output{ResultRef: "mock-result", Model: "mock"}, nil
}

// MockBiller implements the task engine's billing dependency.
type MockBiller struct {
	CanAffordFn     func(ctx context.Context, userID uuid.UUID, cost int64) (bool, error)
	DebitForTaskFn  func(ctx context.Context, task *domain.Task) error
	CreditForTaskFn func(ctx context.Context, task *domain.Task, reason string) error
}

func (m *MockBiller) CanAfford(ctx context.Context, userID uuid.UUID, cost int64) (bool, error) {
	if m.CanAffordFn != nil {
		return m.CanAffordFn(ctx, userID, cost)
	}
	return true, nil
}

func (m *MockBiller) DebitForTask(ctx context.Context, task *domain.Task) error {
	if m.DebitForTaskFn != nil {
		return m.DebitForTaskFn(ctx, task)
	}
	return nil
}

func (m *MockBiller) CreditForTask(ctx context.Context, task *domain.Task, reason string) error {
	if m.CreditForTaskFn != nil {
		return m.CreditForTaskFn(ctx, task, reason)
	}
	return nil
}

// MockNotifier records task completion notifications.
type MockNotifier struct {
	NotifyFn func(ctx context.Context, task *domain.Task)
}

func (m *MockNotifier) Notify(ctx context.Context, task *domain.Task) {
	if m.NotifyFn != nil {
		m.NotifyFn(ctx, task)
	}
}

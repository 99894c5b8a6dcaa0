package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revivephoto/revive-api/internal/billing"
	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/mocks"
	"github.com/revivephoto/revive-api/internal/provider"
	"github.com/revivephoto/revive-api/internal/retry"
	"github.com/revivephoto/revive-api/internal/store"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		TickIntervalSeconds:        30,
		MaxConcurrentTasks:         3,
		MaxRetries:                 5,
		MaxTaskAgeHours:            24,
		FailedCooldownMinutes:      10,
		StuckThresholdMinutes:      10,
		PerCallTimeoutMinutes:      3,
		BackoffMultiplier:          2.0,
		ForegroundBudgetMinutes:    3,
		ForegroundInitialDelaySecs: 1,
		ForegroundMaxDelaySecs:     30,
		BackgroundBudgetMinutes:    15,
		BackgroundInitialDelaySecs: 5,
		BackgroundMaxDelaySecs:     120,
	}
}

// fastPolicy keeps retries immediate so tests never sleep for real.
func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		Budget:            time.Second,
		PerCallTimeout:    time.Second,
		InitialDelay:      time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetries:        maxRetries,
	}
}

type fixture struct {
	svc       *Service
	taskStore *mocks.MockTaskStore
	biller    *mocks.MockBiller
	provider  *mocks.MockProvider
	notifier  *mocks.MockNotifier

	mu       sync.Mutex
	recorded map[uuid.UUID]*recordedState
}

type recordedState struct {
	status     domain.TaskStatus
	result     string
	lastError  string
	retryable  bool
	retryCount int
}

type fixedPricer struct{ cost int64 }

func (p fixedPricer) CostFor(domain.TaskKind) int64 { return p.cost }

// newFixture wires a Service against mocks that record every status
// transition, so tests can assert the persisted outcome.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		taskStore: &mocks.MockTaskStore{},
		biller:    &mocks.MockBiller{},
		provider:  &mocks.MockProvider{},
		notifier:  &mocks.MockNotifier{},
		recorded:  make(map[uuid.UUID]*recordedState),
	}

	f.taskStore.MarkCompletedFn = func(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error {
		f.record(id, func(s *recordedState) {
			s.status = domain.TaskStatusCompleted
			s.result = resultRef
			s.retryCount = retryCount
		})
		return nil
	}
	f.taskStore.MarkFailedFn = func(ctx context.Context, id uuid.UUID, errMsg string, retryable bool, retryCount int) error {
		f.record(id, func(s *recordedState) {
			s.status = domain.TaskStatusFailed
			s.lastError = errMsg
			s.retryable = retryable
			s.retryCount = retryCount
		})
		return nil
	}
	f.taskStore.MarkPendingBackgroundRetryFn = func(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
		f.record(id, func(s *recordedState) {
			s.status = domain.TaskStatusPendingBackgroundRetry
			s.lastError = errMsg
			s.retryable = true
			s.retryCount = retryCount
		})
		return nil
	}

	cfg := testEngineConfig()
	svc := NewService(cfg, f.taskStore, f.biller, fixedPricer{cost: 100}, f.provider, f.notifier)
	svc.fgPolicy = fastPolicy(cfg.MaxRetries)
	svc.bgPolicy = fastPolicy(cfg.MaxRetries)
	f.svc = svc
	return f
}

func (f *fixture) record(id uuid.UUID, fn func(*recordedState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.recorded[id]
	if !ok {
		s = &recordedState{}
		f.recorded[id] = s
	}
	fn(s)
}

func (f *fixture) state(t *testing.T, id uuid.UUID) *recordedState {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.recorded[id]
	require.True(t, ok, "no outcome recorded for task %s", id)
	return s
}

func transientErr() error {
	return provider.NewHTTPError(503, "model overloaded", nil)
}

func terminalErr() error {
	return provider.NewError(provider.KindContentBlocked, "content blocked by safety filters", nil)
}

func TestSubmitSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	calls := 0
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		calls++
		if calls <= 2 {
			return nil, transientErr()
		}
		return &provider.Output{ResultRef: "results/out.png", Model: "test"}, nil
	}

	debited := 0
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		debited++
		return nil
	}

	task, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 2, task.RetryCount, "two re-attempts beyond the first call")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, debited)

	s := f.state(t, task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, s.status)
	assert.Equal(t, "results/out.png", s.result)
	assert.Equal(t, 2, s.retryCount)
}

func TestSubmitTerminalErrorFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, terminalErr()
	}

	debited := false
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		debited = true
		return nil
	}

	task, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindStylize,
		domain.TaskPayload{SourceImageRef: "img/old.jpg", Style: "watercolor"})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, 1, f.provider.Calls, "terminal errors are never retried")
	assert.Equal(t, 0, task.RetryCount)
	assert.False(t, debited, "failed tasks are never billed")

	s := f.state(t, task.ID)
	assert.Equal(t, domain.TaskStatusFailed, s.status)
	assert.False(t, s.retryable)
	assert.Contains(t, s.lastError, "content blocked")
}

func TestSubmitExhaustedBudgetDefersToBackground(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// Budget allows one attempt only: the first delay already exceeds it.
	f.svc.fgPolicy = retry.Policy{
		Budget:            time.Millisecond,
		PerCallTimeout:    time.Second,
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetries:        5,
	}
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, transientErr()
	}

	task, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPendingBackgroundRetry, task.Status)

	s := f.state(t, task.ID)
	assert.Equal(t, domain.TaskStatusPendingBackgroundRetry, s.status)
	assert.True(t, s.retryable)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.biller.CanAffordFn = func(ctx context.Context, userID uuid.UUID, cost int64) (bool, error) {
		return false, nil
	}

	created := false
	f.taskStore.CreateTaskFn = func(ctx context.Context, task *domain.Task) error {
		created = true
		return nil
	}

	_, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"})

	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.False(t, created, "no task is created when the user cannot afford it")
	assert.Equal(t, 0, f.provider.Calls)
}

func TestRecordSuccessDuplicateDebitIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		return billing.ErrAlreadyBilled
	}

	task, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.True(t, task.Billed)
	assert.False(t, task.BillingFailed)
}

func TestRecordSuccessBillingFailureFlagsTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		return errors.New("ledger unavailable")
	}
	flagged := false
	f.taskStore.SetBillingFailedFn = func(ctx context.Context, id uuid.UUID) error {
		flagged = true
		return nil
	}

	task, err := f.svc.Submit(context.Background(), uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"})

	require.NoError(t, err, "a billing failure never fails a completed task")
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.True(t, task.BillingFailed)
	assert.True(t, flagged)
}

func TestRedriveSuccessNotifies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var notified *domain.Task
	f.notifier.NotifyFn = func(ctx context.Context, task *domain.Task) {
		notified = task
	}

	task := deferredTask(t, 1)
	got, err := f.svc.Redrive(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount, "the re-drive call itself consumes one re-attempt")
	require.NotNil(t, notified)
	assert.Equal(t, domain.TaskStatusCompleted, notified.Status)
}

func TestRedriveTerminalFailureRefundsDebitedTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, terminalErr()
	}
	var refunded *domain.Task
	f.biller.CreditForTaskFn = func(ctx context.Context, task *domain.Task, reason string) error {
		refunded = task
		return nil
	}

	// Billed means a debit row exists for this task, so the terminal
	// failure must hand the money back.
	task := deferredTask(t, 1)
	task.Billed = true
	got, err := f.svc.Redrive(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	require.NotNil(t, refunded)
	assert.Equal(t, got.ID, refunded.ID)
}

// A manual retry was never debited, so its terminal failure must not mint a
// refund for money that was never charged.
func TestRedriveTerminalFailureDoesNotRefundManualRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, terminalErr()
	}
	credits := 0
	f.biller.CreditForTaskFn = func(ctx context.Context, task *domain.Task, reason string) error {
		credits++
		return nil
	}

	origin := deferredTask(t, 3)
	origin.Status = domain.TaskStatusFailed
	redrive, err := domain.NewManualRetryTask(origin)
	require.NoError(t, err)
	redrive.Status = domain.TaskStatusProcessing

	got, err := f.svc.Redrive(context.Background(), redrive)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, 0, credits, "no debit exists for a manual retry, so nothing may be refunded")
}

func TestRedriveSuccessDoesNotDebitManualRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	debits := 0
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		debits++
		return nil
	}

	origin := deferredTask(t, 3)
	origin.Status = domain.TaskStatusFailed
	redrive, err := domain.NewManualRetryTask(origin)
	require.NoError(t, err)
	redrive.Status = domain.TaskStatusProcessing

	got, err := f.svc.Redrive(context.Background(), redrive)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 0, debits, "billing-suppressed tasks are never charged")
	assert.False(t, got.BillingFailed)
}

// When the completion write loses the conditional update, someone else
// recorded an outcome for the task while we were generating. Their outcome
// stands and in particular no debit may land for the discarded result.
func TestCompletionLostRaceSkipsBilling(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.taskStore.MarkCompletedFn = func(ctx context.Context, id uuid.UUID, resultRef string, retryCount int) error {
		return store.ErrStatusConflict
	}
	debits := 0
	f.biller.DebitForTaskFn = func(ctx context.Context, task *domain.Task) error {
		debits++
		return nil
	}

	task := deferredTask(t, 0)
	_, err := f.svc.Redrive(context.Background(), task)

	require.ErrorIs(t, err, store.ErrStatusConflict)
	assert.Equal(t, 0, debits, "a result nobody recorded must not be charged")
}

func TestRedriveTransientFailureStaysRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// Budget fits a single call, so the re-drive stops without in-loop retries.
	f.svc.bgPolicy = retry.Policy{
		Budget:            time.Millisecond,
		PerCallTimeout:    time.Second,
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetries:        5,
	}
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, transientErr()
	}

	notified := false
	f.notifier.NotifyFn = func(ctx context.Context, task *domain.Task) { notified = true }

	task := deferredTask(t, 1)
	got, err := f.svc.Redrive(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, 2, got.RetryCount)

	s := f.state(t, got.ID)
	assert.True(t, s.retryable, "transient failures stay eligible for the next tick")
	assert.False(t, notified, "no notification while retries remain")
}

func TestRedriveAtRetryCapNotifiesExhaustion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, transientErr()
	}
	notified := false
	f.notifier.NotifyFn = func(ctx context.Context, task *domain.Task) { notified = true }

	task := deferredTask(t, 4) // cap is 5; this re-drive consumes the last unit
	got, err := f.svc.Redrive(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, 5, got.RetryCount, "count never exceeds the configured cap")
	assert.Equal(t, 1, f.provider.Calls, "no headroom left for in-loop retries")
	assert.True(t, notified, "exhaustion is a final outcome worth announcing")
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := uuid.New()
	task := deferredTask(t, 0)
	task.UserID = owner
	f.taskStore.GetTaskFn = func(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
		return task, nil
	}

	got, err := f.svc.Get(context.Background(), owner, false, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = f.svc.Get(context.Background(), uuid.New(), false, task.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Get(context.Background(), uuid.New(), true, task.ID)
	assert.NoError(t, err, "admins can read any task")
}

// deferredTask builds a task as the scheduler would see it after a
// foreground deferral with the given retry count.
func deferredTask(t *testing.T, retryCount int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"}, 100)
	require.NoError(t, err)
	task.Status = domain.TaskStatusProcessing
	task.RetryCount = retryCount
	task.LastError = "provider error (unavailable, status 503): model overloaded"
	task.LastErrorRetryable = true
	return task
}

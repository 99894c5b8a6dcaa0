package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/billing"
	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/notify"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/provider"
	"github.com/revivephoto/revive-api/internal/retry"
	"github.com/revivephoto/revive-api/internal/store"
)

// Biller is the billing surface the engine depends on.
type Biller interface {
	CanAfford(ctx context.Context, userID uuid.UUID, cost int64) (bool, error)
	DebitForTask(ctx context.Context, task *domain.Task) error
	CreditForTask(ctx context.Context, task *domain.Task, reason string) error
}

// Pricer resolves the cost of a task kind.
type Pricer interface {
	CostFor(kind domain.TaskKind) int64
}

var (
	_ Biller = (*billing.Ledger)(nil)
	_ Pricer = (*billing.Pricer)(nil)
)

// ErrNotOwner indicates a user tried to access a task they do not own.
var ErrNotOwner = errors.New("task belongs to another user")

// tier identifies which retry tier is driving a task.
type tier int

const (
	tierForeground tier = iota
	tierBackground
)

func (t tier) String() string {
	if t == tierForeground {
		return "foreground"
	}
	return "background"
}

// Service runs generation tasks through the two-tier retry engine. The
// foreground tier blocks the submitting request for a short budget; tasks
// it cannot finish are handed to the background scheduler.
type Service struct {
	cfg       config.EngineConfig
	taskStore store.TaskStore
	biller    Biller
	pricer    Pricer
	provider  provider.Provider
	notifier  notify.Notifier

	fgPolicy retry.Policy
	bgPolicy retry.Policy
}

// NewService creates a task Service.
func NewService(
	cfg config.EngineConfig,
	taskStore store.TaskStore,
	biller Biller,
	pricer Pricer,
	prov provider.Provider,
	notifier notify.Notifier,
) *Service {
	return &Service{
		cfg:       cfg,
		taskStore: taskStore,
		biller:    biller,
		pricer:    pricer,
		provider:  prov,
		notifier:  notifier,
		fgPolicy:  retry.ForegroundPolicy(cfg),
		bgPolicy:  retry.BackgroundPolicy(cfg),
	}
}

// Submit creates a task and drives it through the foreground retry tier,
// blocking until the task completes, fails terminally, or exhausts the
// foreground budget and is deferred to the background scheduler. The
// returned task reflects the outcome; callers inspect its status.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, kind domain.TaskKind, payload domain.TaskPayload) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	cost := s.pricer.CostFor(kind)
	ok, err := s.biller.CanAfford(ctx, userID, cost)
	if err != nil {
		return nil, fmt.Errorf("checking balance: %w", err)
	}
	if !ok {
		return nil, domain.ErrInsufficientBalance
	}

	task, err := domain.NewTask(userID, kind, payload, cost)
	if err != nil {
		return nil, err
	}
	if err := s.taskStore.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	log.Info("task submitted",
		"task_id", task.ID, "user_id", userID, "kind", kind, "cost", cost)

	if err := s.taskStore.ClaimForProcessing(ctx, task.ID, domain.TaskStatusPending); err != nil {
		return nil, fmt.Errorf("claiming task: %w", err)
	}
	task.Status = domain.TaskStatusProcessing

	return s.runTier(ctx, task, s.fgPolicy, tierForeground)
}

// Redrive runs one claimed task through the background retry tier. The
// caller must have already transitioned the task to processing.
func (s *Service) Redrive(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	return s.runTier(ctx, task, s.bgPolicy, tierBackground)
}

// runTier executes the task's provider call under the given policy and
// persists the outcome. RetryCount accounting: the first provider call of a
// task's life is free; every call after it, including the first call of a
// re-drive, consumes one unit of the configured cap. The policy's in-loop
// cap is the remaining headroom, so the persisted count never exceeds the
// configured maximum.
func (s *Service) runTier(ctx context.Context, task *domain.Task, policy retry.Policy, t tier) (*domain.Task, error) {
	log := logger.FromContext(ctx).With(
		"task_id", task.ID, "tier", t.String())
	ctx = logger.WithLogger(ctx, log)

	payload, err := task.DecodePayload()
	if err != nil {
		return nil, fmt.Errorf("decoding payload for task %s: %w", task.ID, err)
	}

	prior := 0
	if t == tierBackground {
		// The re-drive call itself is a re-attempt.
		prior = 1
	}
	headroom := s.cfg.MaxRetries - task.RetryCount - prior
	if headroom < 0 {
		headroom = 0
	}

	out, attempts, callErr := retry.Do(ctx, log, policy.WithMaxRetries(headroom), func(ctx context.Context) (*provider.Output, error) {
		return s.provider.Generate(ctx, task.Kind, payload)
	})

	retryCount := task.RetryCount + prior + attempts - 1
	if retryCount > s.cfg.MaxRetries {
		retryCount = s.cfg.MaxRetries
	}
	task.RetryCount = retryCount

	if callErr == nil {
		return task, s.recordSuccess(ctx, task, out, t)
	}
	return task, s.recordFailure(ctx, task, callErr, t)
}

// recordSuccess marks the task completed and settles billing. A billing
// failure after generation succeeded never fails the task or triggers a
// retry; the task is flagged for manual reconciliation instead.
func (s *Service) recordSuccess(ctx context.Context, task *domain.Task, out *provider.Output, t tier) error {
	log := logger.FromContext(ctx)

	if err := s.taskStore.MarkCompleted(ctx, task.ID, out.ResultRef, task.RetryCount); err != nil {
		// A lost conditional write means the reaper or another worker took
		// the task while we were generating. Their outcome stands; in
		// particular we must not debit for a result nobody recorded.
		if errors.Is(err, store.ErrStatusConflict) {
			log.Warn("task left processing before completion landed, discarding outcome",
				"task_id", task.ID)
		}
		return fmt.Errorf("completing task %s: %w", task.ID, err)
	}
	task.Status = domain.TaskStatusCompleted
	task.Result = out.ResultRef
	task.LastError = ""

	if !task.Billed && !task.BillingSuppressed {
		err := s.biller.DebitForTask(ctx, task)
		switch {
		case err == nil, errors.Is(err, billing.ErrAlreadyBilled):
			task.Billed = true
		default:
			log.Error("billing failed for completed task, flagging for reconciliation",
				"task_id", task.ID, "user_id", task.UserID, "amount", task.Cost, "error", err)
			task.BillingFailed = true
			if sfErr := s.taskStore.SetBillingFailed(ctx, task.ID); sfErr != nil {
				log.Error("failed to flag billing failure", "task_id", task.ID, "error", sfErr)
			}
		}
	}

	log.Info("task completed",
		"task_id", task.ID, "retry_count", task.RetryCount, "model", out.Model)

	if t == tierBackground {
		s.notifier.Notify(ctx, task)
	}
	return nil
}

// recordFailure persists the failed outcome. Terminal errors fail the task
// for good and refund any charge; transient exhaustion defers to the
// background tier (foreground) or leaves the task failed-but-retryable for
// the next eligible tick (background).
func (s *Service) recordFailure(ctx context.Context, task *domain.Task, callErr error, t tier) error {
	log := logger.FromContext(ctx)
	msg := callErr.Error()

	if provider.IsTerminal(callErr) {
		if err := s.taskStore.MarkFailed(ctx, task.ID, msg, false, task.RetryCount); err != nil {
			return fmt.Errorf("failing task %s: %w", task.ID, err)
		}
		task.Status = domain.TaskStatusFailed
		task.LastError = msg
		task.LastErrorRetryable = false

		log.Warn("task failed terminally",
			"task_id", task.ID, "retry_count", task.RetryCount, "error", callErr)

		// Billed means a debit row exists for this task id, so only then is
		// there anything to refund. Suppressed tasks were never debited.
		if task.Billed {
			if err := s.biller.CreditForTask(ctx, task, "terminal failure refund"); err != nil {
				log.Error("refund failed", "task_id", task.ID, "error", err)
			}
		}
		if t == tierBackground {
			s.notifier.Notify(ctx, task)
		}
		return nil
	}

	if t == tierForeground && task.RetryCount < s.cfg.MaxRetries {
		if err := s.taskStore.MarkPendingBackgroundRetry(ctx, task.ID, msg, task.RetryCount); err != nil {
			return fmt.Errorf("deferring task %s: %w", task.ID, err)
		}
		task.Status = domain.TaskStatusPendingBackgroundRetry
		task.LastError = msg
		task.LastErrorRetryable = true

		log.Info("foreground budget exhausted, deferring to background",
			"task_id", task.ID, "retry_count", task.RetryCount, "error", callErr)
		return nil
	}

	if err := s.taskStore.MarkFailed(ctx, task.ID, msg, true, task.RetryCount); err != nil {
		return fmt.Errorf("failing task %s: %w", task.ID, err)
	}
	task.Status = domain.TaskStatusFailed
	task.LastError = msg
	task.LastErrorRetryable = true

	exhausted := task.RetryCount >= s.cfg.MaxRetries
	log.Warn("transient failure recorded",
		"task_id", task.ID, "retry_count", task.RetryCount,
		"retries_exhausted", exhausted, "error", callErr)

	if exhausted {
		// No further automatic attempts will happen; tell the user.
		s.notifier.Notify(ctx, task)
	}
	return nil
}

// Get retrieves a task, enforcing ownership unless the caller is an admin.
func (s *Service) Get(ctx context.Context, callerID uuid.UUID, admin bool, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && task.UserID != callerID {
		return nil, ErrNotOwner
	}
	return task, nil
}

// ListForUser retrieves the caller's tasks, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.taskStore.GetTasksByUserID(ctx, userID, limit)
}

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/store"
)

// Reaper finds tasks abandoned in processing, typically after a crash or
// deploy killed their worker, and fails them so their owners are not left
// staring at a spinner forever. It also exposes the operator actions for
// inspecting and re-driving abandoned work.
type Reaper struct {
	cfg       config.EngineConfig
	taskStore store.TaskStore
}

// NewReaper creates a Reaper.
func NewReaper(cfg config.EngineConfig, taskStore store.TaskStore) *Reaper {
	return &Reaper{cfg: cfg, taskStore: taskStore}
}

func (r *Reaper) threshold() time.Duration {
	return time.Duration(r.cfg.StuckThresholdMinutes) * time.Minute
}

// Run sweeps on the stuck threshold's cadence until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("stuck task reaper started", "threshold", r.threshold())

	ticker := time.NewTicker(r.threshold())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stuck task reaper stopping")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				log.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

// Sweep fails every task stuck in processing beyond the threshold. The
// failure is recorded as non-retryable: the scheduler must not silently
// re-run work whose outcome is unknown; an operator decides via ManualRetry.
func (r *Reaper) Sweep(ctx context.Context) error {
	log := logger.FromContext(ctx)

	stuck, err := r.taskStore.ListStuck(ctx, r.threshold())
	if err != nil {
		return fmt.Errorf("listing stuck tasks: %w", err)
	}
	if len(stuck) == 0 {
		return nil
	}

	log.Warn("found stuck tasks", "count", len(stuck))

	for _, task := range stuck {
		msg := fmt.Sprintf("abandoned after %s in processing", r.threshold())
		if err := r.taskStore.MarkFailed(ctx, task.ID, msg, false, task.RetryCount); err != nil {
			// A conflict means the task left processing between the listing
			// and the write: its worker was alive after all and owns the
			// outcome.
			if errors.Is(err, store.ErrStatusConflict) {
				log.Info("task no longer stuck, skipping", "task_id", task.ID)
				continue
			}
			log.Error("failed to reap stuck task", "task_id", task.ID, "error", err)
			continue
		}
		log.Warn("reaped stuck task",
			"task_id", task.ID, "user_id", task.UserID,
			"stuck_since", task.UpdatedAt, "billed", task.Billed)
	}
	return nil
}

// ListStuck returns the tasks currently stuck in processing.
func (r *Reaper) ListStuck(ctx context.Context) ([]*domain.Task, error) {
	return r.taskStore.ListStuck(ctx, r.threshold())
}

// ForceFail immediately fails one stuck task without waiting for the next
// sweep. Only tasks in processing can be force-failed.
func (r *Reaper) ForceFail(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := r.taskStore.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusProcessing {
		return nil, fmt.Errorf("%w: task is %s, not processing", domain.ErrValidation, task.Status)
	}

	// The write is conditional, so a worker finishing between the read
	// above and this update keeps its outcome and we report the conflict.
	if err := r.taskStore.MarkFailed(ctx, id, "force-failed by operator", false, task.RetryCount); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatusFailed
	task.LastError = "force-failed by operator"
	task.LastErrorRetryable = false

	logger.FromContext(ctx).Warn("task force-failed", "task_id", id)
	return task, nil
}

// ManualRetry creates a fresh task re-driving a failed or abandoned one.
// The new task enters the background queue directly and, being born with
// billing suppressed, can never debit the user again.
func (r *Reaper) ManualRetry(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	origin, err := r.taskStore.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if origin.Status != domain.TaskStatusFailed && origin.Status != domain.TaskStatusProcessing {
		return nil, fmt.Errorf("%w: task is %s, only failed or stuck tasks can be re-driven",
			domain.ErrValidation, origin.Status)
	}

	redrive, err := domain.NewManualRetryTask(origin)
	if err != nil {
		return nil, err
	}
	if err := r.taskStore.CreateTask(ctx, redrive); err != nil {
		return nil, fmt.Errorf("creating manual retry task: %w", err)
	}

	logger.FromContext(ctx).Info("manual retry created",
		"origin_task_id", origin.ID, "task_id", redrive.ID)
	return redrive, nil
}

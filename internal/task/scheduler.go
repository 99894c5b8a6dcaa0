package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/store"
)

// Scheduler periodically picks up deferred and retryable tasks and drives
// them through the background retry tier. The database is the queue; the
// scheduler keeps no in-memory state beyond an in-flight counter that
// enforces the concurrency cap across ticks.
type Scheduler struct {
	cfg       config.EngineConfig
	svc       *Service
	taskStore store.TaskStore

	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg config.EngineConfig, svc *Service, taskStore store.TaskStore) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		svc:       svc,
		taskStore: taskStore,
	}
}

// Run ticks until ctx is cancelled, then waits for in-flight tasks to
// finish. Tasks interrupted mid-flight are left in processing and recovered
// by the reaper after restart.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	interval := time.Duration(s.cfg.TickIntervalSeconds) * time.Second

	log.Info("background scheduler started",
		"tick_interval", interval, "max_concurrent", s.cfg.MaxConcurrentTasks)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("background scheduler stopping, draining in-flight tasks",
				"in_flight", s.inFlight.Load())
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick claims up to the available concurrency slots worth of eligible tasks
// and launches a worker goroutine per claim. Claim races are resolved by
// the conditional status update; losing a claim is not an error.
func (s *Scheduler) tick(ctx context.Context) {
	log := logger.FromContext(ctx)

	slots := int64(s.cfg.MaxConcurrentTasks) - s.inFlight.Load()
	if slots <= 0 {
		log.Debug("all concurrency slots busy, skipping tick")
		return
	}

	cooldown := time.Duration(s.cfg.FailedCooldownMinutes) * time.Minute
	maxAge := time.Duration(s.cfg.MaxTaskAgeHours) * time.Hour

	tasks, err := s.taskStore.ListEligibleForRetry(ctx, cooldown, maxAge, s.cfg.MaxRetries, int(slots))
	if err != nil {
		log.Error("failed to list eligible tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Debug("picked up eligible tasks", "count", len(tasks))

	for _, task := range tasks {
		if err := s.taskStore.ClaimForProcessing(ctx, task.ID, task.Status); err != nil {
			if !errors.Is(err, store.ErrNotClaimed) {
				log.Error("failed to claim task", "task_id", task.ID, "error", err)
			}
			continue
		}
		task.Status = domain.TaskStatusProcessing

		s.inFlight.Add(1)
		s.wg.Add(1)
		go func(task *domain.Task) {
			defer s.wg.Done()
			defer s.inFlight.Add(-1)

			if _, err := s.svc.Redrive(ctx, task); err != nil {
				log.Error("background re-drive failed to record outcome",
					"task_id", task.ID, "error", err)
			}
		}(task)
	}
}

// InFlight reports the number of tasks currently being processed by the
// background tier.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Stats is a point-in-time snapshot of the engine's workload.
type Stats struct {
	ByStatus      map[domain.TaskStatus]int `json:"by_status"`
	InFlight      int                       `json:"in_flight"`
	MaxConcurrent int                       `json:"max_concurrent"`
	TickSeconds   int                       `json:"tick_seconds"`
	Stuck         int                       `json:"stuck"`
}

// Stats assembles engine statistics for the operator surface.
func (s *Scheduler) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.taskStore.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	threshold := time.Duration(s.cfg.StuckThresholdMinutes) * time.Minute
	stuck, err := s.taskStore.ListStuck(ctx, threshold)
	if err != nil {
		return nil, err
	}

	return &Stats{
		ByStatus:      counts,
		InFlight:      s.InFlight(),
		MaxConcurrent: s.cfg.MaxConcurrentTasks,
		TickSeconds:   s.cfg.TickIntervalSeconds,
		Stuck:         len(stuck),
	}, nil
}

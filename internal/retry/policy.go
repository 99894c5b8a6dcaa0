package retry

import (
	"math"
	"time"

	"github.com/revivephoto/revive-api/internal/config"
)

// Policy bounds one retry loop around provider calls. Budget caps the total
// wall-clock time across attempts; PerCallTimeout bounds each individual
// call. The first call is always allowed to run to its own timeout even when
// that exceeds the remaining budget, because a single slow call that would
// succeed is worth more than a punctual failure.
type Policy struct {
	Budget            time.Duration
	PerCallTimeout    time.Duration
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// MaxRetries caps how many re-attempts (beyond the first call) this loop
	// may consume. Callers derive it from the task's remaining retry-count
	// headroom so the persisted count can never exceed the configured cap.
	MaxRetries int
}

// ForegroundPolicy builds the short, request-blocking policy from the engine
// configuration.
func ForegroundPolicy(cfg config.EngineConfig) Policy {
	return Policy{
		Budget:            time.Duration(cfg.ForegroundBudgetMinutes) * time.Minute,
		PerCallTimeout:    time.Duration(cfg.PerCallTimeoutMinutes) * time.Minute,
		InitialDelay:      time.Duration(cfg.ForegroundInitialDelaySecs) * time.Second,
		MaxDelay:          time.Duration(cfg.ForegroundMaxDelaySecs) * time.Second,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxRetries:        cfg.MaxRetries,
	}
}

// BackgroundPolicy builds the longer-budget policy used by the background
// scheduler and manual re-drives.
func BackgroundPolicy(cfg config.EngineConfig) Policy {
	return Policy{
		Budget:            time.Duration(cfg.BackgroundBudgetMinutes) * time.Minute,
		PerCallTimeout:    time.Duration(cfg.PerCallTimeoutMinutes) * time.Minute,
		InitialDelay:      time.Duration(cfg.BackgroundInitialDelaySecs) * time.Second,
		MaxDelay:          time.Duration(cfg.BackgroundMaxDelaySecs) * time.Second,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxRetries:        cfg.MaxRetries,
	}
}

// WithMaxRetries returns a copy of the policy with the retry cap replaced.
func (p Policy) WithMaxRetries(n int) Policy {
	p.MaxRetries = n
	return p
}

// Delay computes the backoff before retry attempt n (1-based):
// min(initial * multiplier^(n-1), max).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/revivephoto/revive-api/internal/provider"
)

// CallFn is one provider invocation. The context passed in carries the
// per-call timeout; implementations must honor it.
type CallFn func(ctx context.Context) (*provider.Output, error)

// Do drives fn through the policy's bounded retry loop and returns the
// output, the number of calls issued, and the last error when all attempts
// fail.
//
// Terminal errors (per provider.IsRetryable) propagate immediately without
// consuming further attempts. Between transient failures the loop sleeps the
// policy's backoff delay; it stops issuing new attempts once the delay would
// not fit in the remaining budget, once the retry cap is consumed, or once
// the outer context is cancelled. An in-flight call is never interrupted by
// the budget expiring; only its own per-call timeout bounds it.
func Do(ctx context.Context, log *slog.Logger, p Policy, fn CallFn) (*provider.Output, int, error) {
	start := time.Now()
	attempts := 0

	var lastErr error
	for {
		attempts++

		callCtx := ctx
		var cancel context.CancelFunc
		if p.PerCallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.PerCallTimeout)
		}
		out, err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			log.Debug("provider call succeeded", "attempt", attempts)
			return out, attempts, nil
		}
		lastErr = err

		if provider.IsTerminal(err) {
			log.Warn("terminal provider error, not retrying",
				"attempt", attempts,
				"error", err)
			return nil, attempts, err
		}

		if attempts-1 >= p.MaxRetries {
			log.Warn("retry cap reached",
				"attempts", attempts,
				"max_retries", p.MaxRetries,
				"error", err)
			return nil, attempts, err
		}

		delay := p.Delay(attempts)
		remaining := p.Budget - time.Since(start)
		if delay >= remaining {
			log.Warn("retry budget exhausted",
				"attempts", attempts,
				"elapsed", time.Since(start),
				"budget", p.Budget,
				"error", err)
			return nil, attempts, err
		}

		log.Info("retrying provider call after delay",
			"attempt", attempts,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Warn("retry loop cancelled during backoff", "attempts", attempts)
			return nil, attempts, lastErr
		}
	}
}

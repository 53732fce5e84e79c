// Package resilience provides the bounded startup retry used when
// dialing the search server and the optional cache/analytics backends.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Backoff bounds a retry loop: Attempts tries with delays doubling from
// Base up to Cap.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Base <= 0 {
		b.Base = 100 * time.Millisecond
	}
	if b.Cap <= 0 {
		b.Cap = 10 * time.Second
	}
	return b
}

// delay returns the wait before retrying after attempt n (1-based): Base
// doubled per attempt and capped, minus up to a quarter of random jitter
// so restarting clients do not reconnect in lockstep.
func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base << (attempt - 1)
	if d <= 0 || d > b.Cap {
		d = b.Cap
	}
	return d - time.Duration(rand.Int63n(int64(d)/4+1))
}

// Do runs fn until it succeeds or the attempts are exhausted. The
// context cancels waiting between attempts.
func Do(ctx context.Context, target string, b Backoff, fn func(context.Context) error) error {
	b = b.withDefaults()
	logger := slog.Default().With("component", "retry", "target", target)
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("connected after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.Attempts {
			break
		}
		wait := b.delay(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "error", lastErr, "retry_in", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("connecting to %s aborted: %w", target, ctx.Err())
		}
	}
	return fmt.Errorf("connecting to %s failed after %d attempts: %w", target, b.Attempts, lastErr)
}

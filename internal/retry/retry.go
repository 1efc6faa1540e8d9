// Package retry runs short remote calls again on failure with exponential
// backoff. Used where a retry is cheap (translation calls); everything else
// skips the unit of work and lets the next cycle pick it up.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultConfig covers translation calls: two attempts, backoff from 200ms.
var DefaultConfig = Config{MaxAttempts: 2, Delay: 200 * time.Millisecond}

// Do invokes fn up to MaxAttempts times, doubling the delay between attempts.
// The context cancels waiting between attempts, not fn itself; pass a
// context-aware fn for that.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

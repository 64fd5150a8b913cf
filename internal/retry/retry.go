// Package retry provides bounded blind retry with exponential backoff for
// external backend calls. Blind means every failure is retried up to the
// attempt cap, with no error-kind filtering.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 5 * time.Second
	defaultMultiplier  = 2.0
)

// Sleeper waits for d or until ctx is done. Injected in tests to count and
// skip real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy controls the retry schedule. The zero value retries 3 times with
// delays of 5s and 10s between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Sleep       Sleeper

	// OnRetry, when set, is invoked before each inter-attempt delay.
	OnRetry func(attempt int, err error)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.Sleep == nil {
		p.Sleep = defaultSleep
	}
	return p
}

// Do runs op up to p.MaxAttempts times, sleeping between attempts with the
// delay doubling each time. The first success wins. After the final failure
// the last error is returned wrapped with the attempt count, reachable via
// errors.Is / errors.As.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		if logger != nil {
			logger.Warn("backend call failed, retrying",
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"retry_in", delay,
				"error", err,
			)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return zero, fmt.Errorf("retry: %d attempts failed: %w", p.MaxAttempts, lastErr)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

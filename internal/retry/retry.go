// Package retry re-invokes a fallible operation a bounded number of times with a
// fixed delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"exo-agent/internal/domain/entity"
)

type Policy struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int
	Delay      time.Duration

	// RetryIf decides whether a failure is retried. Nil retries every failure.
	RetryIf func(err error) bool

	// OnRetry runs before the delay preceding attempt+1.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Delay:      time.Second,
	}
}

// ForBackends returns a copy of p that only retries vendor call failures.
func ForBackends(p Policy) Policy {
	p.RetryIf = entity.IsBackendError
	return p
}

func (p Policy) Validate() error {
	if p.MaxRetries < 1 {
		return entity.ConfigError("max retries must be at least 1, got %d", p.MaxRetries)
	}
	if p.Delay < 0 {
		return entity.ConfigError("retry delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// Do calls fn until it succeeds or the policy is exhausted and returns the last
// failure unchanged. Cancelling ctx while waiting returns the last failure joined
// with ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return ctx.Err()
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

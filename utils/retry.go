package utils

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy retries a fallible call with exponential backoff and jitter.
// It is deliberately independent of the sync loops' own interval scheduling:
// a cycle retries individual I/O calls with this, while failed cycles wait for
// the next scheduled tick.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter adds up to this fraction of the computed delay (0.0 to 1.0).
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned unwrapped so errors.Is/As keep working.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return err
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}
	d := base * time.Duration(1<<shift)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Package backoff provides the retry policy shared by every tier of the swap
// pipeline, so retry semantics live in one place instead of ad-hoc sleep
// loops.
package backoff

import (
	"context"
	"time"
)

// Policy maps an attempt number to a delay. The zero value disables retries.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// Exponential returns a policy that waits base*2^n after the n-th failed
// attempt (n starting at 1).
func Exponential(maxAttempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Base: base}
}

// Fixed returns a policy with the same delay between every attempt.
func Fixed(maxAttempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Base: delay, Cap: delay}
}

// Delay returns the wait before attempt+1, given that attempt (1-based) has
// just failed.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 || attempt < 1 {
		return 0
	}
	d := p.Base << uint(attempt)
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}

// Retry runs fn up to p.MaxAttempts times, sleeping p.Delay between failed
// attempts. It returns nil on the first success and the last error once the
// budget is exhausted. Context cancellation cuts the wait short.
func (p Policy) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := Sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
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

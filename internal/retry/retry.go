// Package retry runs an operation under a bounded exponential backoff with
// additive jitter. Only errors the caller classifies as retryable are retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
)

// ErrExhausted is returned once every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy describes how many times to try and how long to wait in between.
type Policy struct {
	MaxAttempts int           // total attempts including the first one
	BaseDelay   time.Duration // delay before the second attempt, doubled after each failure
	MaxDelay    time.Duration // ceiling for the exponential part
	Jitter      time.Duration // upper bound of the random duration added to every delay

	// Rand returns a value in [0, n). Defaults to backoff.FullJitter.
	Rand func(n int64) int64
	// Sleep waits for d or until ctx is done. Defaults to backoff.SleepWithContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy allows ten attempts, starting at 100ms, capped at 2s, plus up to 500ms jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

// Validate reports an unusable policy.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0 || p.MaxDelay < 0 || p.Jitter < 0:
		return errors.New("delays must not be negative")
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Delay returns the wait after the given zero-based failed attempt:
// min(BaseDelay * 2^attempt, MaxDelay) plus a random duration in [0, Jitter).
func (p Policy) Delay(attempt int) time.Duration {
	d := backoff.Exponential(p.BaseDelay, attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 {
		if p.Rand != nil {
			d += time.Duration(p.Rand(int64(p.Jitter)))
		} else {
			d += backoff.FullJitter(p.Jitter)
		}
	}

	return d
}

// Notify is called before sleeping after a retryable failure.
type Notify func(attempt int, delay time.Duration, err error)

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// attempt budget is spent. fn receives the zero-based attempt number.
//
// On exhaustion the returned error wraps both ErrExhausted and the last failure.
// A done ctx stops the loop; the returned error wraps ctx.Err().
func Do(ctx context.Context, p Policy, retryable func(error) bool, notify Notify, fn func(ctx context.Context, attempt int) error) error {
	if err := p.Validate(); err != nil {
		return err
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = backoff.SleepWithContext
	}

	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}
		if !retryable(last) {
			return last
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if notify != nil {
			notify(attempt, delay, last)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, last)
}

// Package retry provides caller-side retry for whole client operations:
// exponential backoff that only repeats failures the error taxonomy
// marks retryable, and a per-host circuit breaker that stops hammering
// a host that keeps failing.
//
// Nothing below the command layer retries; a transfer or probe makes
// at most one attempt per call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	ncerr "r66client/internal/errors"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	// InitialDelay is the delay before the first retry (default 500ms).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 30s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Values below 1 mean a single try.
	MaxAttempts int
	// Jitter adds ±25% randomisation.
	Jitter bool

	// Retryable decides whether a failure is worth another attempt.
	// Defaults to [ncerr.IsRetryable]: remote refusals are final,
	// dial failures and timeouts are not.
	Retryable func(error) bool
	// OnRetry is called before each wait with the failed attempt
	// number, its error and the delay about to be slept.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForAttempts returns a jittered backoff allowing n tries.
func ForAttempts(n int) *Backoff {
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  n,
		Jitter:       true,
	}
}

// Do executes fn until it succeeds, fails permanently, fails with an
// error that is not retryable, or the attempt budget or ctx runs out.
// The attempt passed to fn is 1-based.  The last error is returned
// unwrapped so callers can still classify it.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	retryable := b.Retryable
	if retryable == nil {
		retryable = ncerr.IsRetryable
	}
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if attempt >= attempts || !retryable(err) {
			return err
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}

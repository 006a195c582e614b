// Package retry provides the policies that sit above a connector:
// exponential backoff for repeated connect operations and a circuit
// breaker that stops a scan once resolution keeps failing.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"nconnect/config"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  A nil err stays nil.
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

const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = time.Minute
	defaultMultiplier   = 2.0
)

// Backoff is an exponential retry schedule with optional jitter.
// Zero fields fall back to a 1s initial delay, a 1m cap and a factor
// of 2.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxAttempts is the total number of tries including the first.
	// Zero retries until the context ends.
	MaxAttempts int
	// Jitter spreads each wait by ±25%.
	Jitter bool
	// OnRetry, when set, runs after a failed attempt and before the
	// wait that precedes the next one.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForRetries returns the schedule used for --retries: retries extra
// attempts after the first, starting at config.DefaultRetryDelay.  It
// returns nil when retries is not positive.
func ForRetries(retries int) *Backoff {
	if retries <= 0 {
		return nil
	}
	return &Backoff{
		InitialDelay: config.DefaultRetryDelay,
		MaxDelay:     config.DefaultMaxRetryDelay,
		Multiplier:   defaultMultiplier,
		MaxAttempts:  retries + 1,
		Jitter:       true,
	}
}

// Delay returns the un-jittered wait after failed attempt n (1-based).
func (b *Backoff) Delay(n int) time.Duration {
	initial, limit, factor := b.InitialDelay, b.MaxDelay, b.Multiplier
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	if factor <= 0 {
		factor = defaultMultiplier
	}

	d := float64(initial)
	for i := 1; i < n && d < float64(limit); i++ {
		d *= factor
	}
	return min(time.Duration(d), limit)
}

// Do runs fn until it succeeds, returns a [Permanent] error, or the
// attempt budget or ctx runs out.  fn receives the 1-based attempt
// number.  With MaxAttempts == 1 the error comes back unwrapped.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return errors.Unwrap(err)
		case b.MaxAttempts == 1:
			return err
		case b.MaxAttempts > 0 && attempt >= b.MaxAttempts:
			return fmt.Errorf("giving up after %d attempts: %w", b.MaxAttempts, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// addJitter moves d by up to ±25%, never below a millisecond.
func addJitter(d time.Duration) time.Duration {
	spread := float64(d) / 2
	j := time.Duration(float64(d) - spread/2 + rand.Float64()*spread)
	return max(j, time.Millisecond)
}

// Package retry runs an operation with exponential backoff and full jitter.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy is used by callers that do not configure one.
var DefaultPolicy = Policy{
	Attempts:  3,
	BaseDelay: 250 * time.Millisecond,
	MaxDelay:  2 * time.Second,
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

type runner struct {
	jitter  func() float64
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err error, delay time.Duration)
}

// Option customises a single Do call.
type Option func(*runner)

// WithJitter replaces the U(0,1) source (tests).
func WithJitter(fn func() float64) Option {
	return func(r *runner) {
		r.jitter = fn
	}
}

// WithSleep replaces the context-aware sleeper (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *runner) {
		r.sleep = fn
	}
}

// WithOnRetry registers a hook invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *runner) {
		r.onRetry = fn
	}
}

// Do executes op up to p.Attempts times. A non-retryable error, or the error of
// the final attempt, is returned unchanged. No delay follows the last attempt.
func Do[T any](ctx context.Context, p Policy, retryIf Classifier, op func(context.Context) (T, error), opts ...Option) (T, error) {
	r := runner{jitter: rand.Float64, sleep: sleepContext}
	for _, opt := range opts {
		opt(&r)
	}

	attempts := max(1, p.Attempts)
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if attempt >= attempts || retryIf == nil || !retryIf(err) {
			return zero, err
		}

		delay := Backoff(attempt, p.BaseDelay, p.MaxDelay, r.jitter())
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}
		if delay > 0 {
			if serr := r.sleep(ctx, delay); serr != nil {
				return zero, err
			}
		}
	}
}

// Backoff computes min(maxDelay, base*2^(attempt-1)) scaled by jitter in [0,1).
// The result is never negative.
func Backoff(attempt int, base, maxDelay time.Duration, jitter float64) time.Duration {
	base = max(0, base)
	maxDelay = max(0, maxDelay)
	if attempt < 1 {
		attempt = 1
	}

	delay := maxDelay
	// Cap the shift so the multiplication cannot overflow.
	if shift := attempt - 1; shift < 32 {
		if d := base << shift; d >= 0 && d < maxDelay {
			delay = d
		}
	}

	jitter = min(max(jitter, 0), 1)
	return time.Duration(float64(delay) * jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package circuit implements a consecutive-failure circuit breaker guarding one
// external dependency.
//
// States:
//   - closed: calls pass through; failures are counted
//   - open: BeforeCall fails fast with *OpenError until the reset timeout elapses
//   - half-open: implicit; the first call after the reset timeout is attempted and
//     either closes the circuit (success) or re-opens it (failure)
package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 90 * time.Second
)

// State is the externally observable breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen is matched by errors.Is for every *OpenError.
var ErrOpen = errors.New("circuit open")

// OpenError is returned by BeforeCall while the circuit is open.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s", e.Name)
}

func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// StateChange reports transitions caused by a Record call.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	name             string
	enabled          bool
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	consecutiveFailures int
	openUntil           time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Values below 1 are clamped to 1.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		b.failureThreshold = max(1, n)
	}
}

// WithResetTimeout sets how long the circuit stays open. Values below one second
// are clamped to one second.
func WithResetTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		b.resetTimeout = max(time.Second, d)
	}
}

// WithEnabled turns the breaker on or off. A disabled breaker never rejects calls
// and ignores failures.
func WithEnabled(enabled bool) Option {
	return func(b *Breaker) {
		b.enabled = enabled
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a closed, enabled breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		enabled:          true,
		failureThreshold: defaultFailureThreshold,
		resetTimeout:     defaultResetTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// BeforeCall returns *OpenError if the circuit is open. It never blocks.
func (b *Breaker) BeforeCall() error {
	if !b.enabled {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now().Before(b.openUntil) {
		return &OpenError{Name: b.name, RetryAt: b.openUntil}
	}
	return nil
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *Breaker) RecordSuccess() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	tripped := b.consecutiveFailures >= b.failureThreshold
	b.consecutiveFailures = 0
	b.openUntil = time.Time{}
	return StateChange{Closed: b.enabled && tripped}
}

// RecordFailure counts a dependency failure and opens the circuit once the
// threshold is reached. A failure in the half-open state re-opens it.
func (b *Breaker) RecordFailure() StateChange {
	if !b.enabled {
		return StateChange{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures < b.failureThreshold {
		return StateChange{}
	}
	now := b.now()
	wasOpen := now.Before(b.openUntil)
	b.openUntil = now.Add(b.resetTimeout)
	return StateChange{Opened: !wasOpen}
}

// State reports the current state.
func (b *Breaker) State() State {
	if !b.enabled {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.now().Before(b.openUntil):
		return StateOpen
	case b.consecutiveFailures >= b.failureThreshold:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.openUntil = time.Time{}
}

package repository

import (
	"sync"
	"time"

	"github.com/okian/nakshatra/pkg/metrics"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker rejects calls with ErrUnavailable after maxFailures consecutive
// failures, then lets a single trial call through once resetTimeout has passed.
type breaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	now          func() time.Time
}

func newBreaker(maxFailures int, resetTimeout time.Duration, now func() time.Time) *breaker {
	return &breaker{maxFailures: maxFailures, resetTimeout: resetTimeout, now: now}
}

// execute runs fn unless the breaker is open. Errors for which isOutcome
// holds pass through without counting as failures.
func (b *breaker) execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.lastFailure) <= b.resetTimeout {
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.transition(breakerHalfOpen)
	case breakerHalfOpen:
		b.mu.Unlock()
		return ErrUnavailable
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && !isOutcome(err) {
		b.failures++
		b.lastFailure = b.now()
		if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(breakerOpen)
		}
		return err
	}
	if b.state == breakerHalfOpen {
		b.transition(breakerClosed)
	}
	b.failures = 0
	return err
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) transition(to breakerState) {
	if b.state == to {
		return
	}
	if to == breakerOpen {
		metrics.RecordErrorByType("breaker_open", "warning")
	}
	b.state = to
	if to == breakerClosed {
		b.failures = 0
	}
}

package ai

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker opens after maxFailures consecutive failures and rejects calls until
// timeout elapses, then lets a single trial call through (half-open). Other
// callers are rejected while the trial is in flight.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	trial       bool // a half-open call is in flight
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewBreaker creates a circuit breaker
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Execute runs fn if the circuit allows it. Only errors for which countAsFailure
// returns true move the breaker toward open; caller cancellations don't.
func (b *Breaker) Execute(fn func() error, countAsFailure func(error) bool) error {
	allowed, trial := b.allowRequest()
	if !allowed {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trial = false
	}
	switch {
	case err == nil:
		b.onSuccess()
	case countAsFailure == nil || countAsFailure(err):
		b.onFailure()
	}
	return err
}

// Open reports whether the breaker is currently rejecting calls
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && b.now().Sub(b.openedAt) < b.timeout
}

// allowRequest reports whether a call may run and whether it is the
// half-open trial.
func (b *Breaker) allowRequest() (allowed, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true, false
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, false
		}
		b.state = stateHalfOpen
	}
	if b.trial {
		return false, false
	}
	b.trial = true
	return true, true
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = stateClosed
}

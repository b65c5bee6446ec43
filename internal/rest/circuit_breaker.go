// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/seitokai/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit open, requests blocked
	StateHalfOpen              // Testing if the API recovered
)

// ErrCircuitOpen is returned without contacting the API while the circuit is open.
var ErrCircuitOpen = errors.New("rest: circuit breaker is open")

// CircuitBreaker stops hammering the API after repeated upstream failures.
type CircuitBreaker struct {
	component        string
	shouldTrip       func(error) bool
	mu               sync.RWMutex
	state            State
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	lastFailure      time.Time
	now              func() time.Time
}

// NewCircuitBreaker creates a closed breaker. Only errors for which
// shouldTrip returns true count towards the threshold; a nil shouldTrip
// counts every error.
func NewCircuitBreaker(component string, threshold int, resetTimeout time.Duration, shouldTrip func(error) bool) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	if shouldTrip == nil {
		shouldTrip = func(error) bool { return true }
	}
	cb := &CircuitBreaker{
		component:        component,
		shouldTrip:       shouldTrip,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
	metrics.SetCircuitBreakerState(component, stateLabel(cb.state))
	return cb
}

// Execute runs fn if the circuit is closed or half-open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	return cb.ExecuteContext(context.Background(), fn)
}

// ExecuteContext is Execute for calls bound to ctx. A failure that coincides
// with ctx ending is the caller giving up and leaves the breaker untouched.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	switch {
	case err != nil && ctx.Err() != nil:
		// caller gave up, not a verdict on the API
	case err == nil:
		cb.recordSuccess()
	case cb.shouldTrip(err):
		cb.recordFailure()
	default:
		// the API answered, so it is healthy even if the request was rejected
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	switch cb.state {
	case StateClosed, StateHalfOpen:
		cb.mu.Unlock()
		return true
	}

	if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.mu.Unlock()
		metrics.SetCircuitBreakerState(cb.component, stateLabel(StateHalfOpen))
		return true
	}
	cb.mu.Unlock()
	return false
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	prevState := cb.state

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
	state := cb.state
	cb.mu.Unlock()

	if state != prevState {
		metrics.SetCircuitBreakerState(cb.component, stateLabel(state))
		reason := "threshold"
		if prevState == StateHalfOpen {
			reason = "probe_failed"
		}
		metrics.RecordCircuitBreakerTrip(cb.component, reason)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	prevState := cb.state
	cb.failures = 0
	cb.state = StateClosed
	cb.mu.Unlock()
	if prevState != StateClosed {
		metrics.SetCircuitBreakerState(cb.component, stateLabel(StateClosed))
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func stateLabel(state State) string {
	switch state {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

package eduapi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker guards one backend dependency. The client keeps two
// instances: "api" for general calls and "auth" for authentication calls,
// which uses a lower threshold and shorter timeouts so auth failures
// surface faster.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker creates a named circuit breaker. Zero config fields get
// defaults: threshold 5, recovery 10s, one probe success to close, 60s
// operation timeout.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 10 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = 60 * time.Second
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Allow checks whether a call may proceed. An open circuit whose recovery
// timeout has elapsed transitions to half-open and lets one probe through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure records a failed call. Reaching the threshold while closed
// opens the circuit; any failure while half-open re-opens it and restarts
// the recovery window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.successes = 0
	}
}

// RecordSuccess records a successful call. Enough successes while half-open
// close the circuit and reset the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.config.SuccessThreshold {
		cb.state = StateClosed
		cb.failures = 0
		cb.successes = 0
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the recorded consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Name returns the breaker's dependency name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs op through the breaker, racing it against the configured
// operation timeout; a timeout counts as a failure. When the circuit is
// open and the recovery window has not elapsed, Execute fails fast without
// invoking op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if !cb.Allow() {
		return &APIError{
			Kind:      KindCircuitOpen,
			Message:   fmt.Sprintf("%s circuit breaker is open", cb.name),
			Timestamp: time.Now(),
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, cb.config.OpTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	var err error
	select {
	case err = <-done:
	case <-opCtx.Done():
		err = &APIError{
			Kind:      KindTimeout,
			Message:   fmt.Sprintf("%s operation timed out after %s", cb.name, cb.config.OpTimeout),
			Cause:     opCtx.Err(),
			Timestamp: time.Now(),
		}
	}

	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

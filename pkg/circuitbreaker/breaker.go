// Package circuitbreaker guards the settlement collaborator against
// sustained outages: after enough failures inside a rolling window the
// breaker opens and execution attempts are skipped until a reset timeout
// elapses.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/paystream-hq/paystreamer/pkg/logger"
)

// CircuitBreaker counts failures in a rolling window and trips when a
// threshold is crossed. A disabled breaker never opens.
type CircuitBreaker struct {
	enabled       bool
	failThreshold int
	failureWindow time.Duration
	resetTimeout  time.Duration
	logger        logger.Logger

	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	tripped      bool
	tripTime     time.Time
}

// New creates a circuit breaker.
func New(enabled bool, threshold int, window, resetTimeout time.Duration, log logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		logger:        log,
	}
}

// RecordFailure registers a failed settlement attempt. It returns true when
// the circuit is open after recording.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if cb.tripped {
		if now.Sub(cb.tripTime) > cb.resetTimeout {
			cb.logger.Notice("Circuit breaker reset timeout elapsed, closing")
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true
		}
	}

	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		cb.logger.Error("Circuit breaker tripped after %d failures in window", cb.failureCount)
		return true
	}

	return false
}

// RecordSuccess clears the failure count after a successful attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
}

// IsOpen reports whether settlement attempts should be skipped. An open
// breaker closes itself once the reset timeout has elapsed.
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.tripped && time.Since(cb.tripTime) > cb.resetTimeout {
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// Reset closes the circuit unconditionally.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
}

// State returns the current failure count and trip status for health
// reporting.
func (cb *CircuitBreaker) State() (failureCount int, tripped bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount, cb.tripped
}

// IsEnabled reports whether the breaker is active.
func (cb *CircuitBreaker) IsEnabled() bool {
	return cb.enabled
}

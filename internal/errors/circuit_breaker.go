package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	// ConsecutiveFailureTrip is how many collaborator failures in a row open the circuit.
	ConsecutiveFailureTrip = 3
	// OpenDuration is how long the circuit stays open before a probe is allowed.
	OpenDuration = 30 * time.Second
)

// ErrCircuitOpen is returned without invoking the wrapped call. Callers fall
// back to their deterministic path instead of waiting on a dead collaborator.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the text-understanding collaborator: after repeated
// failures it fails fast so turns degrade to local heuristics immediately.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	openedAt    time.Time
	open        bool
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{}
}

// Call invokes fn unless the circuit is open. A success closes the circuit,
// a failure counts toward tripping it.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.open {
		if time.Since(cb.openedAt) < OpenDuration {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		// Half-open: let this call probe the collaborator.
		cb.open = false
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr != nil {
		cb.failures++
		if cb.failures >= ConsecutiveFailureTrip {
			cb.open = true
			cb.openedAt = time.Now()
		}
		return callErr
	}

	cb.failures = 0
	return nil
}

// Open reports whether the circuit is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open && time.Since(cb.openedAt) < OpenDuration
}

package resilience

import (
	"errors"
	"sync"
	"time"

	"chat-brain/backend/pkg/logger"
)

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means the circuit is closed and requests pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means the circuit is open and requests are short-circuited
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means the circuit is allowing a limited number of test requests
	StateHalfOpen CircuitBreakerState = "half-open"
)

// ErrCircuitOpen is returned when the circuit rejects a request without
// invoking the wrapped function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     60 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern around an unreliable
// downstream call.
type CircuitBreaker struct {
	name             string
	state            CircuitBreakerState
	failureThreshold uint
	successThreshold uint
	retryTimeout     time.Duration
	mutex            sync.Mutex
	failureCount     uint
	successCount     uint
	nextAttemptTime  time.Time
	log              *logger.Logger
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             config.Name,
		state:            StateClosed,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		retryTimeout:     config.RetryTimeout,
		log:              log,
	}
}

// Execute runs fn through the circuit breaker
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().After(cb.nextAttemptTime) {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.successCount = 0
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.nextAttemptTime = time.Now().Add(cb.retryTimeout)
			cb.transition(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// transition changes state and resets the counters. Caller must hold the lock.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	if cb.state == to {
		return
	}

	cb.log.Warn("circuit breaker state change",
		"name", cb.name,
		"from", string(cb.state),
		"to", string(to),
	)

	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
}

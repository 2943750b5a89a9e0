package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the breaker position.
type CircuitState int

const (
	// StateClosed: limit checks run normally.
	StateClosed CircuitState = iota

	// StateOpen: the limiter backend is considered broken. Requests are
	// admitted without checking (fail-open) so a dead Redis cannot take
	// the API down with it.
	StateOpen

	// StateHalfOpen: recovery probe. The next check runs for real; its
	// outcome closes or reopens the circuit.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures. Default 10.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before probing.
	// Default 30s.
	RecoveryTimeout time.Duration

	// Clock for testing. Default SystemClock.
	Clock Clock

	// Metrics receives state transitions. Default no-op.
	Metrics RateLimitMetrics

	// LimiterType labels the metrics ("ip", "user", "webhook").
	LimiterType string
}

// CircuitBreaker shields request handling from a failing rate limit backend.
// It fails open: an open circuit means rate limiting is skipped, trading
// strictness for availability.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failures     int
	stateChanged time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}

	cb := &CircuitBreaker{
		config:       config,
		state:        StateClosed,
		stateChanged: config.Clock.Now(),
	}
	config.Metrics.RecordCircuitState(config.LimiterType, StateClosed.String())
	return cb
}

// Execute runs the operation under breaker protection. With the circuit open
// it returns nil without running the operation, which callers treat as
// "limit check unavailable, admit the request".
func (cb *CircuitBreaker) Execute(operation func() error) error {
	if !cb.shouldAttempt() {
		return nil
	}

	if err := operation(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed. For tests and manual intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}

// shouldAttempt reports whether the operation should run, moving an expired
// open circuit to half-open.
func (cb *CircuitBreaker) shouldAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.config.Clock.Now().Sub(cb.stateChanged) < cb.config.RecoveryTimeout {
			return false
		}
		cb.transition(StateHalfOpen)
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		// The probe failed; back to open for another timeout.
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold:
		cb.transition(StateOpen)
	}
}

// transition moves to a new state and records it. Caller holds the lock.
func (cb *CircuitBreaker) transition(next CircuitState) {
	if cb.state == next {
		cb.stateChanged = cb.config.Clock.Now()
		return
	}
	prev := cb.state
	cb.state = next
	cb.stateChanged = cb.config.Clock.Now()
	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, next.String())

	slog.Warn("rate limit circuit breaker state changed",
		slog.String("limiter_type", cb.config.LimiterType),
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
		slog.Int("consecutive_failures", cb.failures))
}

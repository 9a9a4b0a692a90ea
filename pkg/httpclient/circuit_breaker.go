package httpclient

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota + 1
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after maxFailures consecutive failures and rejects
// calls for openTimeout. After that a single probe is let through: success
// closes the breaker, failure opens it again.
//
// A nil *CircuitBreaker is valid and never trips.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	openSince   time.Time
	openTimeout time.Duration
	now         func() time.Time
}

// NewCircuitBreaker returns nil when maxFailures <= 0, which disables the
// breaker.
func NewCircuitBreaker(maxFailures int, openTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		return nil
	}
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		openTimeout: openTimeout,
		now:         time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	if cb == nil {
		return StateClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) CheckBeforeRequest() error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openSince) >= cb.openTimeout {
			zap.L().Warn("circuit breaker: open -> half-open")
			cb.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		// A probe is already in flight.
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		zap.L().Info("circuit breaker: half-open -> closed")
	}
	cb.state = StateClosed
	cb.failures = 0
}

func (cb *CircuitBreaker) OnFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		zap.L().Error("circuit breaker: half-open -> open (probe failed)")
		cb.state = StateOpen
		cb.openSince = cb.now()

	case StateClosed:
		cb.failures++
		zap.L().Warn("circuit breaker: failure recorded", zap.Int("count", cb.failures))

		if cb.failures >= cb.maxFailures {
			zap.L().Error("circuit breaker: closed -> open (threshold reached)", zap.Int("failures", cb.failures))
			cb.state = StateOpen
			cb.openSince = cb.now()
		}
	}
}

// OnAbort is called when the caller gave up before the outcome was known.
// A half-open breaker goes back to open without restarting its cooldown, so
// the next request becomes the probe.
func (cb *CircuitBreaker) OnAbort() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
	}
}

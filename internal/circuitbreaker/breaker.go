package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking calls
	StateHalfOpen              // Testing recovery with one trial call
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// StateChangeFunc is notified after a breaker changes state. It is invoked
// on its own goroutine so observers cannot block or deadlock the breaker.
type StateChangeFunc func(name string, from, to State)

type CircuitBreaker struct {
	name string

	mutex            sync.Mutex
	state            State
	failures         int
	lastStateChange  time.Time
	trialInFlight    bool
	failureThreshold int
	resetTimeout     time.Duration

	logger        *slog.Logger
	onStateChange StateChangeFunc
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
// Non-positive threshold or timeout values fall back to the package defaults.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		logger:           logger,
	}
}

// Allow reports whether a call may proceed right now. Every admitted call
// must later record its outcome with RecordSuccess or RecordFailure; while
// half-open the admitted call is the single trial and all others are denied
// until its outcome arrives.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.resetTimeout {
			cb.transition(StateHalfOpen)
			cb.failures = 0
			cb.trialInFlight = true
			return true
		}
		cb.logger.Debug("call blocked by open circuit",
			slog.String("breaker", cb.name))
		return false

	case StateHalfOpen:
		if cb.trialInFlight {
			cb.logger.Debug("call blocked, trial already in flight",
				slog.String("breaker", cb.name))
			return false
		}
		cb.trialInFlight = true
		return true

	default:
		return true
	}
}

// RecordSuccess resets the consecutive-failure counter and, if the breaker
// was half-open, closes it again.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0

	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
		cb.transition(StateClosed)
	}
}

// RecordFailure increments the consecutive-failure counter. A failed trial
// reopens the breaker immediately; reaching the threshold while closed opens
// it. Failures recorded while already open leave the timeout clock untouched
// so that recovery probing cannot starve under a sustained failure burst.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++

	switch {
	case cb.state == StateHalfOpen:
		cb.trialInFlight = false
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.failureThreshold:
		cb.transition(StateOpen)
	}
}

// Execute runs op if the circuit admits it. The first return value is true
// when op actually ran, false when the circuit blocked the call without
// invoking it. An error returned by op is recorded as a failure and passed
// back unchanged; the breaker never swallows or wraps it.
func (cb *CircuitBreaker) Execute(op func() error) (bool, error) {
	if !cb.Allow() {
		return false, nil
	}

	if err := op(); err != nil {
		cb.RecordFailure()
		return true, err
	}

	cb.RecordSuccess()
	return true, nil
}

// ExecuteContext is Execute for context-aware operations. The breaker
// imposes no deadline of its own; cancellation is the caller's contract
// with op.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, op func(context.Context) error) (bool, error) {
	if !cb.Allow() {
		return false, nil
	}

	if err := op(ctx); err != nil {
		cb.RecordFailure()
		return true, err
	}

	cb.RecordSuccess()
	return true, nil
}

// Trip forces the breaker open regardless of the failure count. A breaker
// that is already open is left untouched.
func (cb *CircuitBreaker) Trip() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		return
	}

	cb.trialInFlight = false
	cb.transition(StateOpen)
}

// Reset forces the breaker closed and zeroes the failure count. Intended
// for manual recovery or administrative override.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.trialInFlight = false

	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Name returns the registry key this breaker was created under.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) setOnStateChange(fn StateChangeFunc) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = fn
}

// transition must be called with cb.mutex held. Only entering the open
// state refreshes the state-change timestamp that drives timeout expiry.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to

	switch to {
	case StateOpen:
		cb.lastStateChange = time.Now()
		cb.logger.Warn("circuit opened",
			slog.String("breaker", cb.name),
			slog.String("from", from.String()),
			slog.Int("failures", cb.failures))
	case StateHalfOpen:
		cb.logger.Info("circuit half-open, admitting trial call",
			slog.String("breaker", cb.name))
	case StateClosed:
		cb.logger.Info("circuit closed",
			slog.String("breaker", cb.name),
			slog.String("from", from.String()))
	}

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

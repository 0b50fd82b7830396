// Package resilience provides the failure-handling primitives for the live
// pipeline: a circuit breaker for the transcription and verse-search
// endpoints, a fallback group for trying secondary providers or translations,
// and a bounded retry policy for transient transport errors.
//
// The central type is [CircuitBreaker], a classic three-state breaker
// (closed, open, half-open). A dead transcription endpoint trips the
// breaker so continuous chunk uploads stop burning network attempts; a
// half-open probe restores it once the endpoint recovers. [FallbackGroup]
// composes multiple instances of any provider type with per-entry breakers,
// and [Policy] expresses retry-with-backoff as data so call sites stay free
// of ad hoc retry loops.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen rejects calls while the breaker is open and the reset
// timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probes through; their outcome
	// decides between closing and re-opening.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages, e.g. "whisper-http".
	Name string

	// MaxFailures is the closed-state failure streak that trips the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is the open-state dwell time before probing resumes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls per half-open episode. Default: 3.
	HalfOpenMax int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// CircuitBreaker is a three-state breaker. Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu            sync.Mutex
	state         State
	failStreak    int
	lastFailure   time.Time
	halfOpenCalls int
	halfOpenFails int
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          cfg.Now,
	}
}

// Execute runs fn when the breaker allows it and feeds the outcome back into
// the state machine. Open-state calls fail fast with [ErrCircuitOpen].
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure(probe)
	} else {
		cb.onSuccess(probe)
	}
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
		slog.Info("circuit breaker transitioning to half-open", "name", cb.name)

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.halfOpenCalls++
		return true, nil
	}
	return false, nil
}

// onFailure must run with cb.mu held.
func (cb *CircuitBreaker) onFailure(probe bool) {
	cb.lastFailure = cb.now()

	if probe {
		// One failed probe re-opens immediately.
		cb.halfOpenFails++
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name, "consecutive_failures", cb.failStreak)
	}
}

// onSuccess must run with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		cb.failStreak = 0
		return
	}
	if cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.failStreak = 0
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
		slog.Info("circuit breaker closed after successful probes", "name", cb.name)
	}
}

// State reports the effective state: an open breaker whose timeout has
// elapsed reads as half-open even though the transition lands on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failStreak = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}

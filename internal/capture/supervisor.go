package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Supervisor owns the capture session: at most one is active process-wide,
// running exactly one strategy at a time. A mid-stream failure of the
// primary strategy swaps to the fallback exactly once per session and never
// back.
type Supervisor struct {
	primary  Strategy
	fallback Strategy
	onState  func(SessionState)
	log      *slog.Logger

	seq atomic.Uint64

	mu                sync.Mutex
	ctx               context.Context
	emit              FragmentFunc
	current           Strategy
	sessionID         string
	startedAt         time.Time
	active            bool
	starting          bool
	fallbackAttempted bool
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithFallback sets the strategy swapped in after a primary failure.
func WithFallback(s Strategy) SupervisorOption {
	return func(sup *Supervisor) { sup.fallback = s }
}

// WithStateListener registers a callback invoked with a state snapshot on
// every session transition. Called outside the supervisor lock.
func WithStateListener(fn func(SessionState)) SupervisorOption {
	return func(sup *Supervisor) { sup.onState = fn }
}

// WithSupervisorLogger overrides the default logger.
func WithSupervisorLogger(log *slog.Logger) SupervisorOption {
	return func(sup *Supervisor) { sup.log = log }
}

// NewSupervisor creates a Supervisor with primary as the preferred strategy.
func NewSupervisor(primary Strategy, opts ...SupervisorOption) *Supervisor {
	sup := &Supervisor{
		primary: primary,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(sup)
	}
	return sup
}

// Start begins a capture session delivering fragments to emit. Starting an
// already-active session is a logged no-op. When the primary strategy cannot
// start and a fallback exists, the fallback is tried immediately and the
// one-shot swap is consumed; only a failure of both is returned.
func (s *Supervisor) Start(ctx context.Context, emit FragmentFunc) error {
	s.mu.Lock()
	// The starting latch holds the single-session invariant across the
	// unlocked strategy.Start below; a second Start racing in here must not
	// launch a second device capture.
	if s.active || s.starting {
		s.mu.Unlock()
		s.log.Info("capture session already active, ignoring start")
		return nil
	}
	s.starting = true

	id := fmt.Sprintf("session-%d", s.seq.Add(1))
	s.ctx = ctx
	s.emit = emit
	s.sessionID = id
	s.startedAt = time.Now()
	s.fallbackAttempted = false
	s.mu.Unlock()

	strategy := s.primary
	err := strategy.Start(ctx, id, emit, s.failureHandler(id))
	if err != nil && s.fallback != nil {
		s.log.Warn("primary capture strategy failed to start, falling back",
			"primary", s.primary.Kind(), "fallback", s.fallback.Kind(), "error", err)
		s.mu.Lock()
		s.fallbackAttempted = true
		s.mu.Unlock()
		strategy = s.fallback
		err = strategy.Start(ctx, id, emit, s.failureHandler(id))
	}
	if err != nil {
		s.mu.Lock()
		s.starting = false
		s.sessionID = ""
		s.emit = nil
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.current = strategy
	s.active = true
	s.starting = false
	state := s.stateLocked()
	s.mu.Unlock()

	s.notify(state)
	return nil
}

// Stop ends the session. Idempotent; the device is released before Stop
// returns. In-flight work completes in the background and its fragments are
// rejected downstream by session ID.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	strategy := s.current
	s.active = false
	s.current = nil
	s.sessionID = ""
	s.emit = nil
	state := s.stateLocked()
	s.mu.Unlock()

	strategy.Stop()
	s.log.Info("capture session stopped")
	s.notify(state)
}

// Active reports whether a session is running.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SessionID returns the active session's ID, empty when idle.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// State returns a snapshot of the session.
func (s *Supervisor) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Supervisor) stateLocked() SessionState {
	st := SessionState{
		Active:            s.active,
		SessionID:         s.sessionID,
		FallbackAttempted: s.fallbackAttempted,
		StartedAt:         s.startedAt,
	}
	if s.current != nil {
		st.Strategy = s.current.Kind()
	}
	return st
}

// failureHandler builds the one-shot mid-stream failure callback for the
// given session. The swap runs on its own goroutine because strategies
// report failures from the goroutines Stop has to join.
func (s *Supervisor) failureHandler(id string) func(error) {
	return func(err error) {
		go s.handleFailure(id, err)
	}
}

func (s *Supervisor) handleFailure(id string, err error) {
	s.mu.Lock()
	if !s.active || s.sessionID != id {
		s.mu.Unlock()
		return
	}
	failed := s.current
	canSwap := s.fallback != nil && !s.fallbackAttempted && failed != s.fallback
	if !canSwap {
		s.active = false
		s.current = nil
		s.sessionID = ""
		state := s.stateLocked()
		s.mu.Unlock()

		s.log.Error("capture strategy failed with no fallback available, session ended", "error", err)
		failed.Stop()
		s.notify(state)
		return
	}

	s.fallbackAttempted = true
	ctx, emit := s.ctx, s.emit
	s.mu.Unlock()

	s.log.Warn("capture strategy failed mid-stream, swapping to fallback",
		"failed", failed.Kind(), "fallback", s.fallback.Kind(), "error", err)
	failed.Stop()

	if serr := s.fallback.Start(ctx, id, emit, s.failureHandler(id)); serr != nil {
		s.mu.Lock()
		s.active = false
		s.current = nil
		s.sessionID = ""
		state := s.stateLocked()
		s.mu.Unlock()

		s.log.Error("fallback capture strategy failed to start, session ended", "error", serr)
		s.notify(state)
		return
	}

	s.mu.Lock()
	s.current = s.fallback
	state := s.stateLocked()
	s.mu.Unlock()
	s.notify(state)
}

func (s *Supervisor) notify(state SessionState) {
	if s.onState != nil {
		s.onState(state)
	}
}

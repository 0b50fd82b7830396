package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed reports that every backend in a [FallbackGroup] either failed
// or sat behind an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is applied to the breaker guarding each backend.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup orders a primary backend and its fallbacks, each behind its
// own circuit breaker. Transcription uses it to fail over from a local
// whisper endpoint to a hosted API mid-session.
//
// Register all fallbacks before the first call; the entry list is not locked.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a backend behind the previously registered ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len counts registered backends, primary included.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// ExecuteWithResult runs fn against each backend in order until one succeeds,
// skipping entries with an open breaker. A package-level function because Go
// methods cannot introduce the result type parameter.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", entry.name)
			continue
		}
		slog.Warn("provider failed, trying next", "provider", entry.name, "error", err)
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

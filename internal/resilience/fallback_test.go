package resilience

import (
	"errors"
	"testing"
	"time"
)

func newStringGroup(cb CircuitBreakerConfig) *FallbackGroup[string] {
	fg := NewFallbackGroup("whisper-local", "whisper-local", FallbackConfig{CircuitBreaker: cb})
	fg.AddFallback("openai", "openai")
	return fg
}

func TestFallbackPrefersPrimary(t *testing.T) {
	fg := newStringGroup(CircuitBreakerConfig{MaxFailures: 3})

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "whisper-local" {
		t.Fatalf("served by %q, want primary", got)
	}
}

func TestFallbackFailsOver(t *testing.T) {
	fg := newStringGroup(CircuitBreakerConfig{MaxFailures: 3})

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "whisper-local" {
			return "", errTest
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "openai" {
		t.Fatalf("served by %q, want fallback", got)
	}
}

func TestFallbackAllBackendsDown(t *testing.T) {
	fg := newStringGroup(CircuitBreakerConfig{MaxFailures: 3})

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackSkipsOpenBreaker(t *testing.T) {
	fg := newStringGroup(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	// Open the primary's breaker.
	for i := 0; i < 2; i++ {
		ExecuteWithResult(fg, func(v string) (string, error) {
			if v == "whisper-local" {
				return "", errTest
			}
			return v, nil
		})
	}

	primaryCalled := false
	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "whisper-local" {
			primaryCalled = true
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if primaryCalled {
		t.Error("open breaker did not skip the primary")
	}
	if got != "openai" {
		t.Errorf("served by %q, want fallback", got)
	}
}

func TestFallbackLen(t *testing.T) {
	fg := newStringGroup(CircuitBreakerConfig{})
	if fg.Len() != 2 {
		t.Errorf("Len = %d, want 2", fg.Len())
	}
}

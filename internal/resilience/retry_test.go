package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordSleeps returns a Sleep override capturing each wait duration.
func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestPolicy_SuccessFirstTry(t *testing.T) {
	var waits []time.Duration
	p := Policy{Sleep: recordSleeps(&waits)}

	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(waits) != 0 {
		t.Errorf("slept %d times on immediate success", len(waits))
	}
}

func TestPolicy_RetriesWithDefaultBackoff(t *testing.T) {
	var waits []time.Duration
	p := Policy{Sleep: recordSleeps(&waits)}

	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestPolicy_ExhaustsBudget(t *testing.T) {
	var waits []time.Duration
	p := Policy{MaxRetries: 2, Sleep: recordSleeps(&waits)}

	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errTest
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want wrapped errTest", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestPolicy_LastBackoffEntryRepeats(t *testing.T) {
	var waits []time.Duration
	p := Policy{
		MaxRetries: 4,
		Backoff:    []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
		Sleep:      recordSleeps(&waits),
	}

	_ = p.Do(context.Background(), "op", func(context.Context) error { return errTest })

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		20 * time.Millisecond,
		20 * time.Millisecond,
	}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	fatal := errors.New("quota exceeded")
	p := Policy{
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}

	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want the fatal error unmodified", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable must not retry)", calls)
	}
}

func TestPolicy_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := p.Do(ctx, "op", func(context.Context) error {
		calls++
		return errTest
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

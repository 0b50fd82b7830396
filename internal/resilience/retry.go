package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy is an enumerable retry policy: how many retries, how long to wait
// between them, and which errors are worth retrying at all. Expressing the
// policy as data keeps it independently testable from the call sites that
// apply it.
type Policy struct {
	// MaxRetries is the number of retry attempts made after the initial
	// call fails. Default: 3.
	MaxRetries int

	// Backoff is the wait schedule between attempts. Retry n waits
	// Backoff[n-1]; when the schedule is shorter than MaxRetries the last
	// entry repeats. Default: 500ms, 1s, 2s.
	Backoff []time.Duration

	// Retryable reports whether an error is transient. A nil predicate
	// retries every error. Non-retryable errors (quota exhaustion,
	// permission denials) are returned immediately.
	Retryable func(error) bool

	// Sleep overrides the wait implementation, for tests. The default
	// honours ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff is the standard exponential schedule applied to
// rate-limited transcription and search calls.
var DefaultBackoff = []time.Duration{
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
}

// Do runs op, retrying according to the policy. It returns nil as soon as an
// attempt succeeds, the last error once the retry budget is exhausted, and
// the error unmodified when Retryable rejects it or ctx is cancelled.
func (p Policy) Do(ctx context.Context, name string, op func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := p.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= maxRetries {
			break
		}

		wait := backoff[min(attempt, len(backoff)-1)]
		slog.Warn("transient error, backing off",
			"op", name,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"wait", wait,
			"error", err,
		)
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", name, maxRetries+1, err)
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package detect gates the stream of transcript fragments into discrete
// detection events.
//
// The gate sits between capture and projection: every fragment is checked
// against a cooldown window, the active session, and a trigger-phrase set
// before the matcher is consulted at all. This keeps the projection surface
// from flapping while the preacher is mid-sentence and keeps matcher load
// proportional to actual scripture cues, not to raw speech volume.
package detect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/versecast/versecast/internal/capture"
	"github.com/versecast/versecast/internal/match"
)

// DefaultCooldown is the minimum interval between detection events.
const DefaultCooldown = 5000 * time.Millisecond

// DetectionEvent is an accepted detection: ranked candidates plus the
// fragment that produced them.
type DetectionEvent struct {
	Candidates []match.Candidate
	Fragment   capture.TranscriptFragment
	DetectedAt time.Time
}

// Searcher is the matcher dependency; satisfied by [match.Matcher].
type Searcher interface {
	Search(ctx context.Context, query string) ([]match.Candidate, error)
}

// Gate filters fragments into detection events. Safe for concurrent use,
// though fragment delivery is expected to be a single goroutine.
type Gate struct {
	searcher Searcher
	now      func() time.Time
	log      *slog.Logger

	mu          sync.Mutex
	triggers    *triggerSet
	cooldown    time.Duration
	sessionID   string
	lastTrigger time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithCooldown overrides [DefaultCooldown].
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithExtraTriggers appends operator-configured trigger phrases.
func WithExtraTriggers(phrases []string) Option {
	return func(g *Gate) { g.triggers = newTriggerSet(phrases) }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a Gate over searcher.
func NewGate(searcher Searcher, opts ...Option) *Gate {
	g := &Gate{
		searcher: searcher,
		triggers: newTriggerSet(nil),
		cooldown: DefaultCooldown,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetSession records the active capture session. Fragments carrying any
// other session ID are ignored. An empty ID (no active session) rejects all
// fragments.
func (g *Gate) SetSession(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = id
}

// SetCooldown swaps the cooldown window at runtime. Non-positive values are
// ignored.
func (g *Gate) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldown = d
}

// SetTriggers rebuilds the trigger set with the given extra phrases on top of
// the built-in ones.
func (g *Gate) SetTriggers(phrases []string) {
	set := newTriggerSet(phrases)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triggers = set
}

// OnFragment runs the detection pipeline for one fragment. It returns
// (nil, nil) for every non-detection: stale session, cooldown, no trigger,
// empty match, or a temporarily unavailable matcher. The cooldown is checked
// before the matcher is invoked so suppressed fragments cost nothing.
func (g *Gate) OnFragment(ctx context.Context, frag capture.TranscriptFragment) (*DetectionEvent, error) {
	g.mu.Lock()
	if frag.SessionID != g.sessionID || g.sessionID == "" {
		g.mu.Unlock()
		g.log.Debug("dropping fragment from stale session",
			"fragment_session", frag.SessionID, "active_session", g.sessionID)
		return nil, nil
	}
	now := g.now()
	if !g.lastTrigger.IsZero() && now.Sub(g.lastTrigger) < g.cooldown {
		g.mu.Unlock()
		return nil, nil
	}
	triggers := g.triggers
	g.mu.Unlock()

	var candidates []match.Candidate
	switch {
	case len(frag.PreResolved) > 0:
		// The endpoint already resolved references; adopt them directly.
		for _, v := range frag.PreResolved {
			candidates = append(candidates, match.Candidate{
				Verse:      v,
				Confidence: 1.0,
				Strategy:   match.StrategyReference,
			})
		}

	default:
		query, triggered := triggers.Match(frag.Text)
		if !triggered {
			return nil, nil
		}
		var err error
		candidates, err = g.searcher.Search(ctx, query)
		if err != nil {
			if errors.Is(err, match.ErrUnavailable) {
				g.log.Warn("verse search unavailable, continuing without detection", "error", err)
				return nil, nil
			}
			return nil, err
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	g.mu.Lock()
	// Re-check under lock; a concurrent detection may have won the window.
	if !g.lastTrigger.IsZero() && now.Sub(g.lastTrigger) < g.cooldown {
		g.mu.Unlock()
		return nil, nil
	}
	g.lastTrigger = now
	g.mu.Unlock()

	return &DetectionEvent{
		Candidates: candidates,
		Fragment:   frag,
		DetectedAt: now,
	}, nil
}

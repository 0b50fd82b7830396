package app

import (
	"context"
	"time"

	"github.com/versecast/versecast/internal/capture"
)

// emitFragment is the [capture.FragmentFunc] bound to every session. It
// queues without blocking; a saturated pipeline drops the fragment rather
// than stalling the capture loop.
func (a *App) emitFragment(frag capture.TranscriptFragment) {
	select {
	case a.fragments <- frag:
	default:
		a.log.Warn("detection pipeline saturated, dropping fragment",
			"session", frag.SessionID)
	}
}

// processFragments is the single detection worker. Fragments pass through
// the gate one at a time, preserving cooldown semantics.
func (a *App) processFragments(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frag := <-a.fragments:
			a.handleFragment(ctx, frag)
		}
	}
}

// handleFragment runs one fragment through the gate and fans any detection
// out to the operator consoles.
func (a *App) handleFragment(ctx context.Context, frag capture.TranscriptFragment) {
	a.metrics.RecordFragment(ctx, string(a.supervisor.State().Strategy))

	start := time.Now()
	ev, err := a.gate.OnFragment(ctx, frag)
	if err != nil {
		a.log.Warn("fragment detection failed", "session", frag.SessionID, "error", err)
		return
	}
	if ev == nil {
		return
	}
	a.metrics.MatchDuration.Record(ctx, time.Since(start).Seconds())

	source := "matcher"
	if len(frag.PreResolved) > 0 {
		source = "pre_resolved"
	}
	a.metrics.RecordDetection(ctx, source)

	top := ev.Candidates[0]
	a.log.Info("verse detected",
		"reference", top.Verse.Reference(),
		"confidence", top.Confidence,
		"strategy", top.Strategy,
		"candidates", len(ev.Candidates),
	)
	a.server.BroadcastDetection(*ev)
}

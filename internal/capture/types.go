package capture

import (
	"time"

	"github.com/versecast/versecast/internal/verse"
)

// TranscriptFragment is one chunk of recognized speech delivered to the
// detection pipeline. SessionID ties the fragment to the capture session that
// produced it; fragments from a stopped session are rejected downstream.
type TranscriptFragment struct {
	Text       string
	SessionID  string
	CapturedAt time.Time

	// Confidence is the recognizer's own confidence in [0,1], 0 when the
	// provider does not report one.
	Confidence float64

	// Duration is the audio span this fragment covers.
	Duration time.Duration

	// PreResolved carries verse references the transcription endpoint already
	// resolved, bypassing local trigger detection.
	PreResolved []verse.Verse
}

// FragmentFunc receives fragments as they are produced. Implementations must
// not block; the capture loop delivers fragments serially.
type FragmentFunc func(TranscriptFragment)

// StrategyKind names the capture strategy in use.
type StrategyKind string

const (
	// KindContinuous is the long-lived streaming-recognizer strategy.
	KindContinuous StrategyKind = "continuous-recognizer"

	// KindChunked is the fixed-window record-and-upload strategy.
	KindChunked StrategyKind = "chunked-recorder"
)

// SessionState is a snapshot of the capture supervisor for operator
// surfaces.
type SessionState struct {
	Active            bool
	SessionID         string
	Strategy          StrategyKind
	FallbackAttempted bool
	StartedAt         time.Time
}

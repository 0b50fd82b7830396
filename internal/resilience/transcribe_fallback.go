package resilience

import (
	"context"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// TranscribeFallback implements [transcribe.Provider] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the segment to the first healthy backend.
func (f *TranscribeFallback) Transcribe(ctx context.Context, seg transcribe.Segment) (transcribe.Result, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (transcribe.Result, error) {
		return p.Transcribe(ctx, seg)
	})
}

// LookupText resolves references against the first healthy backend. Backends
// that do not support lookup fail over to the next entry.
func (f *TranscribeFallback) LookupText(ctx context.Context, text string) ([]transcribe.Reference, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) ([]transcribe.Reference, error) {
		return p.LookupText(ctx, text)
	})
}

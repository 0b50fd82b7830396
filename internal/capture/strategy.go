// Package capture owns the audio capture session: one supervisor, one
// active strategy, and the fragments they deliver to the detection pipeline.
//
// Two strategies exist. The continuous recognizer holds a long-lived
// streaming transcription session and is preferred when the backend supports
// it; a mid-stream failure swaps to the chunked recorder exactly once, never
// back. The chunked recorder cuts the microphone stream into fixed windows,
// encodes each to WAV and uploads them on a bounded concurrent pipeline so
// recording never pauses for a slow endpoint.
package capture

import (
	"context"
)

// Strategy is one way of turning audio into transcript fragments.
//
// Start opens the underlying source and begins delivering fragments through
// emit; it returns an error only for failures fatal to session startup
// (unopenable device, rejected stream). Failures after a successful Start
// are reported through onFailure exactly once, from an internal goroutine.
// Stop is idempotent; after it returns the source is released and emit is
// not called again. A Strategy is restartable: Stop then Start begins a
// fresh run.
type Strategy interface {
	Start(ctx context.Context, sessionID string, emit FragmentFunc, onFailure func(error)) error
	Stop()
	Kind() StrategyKind
}

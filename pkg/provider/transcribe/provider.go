// Package transcribe defines the Provider interfaces for transcription
// backends.
//
// Two shapes of backend exist. A [Provider] transcribes one recorded segment
// per call and is driven by the chunked-recorder capture strategy. A
// [StreamingProvider] holds a long-lived session that accepts raw PCM and
// emits results as speech is recognized, driving the continuous-recognizer
// strategy. A single backend may implement both.
//
// Implementations must be safe for concurrent use.
package transcribe

import (
	"context"
	"time"
)

// Segment is one recorded audio chunk ready for transcription.
type Segment struct {
	// WAV is the complete RIFF/WAVE-encoded audio.
	WAV []byte

	// SampleRate of the underlying PCM, in Hz.
	SampleRate int

	// Duration of the audio.
	Duration time.Duration

	// Language is a BCP-47 hint; empty lets the backend auto-detect.
	Language string
}

// Reference is a scripture reference the backend resolved itself, when the
// endpoint does reference extraction server-side.
type Reference struct {
	Book    string
	Chapter int
	Verse   int

	// Text is the verse text when the endpoint returns it, else empty.
	Text string
}

// Result is a transcription result.
type Result struct {
	// Text is the recognized speech.
	Text string

	// Language is the detected or configured language tag.
	Language string

	// Duration is the audio span the result covers.
	Duration time.Duration

	// Confidence in [0,1]; zero when the backend does not report one.
	Confidence float64

	// References are endpoint-resolved scripture references, nil when the
	// backend does not extract them.
	References []Reference
}

// Provider is the abstraction over a segment-at-a-time transcription
// backend.
type Provider interface {
	// Transcribe uploads one segment and returns its transcription. Errors
	// are classified per the package taxonomy: [ErrRateLimited] is worth
	// retrying, [ErrQuotaExceeded] and [ErrPermission] are not.
	Transcribe(ctx context.Context, seg Segment) (Result, error)

	// LookupText resolves scripture references in already-transcribed text.
	// Backends without server-side reference extraction return
	// [ErrNotSupported].
	LookupText(ctx context.Context, text string) ([]Reference, error)
}

// StreamConfig describes the audio format for a streaming session.
type StreamConfig struct {
	// SampleRate in Hz. 16000 is the usual transcription rate.
	SampleRate int

	// Channels of the PCM stream; 1 for mono.
	Channels int

	// Language is a BCP-47 hint; empty auto-detects.
	Language string
}

// SessionHandle is an open streaming session. Callers must Close it; all
// methods are safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers raw little-endian int16 PCM matching the
	// StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Results returns the channel of recognized results. It is closed when
	// the session ends, whether by Close or by a mid-stream failure; a
	// failure is also surfaced through Err.
	Results() <-chan Result

	// Err reports the terminal error of a session whose Results channel has
	// closed, nil for a clean shutdown.
	Err() error

	// Close terminates the session and releases its resources. Safe to call
	// more than once.
	Close() error
}

// StreamingProvider is the abstraction over a streaming transcription
// backend.
type StreamingProvider interface {
	// StartStream opens a session ready to accept audio. Failure to
	// establish the session (auth, unsupported format, cancelled ctx) is
	// returned here; mid-stream failures surface via the session.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// Package audio defines the frame type and device abstraction the capture
// pipeline is built on, plus PCM format conversion and WAV encoding.
//
// The primary abstraction is [Device]: an audio source (local microphone,
// remote websocket ingest, test mock) that delivers [AudioFrame] values on a
// channel until stopped. Implementations live in subpackages (audio/mic,
// audio/mock); the remote ingest source is assembled by the operator gateway
// from decoded Opus frames.
//
// This package lives under pkg/ because alternative capture sources are
// expected to implement [Device].
package audio

import (
	"context"
	"time"
)

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Frames are the atomic unit of audio transport, captured from a
// device and accumulated into transcription segments.
type AudioFrame struct {
	// PCM audio data, little-endian int16 samples.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for transcription, 48000 for Opus ingest).
	SampleRate int

	// Channels: 1 for mono (transcription input), 2 for stereo sources.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the audio span the frame covers, derived from its size
// and format. Returns 0 for malformed frames.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 || len(f.Data) < 2 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Device is an audio source. Start opens the underlying source and delivers
// frames on the returned channel until Stop is called or ctx is cancelled;
// the channel is closed when delivery ends. Stop is idempotent and releases
// the source before returning.
//
// Implementations must be safe for concurrent use.
type Device interface {
	Start(ctx context.Context) (<-chan AudioFrame, error)
	Stop() error
}

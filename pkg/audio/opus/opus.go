// Package opus decodes Opus packets delivered by remote audio ingest into
// PCM [audio.AudioFrame] values.
package opus

import (
	"fmt"
	"time"

	"layeh.com/gopus"

	"github.com/versecast/versecast/pkg/audio"
)

const (
	// SampleRate is the Opus ingest sample rate.
	SampleRate = 48000

	// Channels is the ingest channel count. Remote senders transmit mono.
	Channels = 1

	// FrameSize is samples per 20ms Opus frame at 48kHz.
	FrameSize = 960

	// maxFrameSize bounds a single decoded packet (120ms at 48kHz).
	maxFrameSize = 5760
)

// Decoder converts a stream of Opus packets to PCM frames. Not safe for
// concurrent use; create one per ingest stream.
type Decoder struct {
	dec     *gopus.Decoder
	elapsed time.Duration
}

// NewDecoder creates a Decoder for the fixed ingest format.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: creating decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode converts one Opus packet into a PCM frame. Frame timestamps are
// accumulated from decoded durations so downstream chunking sees a
// continuous stream.
func (d *Decoder) Decode(packet []byte) (audio.AudioFrame, error) {
	pcm, err := d.dec.Decode(packet, maxFrameSize, false)
	if err != nil {
		return audio.AudioFrame{}, fmt.Errorf("opus: decoding packet: %w", err)
	}

	frame := audio.AudioFrame{
		Data:       int16sToBytes(pcm),
		SampleRate: SampleRate,
		Channels:   Channels,
		Timestamp:  d.elapsed,
	}
	d.elapsed += frame.Duration()
	return frame, nil
}

// int16sToBytes converts int16 samples to little-endian PCM bytes.
func int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

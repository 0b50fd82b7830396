// Package remote provides an [audio.Device] fed by an external source, such
// as Opus frames arriving over a websocket. The network layer decodes frames
// and pushes PCM into the device; the capture pipeline consumes it like any
// local microphone.
package remote

import (
	"context"
	"log/slog"
	"sync"

	"github.com/versecast/versecast/pkg/audio"
)

// defaultBuffer is the frame channel capacity. At 48kHz/20ms frames this
// holds about five seconds of audio.
const defaultBuffer = 256

// Device is a push-fed [audio.Device]. Safe for concurrent use.
type Device struct {
	log *slog.Logger

	mu      sync.Mutex
	frames  chan audio.AudioFrame
	closed  bool
	dropped bool
}

var _ audio.Device = (*Device)(nil)

// NewDevice creates a remote device ready to accept pushed frames.
func NewDevice(log *slog.Logger) *Device {
	if log == nil {
		log = slog.Default()
	}
	return &Device{
		log:    log,
		frames: make(chan audio.AudioFrame, defaultBuffer),
	}
}

// Start implements [audio.Device]. Restartable: a device stopped by a
// previous session gets a fresh frame stream.
func (d *Device) Start(ctx context.Context) (<-chan audio.AudioFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.frames = make(chan audio.AudioFrame, defaultBuffer)
		d.closed = false
		d.dropped = false
	}
	context.AfterFunc(ctx, func() { d.Stop() })
	return d.frames, nil
}

// Stop implements [audio.Device]. Idempotent; closes the frame stream.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
	return nil
}

// Push delivers a decoded frame to the pipeline. Frames pushed while the
// consumer lags are dropped so a slow pipeline never blocks the network
// reader. No-op after Stop.
func (d *Device) Push(frame audio.AudioFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.frames <- frame:
	default:
		if !d.dropped {
			d.dropped = true
			d.log.Warn("remote audio consumer lagging, dropping frames")
		}
	}
}

func (d *Device) closeLocked() {
	if !d.closed {
		d.closed = true
		close(d.frames)
	}
}

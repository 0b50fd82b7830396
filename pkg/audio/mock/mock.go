// Package mock provides an in-memory [audio.Device] for unit tests.
//
// The mock is safe for concurrent use. It records method calls so tests can
// assert on them, and exposes Push/CloseFrames so the test controls exactly
// which frames the pipeline sees and when the stream ends.
//
// Typical usage:
//
//	dev := mock.NewDevice()
//	frames, _ := dev.Start(ctx)
//	dev.Push(audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
//	dev.CloseFrames()
package mock

import (
	"context"
	"sync"

	"github.com/versecast/versecast/pkg/audio"
)

// Device is a scriptable implementation of [audio.Device].
type Device struct {
	mu sync.Mutex

	// StartError is returned by Start, simulating an unopenable device.
	StartError error

	// StopError is returned by Stop.
	StopError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	frames chan audio.AudioFrame
	closed bool
}

var _ audio.Device = (*Device)(nil)

// NewDevice creates a mock device with a buffered frame channel.
func NewDevice() *Device {
	return &Device{frames: make(chan audio.AudioFrame, 256)}
}

// Start implements [audio.Device]. Returns the push channel, or StartError.
func (d *Device) Start(context.Context) (<-chan audio.AudioFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStart++
	if d.StartError != nil {
		return nil, d.StartError
	}
	return d.frames, nil
}

// Stop implements [audio.Device]. Closes the frame channel on first call.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStop++
	d.closeLocked()
	return d.StopError
}

// Push delivers a frame to the pipeline. No-op after the stream is closed.
func (d *Device) Push(frame audio.AudioFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.frames <- frame
}

// CloseFrames ends the stream without counting as a Stop call, simulating a
// source that dries up on its own.
func (d *Device) CloseFrames() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Device) closeLocked() {
	if !d.closed {
		d.closed = true
		close(d.frames)
	}
}

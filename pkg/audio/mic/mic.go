// Package mic captures audio from the local microphone via miniaudio
// (malgo). It is the default capture source for single-machine deployments.
package mic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/versecast/versecast/pkg/audio"
)

// Config tunes the capture device. Zero values take defaults.
type Config struct {
	// SampleRate in Hz. Default: 16000 (transcription input rate).
	SampleRate int

	// Channels of capture. Default: 1.
	Channels int

	// BufferFrames is the delivery channel capacity. Default: 64.
	BufferFrames int
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = 64
	}
}

// Device captures PCM from the default system microphone.
type Device struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	dev     *malgo.Device
	frames  chan audio.AudioFrame
	started bool
}

var _ audio.Device = (*Device)(nil)

// New creates a microphone Device. The device is opened on Start, not here,
// so construction never touches audio hardware.
func New(cfg Config, log *slog.Logger) *Device {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Device{cfg: cfg, log: log}
}

// Start opens the default capture device and begins delivering frames.
// A failure to open the device (missing hardware, denied permission) is
// fatal to the capture session; callers must not retry blindly.
func (d *Device) Start(ctx context.Context) (<-chan audio.AudioFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil, fmt.Errorf("mic: device already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.log.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("mic: initializing audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.cfg.Channels)
	cfg.SampleRate = uint32(d.cfg.SampleRate)
	cfg.Alsa.NoMMap = 1

	frames := make(chan audio.AudioFrame, d.cfg.BufferFrames)
	start := time.Now()
	var dropWarn sync.Once

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			data := make([]byte, len(input))
			copy(data, input)
			frame := audio.AudioFrame{
				Data:       data,
				SampleRate: d.cfg.SampleRate,
				Channels:   d.cfg.Channels,
				Timestamp:  time.Since(start),
			}
			select {
			case frames <- frame:
			default:
				// Consumer stalled; dropping is better than blocking the
				// audio thread.
				dropWarn.Do(func() {
					d.log.Warn("mic: frame buffer full, dropping frames")
				})
			}
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("mic: opening capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("mic: starting capture device: %w", err)
	}

	d.mctx = mctx
	d.dev = dev
	d.frames = frames
	d.started = true

	context.AfterFunc(ctx, func() {
		if err := d.Stop(); err != nil {
			d.log.Warn("mic: stop after context cancel", "error", err)
		}
	})

	d.log.Info("microphone capture started",
		"sample_rate", d.cfg.SampleRate, "channels", d.cfg.Channels)
	return frames, nil
}

// Stop releases the capture device. Idempotent; the frame channel is closed
// after the device stops so no callback can write to it afterwards.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.started = false

	if err := d.dev.Stop(); err != nil {
		d.log.Warn("mic: stopping device", "error", err)
	}
	d.dev.Uninit()
	d.mctx.Uninit()
	d.mctx.Free()
	close(d.frames)

	d.dev = nil
	d.mctx = nil
	d.frames = nil

	d.log.Info("microphone capture stopped")
	return nil
}

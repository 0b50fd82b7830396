package remote

import (
	"context"
	"testing"

	"github.com/versecast/versecast/pkg/audio"
)

func TestDevicePushDelivers(t *testing.T) {
	d := NewDevice(nil)
	frames, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	d.Push(audio.AudioFrame{Data: []byte{1, 2}, SampleRate: 48000, Channels: 1})
	got := <-frames
	if len(got.Data) != 2 || got.SampleRate != 48000 {
		t.Fatalf("frame = %+v", got)
	}
}

func TestDeviceStopClosesStream(t *testing.T) {
	d := NewDevice(nil)
	frames, _ := d.Start(context.Background())

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := <-frames; ok {
		t.Fatal("stream still open after Stop")
	}

	// Push after Stop is a no-op, not a panic.
	d.Push(audio.AudioFrame{Data: []byte{1}})
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestDeviceRestartGetsFreshStream(t *testing.T) {
	d := NewDevice(nil)
	first, _ := d.Start(context.Background())
	d.Stop()

	second, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if first == second {
		t.Fatal("restart reused the closed stream")
	}

	d.Push(audio.AudioFrame{Data: []byte{9}})
	if got := <-second; len(got.Data) != 1 {
		t.Fatalf("frame = %+v", got)
	}
}

func TestDeviceDropsWhenConsumerLags(t *testing.T) {
	d := NewDevice(nil)
	if _, err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Fill the buffer past capacity without consuming; must not block.
	for range defaultBuffer + 10 {
		d.Push(audio.AudioFrame{Data: []byte{1}})
	}
}

func TestDeviceContextCancelStops(t *testing.T) {
	d := NewDevice(nil)
	ctx, cancel := context.WithCancel(context.Background())
	frames, _ := d.Start(ctx)

	cancel()
	for range frames {
	}
	// Stream drained to close: cancellation stopped the device.
}

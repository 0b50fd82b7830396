package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/versecast/versecast/pkg/audio"
)

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := samplesToBytes([]int16{0, 100, -100, 32767})
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm := samplesToBytes([]int16{1, -1, 32767, -32768})
	wav := audio.EncodeWAV(pcm, 16000, 1)

	got, rate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("format = %dHz %dch, want 16000Hz 1ch", rate, channels)
	}
	if len(got) != len(pcm) {
		t.Fatalf("pcm length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("pcm byte %d = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	for _, in := range [][]byte{nil, []byte("not a wav"), []byte("RIFFxxxxWAVE")} {
		if _, _, _, err := audio.DecodeWAV(in); err == nil {
			t.Errorf("DecodeWAV(%q) accepted malformed input", in)
		}
	}
}

func TestRMS(t *testing.T) {
	silence := samplesToBytes(make([]int16, 160))
	if got := audio.RMS(silence); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 32767
	}
	if got := audio.RMS(samplesToBytes(loud)); got < 0.99 {
		t.Errorf("RMS(full scale) = %v, want ~1", got)
	}

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
}

func TestFrameDuration(t *testing.T) {
	frame := audio.AudioFrame{
		Data:       make([]byte, 16000*2), // one second of mono int16
		SampleRate: 16000,
		Channels:   1,
	}
	if got := frame.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}

	if got := (audio.AudioFrame{}).Duration(); got != 0 {
		t.Errorf("zero frame Duration = %v, want 0", got)
	}
}

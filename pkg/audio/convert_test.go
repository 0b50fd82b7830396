package audio

import (
	"testing"
	"time"
)

func pcmFromSamples(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		putSample16(out, i, s)
	}
	return out
}

func TestConvertPassthrough(t *testing.T) {
	conv := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	frame := AudioFrame{
		Data:       pcmFromSamples(1, 2, 3),
		SampleRate: 16000,
		Channels:   1,
		Timestamp:  time.Second,
	}

	got := conv.Convert(frame)
	if &got.Data[0] != &frame.Data[0] {
		t.Error("matching frame was copied")
	}
	if got.Timestamp != time.Second {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
}

func TestConvertDropsMisalignedFrame(t *testing.T) {
	conv := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	got := conv.Convert(AudioFrame{
		Data:       []byte{1, 2, 3},
		SampleRate: 16000,
		Channels:   1,
	})
	if len(got.Data) != 0 {
		t.Errorf("misaligned frame kept %d bytes", len(got.Data))
	}
	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Errorf("empty frame format = %d/%d", got.SampleRate, got.Channels)
	}
}

func TestStereoToMonoAverages(t *testing.T) {
	// Pairs (100, 200) and (-100, -300) average to 150 and -200.
	in := pcmFromSamples(100, 200, -100, -300)
	out := stereoToMono(in)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if got := sample16(out, 0); got != 150 {
		t.Errorf("sample 0 = %d, want 150", got)
	}
	if got := sample16(out, 1); got != -200 {
		t.Errorf("sample 1 = %d, want -200", got)
	}
}

func TestStereoToMonoNoOverflow(t *testing.T) {
	in := pcmFromSamples(32767, 32767)
	if got := sample16(stereoToMono(in), 0); got != 32767 {
		t.Errorf("sample = %d, want 32767", got)
	}
}

func TestMonoToStereoDuplicates(t *testing.T) {
	out := monoToStereo(pcmFromSamples(42, -7))
	want := []int16{42, 42, -7, -7}
	if len(out) != len(want)*2 {
		t.Fatalf("len = %d, want %d", len(out), len(want)*2)
	}
	for i, w := range want {
		if got := sample16(out, i); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestResampleDownThreeToOne(t *testing.T) {
	// 48kHz to 16kHz keeps one sample in three.
	in := make([]byte, 48*2)
	out := resample16(in, 1, 48000, 16000)
	if len(out) != 16*2 {
		t.Errorf("len = %d, want %d", len(out), 16*2)
	}
}

func TestResampleUpInterpolates(t *testing.T) {
	in := pcmFromSamples(0, 100)
	out := resample16(in, 1, 8000, 16000)
	if len(out) != 4*2 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	// The sample halfway between 0 and 100 lands at 50.
	if got := sample16(out, 1); got != 50 {
		t.Errorf("interpolated sample = %d, want 50", got)
	}
}

func TestResampleSameRatePassesThrough(t *testing.T) {
	in := pcmFromSamples(1, 2, 3)
	out := resample16(in, 1, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate input was copied")
	}
}

func TestResampleStereoKeepsChannelsApart(t *testing.T) {
	// Left channel constant 1000, right constant -1000.
	samples := make([]int16, 0, 12)
	for range 6 {
		samples = append(samples, 1000, -1000)
	}
	out := resample16(pcmFromSamples(samples...), 2, 48000, 16000)
	frames := len(out) / 4
	if frames == 0 {
		t.Fatal("no output frames")
	}
	for i := range frames {
		if l := sample16(out, i*2); l != 1000 {
			t.Errorf("frame %d left = %d, want 1000", i, l)
		}
		if r := sample16(out, i*2+1); r != -1000 {
			t.Errorf("frame %d right = %d, want -1000", i, r)
		}
	}
}

func TestConvertResamplesAndRemixes(t *testing.T) {
	conv := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}

	// 48kHz stereo input, both channels at 600.
	samples := make([]int16, 0, 96)
	for range 48 {
		samples = append(samples, 600, 600)
	}
	got := conv.Convert(AudioFrame{
		Data:       pcmFromSamples(samples...),
		SampleRate: 48000,
		Channels:   2,
	})

	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("format = %d/%d, want 16000/1", got.SampleRate, got.Channels)
	}
	if len(got.Data) != 16*2 {
		t.Fatalf("len = %d, want %d", len(got.Data), 16*2)
	}
	for i := range len(got.Data) / 2 {
		if s := sample16(got.Data, i); s != 600 {
			t.Errorf("sample %d = %d, want 600", i, s)
		}
	}
}

func TestConvertStream(t *testing.T) {
	in := make(chan AudioFrame, 4)
	out := ConvertStream(in, Format{SampleRate: 16000, Channels: 1})

	in <- AudioFrame{Data: pcmFromSamples(5), SampleRate: 16000, Channels: 1}
	in <- AudioFrame{Data: []byte{9}, SampleRate: 16000, Channels: 1}
	in <- AudioFrame{Data: pcmFromSamples(7), SampleRate: 16000, Channels: 1}
	close(in)

	var got []int16
	for frame := range out {
		got = append(got, sample16(frame.Data, 0))
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 7 {
		t.Errorf("stream output = %v, want [5 7]", got)
	}
}

func TestFormatString(t *testing.T) {
	cases := []struct {
		f    Format
		want string
	}{
		{Format{16000, 1}, "16000Hz mono"},
		{Format{48000, 2}, "48000Hz stereo"},
		{Format{44100, 6}, "44100Hz 6ch"},
	}
	for _, tc := range cases {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("%v.String() = %q, want %q", tc.f, got, tc.want)
		}
	}
}

package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format is the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// FormatConverter rewrites frames into a target format. Matching frames pass
// through untouched, so a well-behaved device costs nothing. One converter
// per stream; it is not safe for concurrent Convert calls.
type FormatConverter struct {
	Target Format

	warnMismatch sync.Once
	warnCorrupt  sync.Once
}

// Convert resamples then remixes frame into the target format. A frame whose
// byte count is not int16-aligned is replaced by an empty frame; callers drop
// those.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	if len(frame.Data)%2 != 0 {
		c.warnCorrupt.Do(func() {
			slog.Warn("dropping misaligned PCM frame",
				"bytes", len(frame.Data),
				"format", Format{frame.SampleRate, frame.Channels},
			)
		})
		return AudioFrame{
			SampleRate: c.Target.SampleRate,
			Channels:   c.Target.Channels,
			Timestamp:  frame.Timestamp,
		}
	}

	src := Format{frame.SampleRate, frame.Channels}
	if src == c.Target {
		return frame
	}
	c.warnMismatch.Do(func() {
		slog.Warn("audio format mismatch, converting",
			"from", src, "to", c.Target)
	})

	pcm := frame.Data
	// Resample before remixing so a stereo source headed for mono is not
	// resampled twice per channel pair.
	if src.SampleRate != c.Target.SampleRate {
		pcm = resample16(pcm, src.Channels, src.SampleRate, c.Target.SampleRate)
	}
	switch {
	case src.Channels == 1 && c.Target.Channels == 2:
		pcm = monoToStereo(pcm)
	case src.Channels == 2 && c.Target.Channels == 1:
		pcm = stereoToMono(pcm)
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// ConvertStream converts every frame from in, dropping empties, and closes
// the returned channel when in closes. The output buffer mirrors cap(in).
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		conv := FormatConverter{Target: target}
		for frame := range in {
			converted := conv.Convert(frame)
			if len(converted.Data) == 0 {
				continue
			}
			out <- converted
		}
	}()
	return out
}

// sample16 reads the little-endian int16 at sample index i.
func sample16(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

// putSample16 writes s at sample index i.
func putSample16(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}

// resample16 linearly interpolates int16 PCM with interleaved channels from
// srcRate to dstRate. Degenerate rates and too-short input pass through.
func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if channels < 1 {
		channels = 1
	}
	stride := channels
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < stride*2 {
		return pcm
	}

	srcFrames := len(pcm) / (stride * 2)
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*stride*2)
	step := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		for ch := 0; ch < channels; ch++ {
			s0 := sample16(pcm, idx*stride+ch)
			s1 := s0
			if idx+1 < srcFrames {
				s1 = sample16(pcm, (idx+1)*stride+ch)
			}
			mixed := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			putSample16(out, i*stride+ch, mixed)
		}
	}
	return out
}

// monoToStereo duplicates each sample into an L+R pair.
func monoToStereo(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, samples*4)
	for i := range samples {
		s := sample16(pcm, i)
		putSample16(out, i*2, s)
		putSample16(out, i*2+1, s)
	}
	return out
}

// stereoToMono averages each L+R pair, clamping to the int16 range.
func stereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		avg := (int32(sample16(pcm, i*2)) + int32(sample16(pcm, i*2+1))) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		putSample16(out, i, int16(avg))
	}
	return out
}

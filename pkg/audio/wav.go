package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// EncodeWAV wraps little-endian int16 PCM in a minimal RIFF/WAVE container.
// Transcription endpoints accept WAV uploads; the 44-byte header is fixed
// format so no external encoder is needed.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload and format from a RIFF/WAVE container.
// Only uncompressed 16-bit PCM is supported.
func DecodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("audio: not a RIFF/WAVE container")
	}

	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4:]))
		body := pos + 8
		if body+size > len(wav) {
			return nil, 0, 0, errors.New("audio: truncated WAV chunk")
		}

		switch chunkID {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("audio: short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(wav[body:]); format != 1 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported WAV format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4:]))
			if bits := binary.LittleEndian.Uint16(wav[body+14:]); bits != 16 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d", bits)
			}
		case "data":
			pcm = wav[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size + size%2
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, 0, errors.New("audio: missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, 0, errors.New("audio: missing data chunk")
	}
	return pcm, sampleRate, channels, nil
}

// RMS computes the root mean square amplitude of int16 PCM, normalized to
// [0,1]. Used to skip uploading silent segments.
func RMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}

//go:build whisper

// Package native implements transcription with the whisper.cpp CGO bindings,
// eliminating network overhead entirely. The whisper.cpp static library
// (libwhisper.a) and headers (whisper.h) must be available at link time via
// LIBRARY_PATH and C_INCLUDE_PATH.
//
// The provider implements both [transcribe.Provider] (segment uploads decode
// straight into inference) and [transcribe.StreamingProvider] (a session
// buffers PCM, detects silence, and flushes speech spans to the model).
package native

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/provider/transcribe"
)

const (
	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10000

	// rmsThreshold below which a chunk counts as silence.
	rmsThreshold = 0.01
)

var (
	_ transcribe.Provider          = (*Provider)(nil)
	_ transcribe.StreamingProvider = (*Provider)(nil)
)

// Provider runs whisper.cpp inference in-process. The model is loaded once
// and shared across sessions; each inference gets its own context because
// whisper contexts are not thread-safe.
type Provider struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int

	// inferMu serialises inference; whisper.cpp saturates the CPU per run.
	inferMu sync.Mutex
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code for transcription. Defaults to
// "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the PCM sample rate streamed via SendAudio. Defaults
// to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration that flushes
// the streaming buffer. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio before a forced
// flush. Defaults to 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) { p.maxBufferDurationMs = ms }
}

// New loads the whisper.cpp model from modelPath. The caller must Close the
// provider when done.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("native: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("native: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements [transcribe.Provider] by decoding the WAV container
// and running inference on the PCM directly.
func (p *Provider) Transcribe(ctx context.Context, seg transcribe.Segment) (transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, fmt.Errorf("native: context already cancelled: %w", err)
	}
	pcm, _, channels, err := audio.DecodeWAV(seg.WAV)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("native: decoding segment: %w", err)
	}

	lang := seg.Language
	if lang == "" {
		lang = p.language
	}
	text, err := p.infer(pcmToFloat32Mono(pcm, channels), lang)
	if err != nil {
		return transcribe.Result{}, err
	}
	return transcribe.Result{
		Text:     text,
		Language: lang,
		Duration: seg.Duration,
	}, nil
}

// LookupText implements [transcribe.Provider]. On-device inference does no
// reference extraction.
func (p *Provider) LookupText(context.Context, string) ([]transcribe.Reference, error) {
	return nil, transcribe.ErrNotSupported
}

// StartStream implements [transcribe.StreamingProvider].
func (p *Provider) StartStream(ctx context.Context, cfg transcribe.StreamConfig) (transcribe.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("native: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		provider:   p,
		language:   lang,
		sampleRate: sr,
		channels:   ch,

		audioCh: make(chan []byte, 256),
		results: make(chan transcribe.Result, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// infer runs one whisper.cpp inference on mono float32 samples.
func (p *Provider) infer(samples []float32, lang string) (string, error) {
	p.inferMu.Lock()
	defer p.inferMu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("native: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("native: failed to set language, using default", "language", lang, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("native: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("native: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- session ----------------------------------------------------------------

// session is a live streaming session. Buffering and silence detection are
// confined to the processLoop goroutine.
type session struct {
	provider   *Provider
	language   string
	sampleRate int
	channels   int

	audioCh chan []byte
	results chan transcribe.Result

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	errMu sync.Mutex
	err   error
}

var _ transcribe.SessionHandle = (*session)(nil)

// SendAudio queues raw 16-bit little-endian PCM for silence analysis.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("native: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("native: session is closed")
	}
}

// Results returns the session's result channel.
func (s *session) Results() <-chan transcribe.Result { return s.results }

// Err reports the terminal session error, nil for a clean shutdown.
func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close terminates the session, flushing any buffered speech first.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop owns silence detection, buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * s.channels * 2 / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.provider.maxBufferDurationMs * bytesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.provider.infer(pcmToFloat32Mono(pcm, s.channels), s.language)
		if err != nil {
			slog.Error("native inference failed", "error", err)
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
			return
		}
		if text == "" {
			return
		}

		select {
		case s.results <- transcribe.Result{
			Text:     text,
			Language: s.language,
			Duration: time.Duration(len(pcm)/bytesPerMs) * time.Millisecond,
		}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk := <-s.audioCh:
			rms := audio.RMS(chunk)
			chunkMs := len(chunk) / bytesPerMs

			if rms < rmsThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.provider.silenceThresholdMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}

// pcmToFloat32Mono converts 16-bit signed little-endian PCM to mono float32
// samples normalised to [-1.0, 1.0], averaging channels per frame.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		n := len(pcm) / 2
		samples := make([]float32, n)
		for i := range n {
			samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		}
		return samples
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := range samplesPerChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:]))) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

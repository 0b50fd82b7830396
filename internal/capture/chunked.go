package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/versecast/versecast/internal/resilience"
	"github.com/versecast/versecast/internal/verse"
	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/provider/transcribe"
)

const (
	// MinChunkSeconds and MaxChunkSeconds bound the recording window; inside
	// this range a window is long enough to transcribe well and short enough
	// to keep detection latency acceptable.
	MinChunkSeconds = 5
	MaxChunkSeconds = 7

	// DefaultChunkSeconds is the recording window when none is configured.
	DefaultChunkSeconds = 6

	// silenceRMS is the level below which a whole segment is considered
	// silent and skipped instead of uploaded.
	silenceRMS = 0.005

	// maxConcurrentUploads bounds the upload pipeline.
	maxConcurrentUploads = 3
)

// ChunkedConfig tunes a [ChunkedRecorder].
type ChunkedConfig struct {
	// ChunkSeconds is the window length; clamped to [5,7], default 6.
	ChunkSeconds int

	// Language hint forwarded with each segment.
	Language string

	// Retry is the per-segment retry policy. Zero value takes the package
	// defaults (3 retries at 500/1000/2000ms, rate limits only).
	Retry resilience.Policy
}

// ChunkedRecorder implements [Strategy] by recording fixed windows
// back-to-back and uploading each completed segment concurrently. A slow or
// failing endpoint never pauses recording: windows keep cutting while
// uploads resolve on their own goroutines.
type ChunkedRecorder struct {
	device   audio.Device
	provider transcribe.Provider
	cfg      ChunkedConfig
	breaker  *resilience.CircuitBreaker
	log      *slog.Logger

	mu   sync.Mutex
	stop func()
}

var _ Strategy = (*ChunkedRecorder)(nil)

// NewChunkedRecorder creates the strategy. The chunk window is clamped into
// the valid range.
func NewChunkedRecorder(device audio.Device, provider transcribe.Provider, cfg ChunkedConfig, log *slog.Logger) *ChunkedRecorder {
	if cfg.ChunkSeconds == 0 {
		cfg.ChunkSeconds = DefaultChunkSeconds
	}
	if cfg.ChunkSeconds < MinChunkSeconds {
		cfg.ChunkSeconds = MinChunkSeconds
	}
	if cfg.ChunkSeconds > MaxChunkSeconds {
		cfg.ChunkSeconds = MaxChunkSeconds
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = transcribe.Retryable
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChunkedRecorder{
		device:   device,
		provider: provider,
		cfg:      cfg,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "transcribe",
		}),
		log: log,
	}
}

// Kind implements [Strategy].
func (c *ChunkedRecorder) Kind() StrategyKind { return KindChunked }

// Start implements [Strategy]. A device open failure is fatal and returned
// synchronously; per-segment endpoint errors only log.
func (c *ChunkedRecorder) Start(ctx context.Context, sessionID string, emit FragmentFunc, _ func(error)) error {
	frames, err := c.device.Start(ctx)
	if err != nil {
		return fmt.Errorf("capture: starting chunked recorder: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var stopOnce sync.Once
	done := make(chan struct{})

	c.mu.Lock()
	c.stop = func() {
		stopOnce.Do(func() {
			if err := c.device.Stop(); err != nil {
				c.log.Warn("stopping capture device", "error", err)
			}
			cancel()
			<-done
		})
	}
	c.mu.Unlock()

	go c.recordLoop(runCtx, sessionID, frames, emit, done)

	c.log.Info("chunked recorder started",
		"session", sessionID, "chunk_seconds", c.cfg.ChunkSeconds)
	return nil
}

// Stop implements [Strategy]. In-flight uploads complete in the background;
// their fragments carry a stale session ID and are dropped downstream.
func (c *ChunkedRecorder) Stop() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// recordLoop cuts the frame stream into windows and hands each to the
// upload pipeline. The loop owns segment accumulation; uploads run on the
// errgroup so recording continues with no gap between windows.
func (c *ChunkedRecorder) recordLoop(ctx context.Context, sessionID string, frames <-chan audio.AudioFrame, emit FragmentFunc, done chan<- struct{}) {
	uploads := &errgroup.Group{}
	uploads.SetLimit(maxConcurrentUploads)

	var (
		buf        []byte
		bufDur     time.Duration
		sampleRate int
		channels   int
	)
	window := time.Duration(c.cfg.ChunkSeconds) * time.Second

	seal := func() {
		if len(buf) == 0 {
			return
		}
		pcm, dur, sr, ch := buf, bufDur, sampleRate, channels
		buf, bufDur = nil, 0
		uploads.Go(func() error {
			c.uploadSegment(ctx, sessionID, pcm, dur, sr, ch, emit)
			return nil
		})
	}

	for frame := range frames {
		if sampleRate == 0 {
			sampleRate, channels = frame.SampleRate, frame.Channels
		}
		buf = append(buf, frame.Data...)
		bufDur += frame.Duration()
		if bufDur >= window {
			seal()
		}
	}

	// Stream ended: flush the partial window, then let stragglers finish.
	seal()
	close(done)
	go func() {
		uploads.Wait()
	}()
}

// uploadSegment encodes, uploads with retry behind the circuit breaker, and
// emits the resulting fragment. Errors are terminal for the segment only.
func (c *ChunkedRecorder) uploadSegment(ctx context.Context, sessionID string, pcm []byte, dur time.Duration, sampleRate, channels int, emit FragmentFunc) {
	if audio.RMS(pcm) < silenceRMS {
		c.log.Debug("skipping silent segment", "session", sessionID, "duration", dur)
		return
	}

	seg := transcribe.Segment{
		WAV:        audio.EncodeWAV(pcm, sampleRate, channels),
		SampleRate: sampleRate,
		Duration:   dur,
		Language:   c.cfg.Language,
	}

	var res transcribe.Result
	err := c.breaker.Execute(func() error {
		return c.cfg.Retry.Do(ctx, "transcribe segment", func(ctx context.Context) error {
			var terr error
			res, terr = c.provider.Transcribe(ctx, seg)
			return terr
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, transcribe.ErrQuotaExceeded):
		c.log.Error("transcription quota exhausted, segment dropped", "session", sessionID)
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.log.Debug("transcription endpoint circuit open, segment dropped", "session", sessionID)
		return
	default:
		c.log.Warn("segment transcription failed", "session", sessionID, "error", err)
		return
	}

	if res.Text == "" {
		return
	}

	emit(TranscriptFragment{
		Text:        res.Text,
		SessionID:   sessionID,
		CapturedAt:  time.Now(),
		Confidence:  res.Confidence,
		Duration:    dur,
		PreResolved: toVerses(res.References),
	})
}

// toVerses converts endpoint-resolved references into verse values.
func toVerses(refs []transcribe.Reference) []verse.Verse {
	if len(refs) == 0 {
		return nil
	}
	out := make([]verse.Verse, 0, len(refs))
	for _, r := range refs {
		out = append(out, verse.Verse{
			Book:     r.Book,
			Chapter:  r.Chapter,
			VerseNum: r.Verse,
			Text:     r.Text,
		})
	}
	return out
}

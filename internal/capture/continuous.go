package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// ContinuousConfig tunes a [ContinuousRecognizer].
type ContinuousConfig struct {
	// SampleRate of the PCM stream. Default: 16000.
	SampleRate int

	// Channels of the PCM stream. Default: 1.
	Channels int

	// Language hint for the streaming session.
	Language string
}

// ContinuousRecognizer implements [Strategy] over a long-lived streaming
// transcription session. Any terminal session error after startup is
// reported through onFailure so the supervisor can swap strategies.
type ContinuousRecognizer struct {
	device   audio.Device
	provider transcribe.StreamingProvider
	cfg      ContinuousConfig
	log      *slog.Logger

	mu   sync.Mutex
	stop func()
}

var _ Strategy = (*ContinuousRecognizer)(nil)

// NewContinuousRecognizer creates the strategy.
func NewContinuousRecognizer(device audio.Device, provider transcribe.StreamingProvider, cfg ContinuousConfig, log *slog.Logger) *ContinuousRecognizer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &ContinuousRecognizer{device: device, provider: provider, cfg: cfg, log: log}
}

// Kind implements [Strategy].
func (c *ContinuousRecognizer) Kind() StrategyKind { return KindContinuous }

// Start implements [Strategy]. Session establishment and device open are
// both fatal here; after that, failures flow through onFailure.
func (c *ContinuousRecognizer) Start(ctx context.Context, sessionID string, emit FragmentFunc, onFailure func(error)) error {
	session, err := c.provider.StartStream(ctx, transcribe.StreamConfig{
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
		Language:   c.cfg.Language,
	})
	if err != nil {
		return fmt.Errorf("capture: opening streaming session: %w", err)
	}

	raw, err := c.device.Start(ctx)
	if err != nil {
		session.Close()
		return fmt.Errorf("capture: starting continuous recognizer: %w", err)
	}
	// The session was opened with a fixed format; devices that produce
	// something else get resampled on the way in.
	frames := audio.ConvertStream(raw, audio.Format{
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
	})

	runCtx, cancel := context.WithCancel(ctx)
	var failOnce sync.Once
	fail := func(err error) {
		failOnce.Do(func() {
			if runCtx.Err() == nil && onFailure != nil {
				onFailure(err)
			}
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Audio pump: device frames into the session.
	go func() {
		defer wg.Done()
		for frame := range frames {
			if err := session.SendAudio(frame.Data); err != nil {
				fail(fmt.Errorf("capture: streaming audio: %w", err))
				// Keep the device producer unblocked until Stop closes
				// the stream.
				audio.Drain(frames)
				return
			}
		}
	}()

	// Result pump: session results into fragments.
	go func() {
		defer wg.Done()
		for res := range session.Results() {
			if res.Text == "" {
				continue
			}
			emit(TranscriptFragment{
				Text:        res.Text,
				SessionID:   sessionID,
				CapturedAt:  time.Now(),
				Confidence:  res.Confidence,
				Duration:    res.Duration,
				PreResolved: toVerses(res.References),
			})
		}
		if err := session.Err(); err != nil {
			fail(fmt.Errorf("capture: streaming session ended: %w", err))
		}
	}()

	var stopOnce sync.Once
	c.mu.Lock()
	c.stop = func() {
		stopOnce.Do(func() {
			cancel()
			if err := c.device.Stop(); err != nil {
				c.log.Warn("stopping capture device", "error", err)
			}
			if err := session.Close(); err != nil {
				c.log.Warn("closing streaming session", "error", err)
			}
			wg.Wait()
		})
	}
	c.mu.Unlock()

	c.log.Info("continuous recognizer started", "session", sessionID)
	return nil
}

// Stop implements [Strategy].
func (c *ContinuousRecognizer) Stop() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

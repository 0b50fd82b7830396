// Package app wires all VerseCast subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the operator gateway and the detection pipeline,
// and Shutdown tears everything down in order.
//
// For testing, inject fakes via functional options (WithStore, WithMetrics).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/versecast/versecast/internal/capture"
	"github.com/versecast/versecast/internal/config"
	"github.com/versecast/versecast/internal/detect"
	"github.com/versecast/versecast/internal/health"
	"github.com/versecast/versecast/internal/match"
	"github.com/versecast/versecast/internal/observe"
	"github.com/versecast/versecast/internal/operator"
	"github.com/versecast/versecast/internal/projection"
	"github.com/versecast/versecast/internal/resilience"
	"github.com/versecast/versecast/internal/verse"
	versepg "github.com/versecast/versecast/internal/verse/postgres"
	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/audio/remote"
	"github.com/versecast/versecast/pkg/provider/embeddings"
	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// Providers holds one interface value per provider slot. Nil means the slot
// is not configured. Populated by main.go via the config registry.
type Providers struct {
	// Transcribe is the segment-upload backend driving the chunked strategy.
	Transcribe transcribe.Provider

	// Streaming is the long-lived session backend driving the continuous
	// strategy. Nil when the configured backend is upload-only; capture then
	// runs chunked from the start.
	Streaming transcribe.StreamingProvider

	// TranscribeFallback is the failover upload backend, nil when no
	// fallback is configured.
	TranscribeFallback transcribe.Provider

	// Embeddings powers semantic verse search. Nil disables the strategy.
	Embeddings embeddings.Provider

	// Device is the audio source.
	Device audio.Device
}

// App owns all subsystem lifetimes and orchestrates the detection pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	metrics   *observe.Metrics

	// Subsystems, initialised in New, torn down in Shutdown.
	store       verse.Store
	matcher     *match.Matcher
	gate        *detect.Gate
	supervisor  *capture.Supervisor
	coordinator *projection.Coordinator
	server      *operator.Server
	httpSrv     *http.Server

	// fragments buffers transcript fragments between the capture goroutines
	// and the detection worker so emit never blocks.
	fragments chan capture.TranscriptFragment

	mu              sync.Mutex
	sessionActive   bool
	fallbackCounted bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a verse store instead of creating one from config.
func WithStore(s verse.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
		fragments: make(chan capture.TranscriptFragment, 64),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Verse store ───────────────────────────────────────────────────
	semantic, err := a.initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init verse store: %w", err)
	}

	// ── 2. Matcher ───────────────────────────────────────────────────────
	matchOpts := []match.Option{
		match.WithConfig(match.Config{
			MaxResults:       cfg.Match.MaxResults,
			FuzzyMaxDistance: cfg.Match.FuzzyMaxDistance,
			MinQueryLen:      cfg.Match.MinQueryLen,
		}),
		match.WithLogger(a.log),
	}
	if semantic != nil {
		matchOpts = append(matchOpts, match.WithSemantic(semantic))
	}
	a.matcher = match.New(a.store, matchOpts...)

	// ── 3. Detection gate ────────────────────────────────────────────────
	a.gate = detect.NewGate(a.matcher,
		detect.WithCooldown(cfg.Detect.Cooldown()),
		detect.WithExtraTriggers(cfg.Detect.TriggerPhrases),
		detect.WithLogger(a.log),
	)

	// ── 4. Projection coordinator ────────────────────────────────────────
	a.coordinator = projection.NewCoordinator(projection.WithLogger(a.log))

	// ── 5. Capture supervisor ────────────────────────────────────────────
	if err := a.initCapture(); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	// ── 6. Operator gateway ──────────────────────────────────────────────
	a.initServer(ctx)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore builds the verse store from config unless one was injected. The
// returned searcher is non-nil when semantic search is available.
func (a *App) initStore(ctx context.Context) (match.SemanticSearcher, error) {
	if a.store != nil {
		s, _ := a.store.(match.SemanticSearcher)
		return s, nil
	}

	vc := a.cfg.Verses
	switch vc.Store {
	case config.StoreEmbedded:
		a.store = verse.NewEmbeddedStore()
		return nil, nil

	case config.StoreFile:
		cf, err := verse.LoadCorpusFile(vc.CorpusPath)
		if err != nil {
			return nil, err
		}
		store, err := cf.BuildStore()
		if err != nil {
			return nil, err
		}
		a.store = store
		a.log.Info("loaded verse corpus", "path", vc.CorpusPath, "verses", store.Len())
		return nil, nil

	case config.StorePostgres:
		var embedder embeddings.Provider
		if vc.Semantic.Enabled {
			embedder = a.providers.Embeddings
		}
		primary, err := versepg.NewStore(ctx, versepg.Config{
			DSN:         vc.DSN,
			Translation: vc.Translation,
			Embedder:    embedder,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			primary.Close()
			return nil
		})
		a.store = primary

		// Translation fallback: a second store over the same pool target,
		// consulted when the primary translation comes up empty.
		if vc.FallbackTranslation != "" {
			fb, err := versepg.NewStore(ctx, versepg.Config{
				DSN:         vc.DSN,
				Translation: vc.FallbackTranslation,
			})
			if err != nil {
				return nil, fmt.Errorf("fallback translation %q: %w", vc.FallbackTranslation, err)
			}
			a.closers = append(a.closers, func() error {
				fb.Close()
				return nil
			})
			a.store = verse.NewMultiStore(primary, fb)
		}

		var semantic match.SemanticSearcher
		if embedder != nil {
			semantic = primary
		}
		return semantic, nil

	default:
		return nil, fmt.Errorf("unknown verse store %q", vc.Store)
	}
}

// initCapture builds the strategies and the supervisor. A streaming-capable
// backend runs continuous-first with the chunked recorder as fallback;
// upload-only backends run chunked from the start.
func (a *App) initCapture() error {
	if a.providers.Device == nil {
		return fmt.Errorf("no audio device configured")
	}

	prov := a.providers.Transcribe
	if prov == nil {
		return fmt.Errorf("no transcription provider configured")
	}
	if a.providers.TranscribeFallback != nil {
		fb := resilience.NewTranscribeFallback(prov, a.cfg.Transcribe.Provider, resilience.FallbackConfig{})
		fallbackName := "fallback"
		if a.cfg.Transcribe.Fallback != nil {
			fallbackName = a.cfg.Transcribe.Fallback.Provider
		}
		fb.AddFallback(fallbackName, a.providers.TranscribeFallback)
		prov = fb
	}

	chunked := capture.NewChunkedRecorder(a.providers.Device, prov, capture.ChunkedConfig{
		ChunkSeconds: a.cfg.Capture.ChunkSeconds,
		Language:     a.cfg.Transcribe.Language,
	}, a.log)

	supOpts := []capture.SupervisorOption{
		capture.WithStateListener(a.onSessionState),
		capture.WithSupervisorLogger(a.log),
	}

	if a.providers.Streaming != nil {
		continuous := capture.NewContinuousRecognizer(a.providers.Device, a.providers.Streaming, capture.ContinuousConfig{
			SampleRate: a.cfg.Capture.SampleRate,
			Channels:   a.cfg.Capture.Channels,
			Language:   a.cfg.Transcribe.Language,
		}, a.log)
		supOpts = append(supOpts, capture.WithFallback(chunked))
		a.supervisor = capture.NewSupervisor(continuous, supOpts...)
	} else {
		a.supervisor = capture.NewSupervisor(chunked, supOpts...)
	}
	return nil
}

// initServer builds the operator gateway over the wired subsystems.
func (a *App) initServer(ctx context.Context) {
	checkers := []health.Checker{
		{Name: "verses", Check: func(ctx context.Context) error {
			if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
				return p.Ping(ctx)
			}
			_, _, err := a.store.LookupByReference(ctx, "John", 3, 16)
			return err
		}},
	}

	srvOpts := []operator.Option{
		operator.WithLogger(a.log),
		operator.WithMetrics(a.metrics),
		operator.WithHealth(health.New(checkers...)),
		operator.WithBaseContext(ctx),
	}
	if dev, ok := a.providers.Device.(*remote.Device); ok {
		srvOpts = append(srvOpts,
			operator.WithIngest(dev),
			operator.WithIngestFormat(audio.Format{
				SampleRate: a.cfg.Capture.SampleRate,
				Channels:   a.cfg.Capture.Channels,
			}),
		)
	}
	a.server = operator.NewServer(sessionController{a}, a.matcher, a.coordinator, srvOpts...)
}

// sessionController adapts the supervisor to the operator gateway, binding
// the fragment pipeline to Start.
type sessionController struct{ a *App }

func (s sessionController) Start(ctx context.Context) error {
	return s.a.supervisor.Start(ctx, s.a.emitFragment)
}

func (s sessionController) Stop() { s.a.supervisor.Stop() }

func (s sessionController) State() capture.SessionState { return s.a.supervisor.State() }

// onSessionState reacts to capture session transitions: the gate tracks the
// active session, gauges move, and consoles hear about it.
func (a *App) onSessionState(st capture.SessionState) {
	a.gate.SetSession(st.SessionID)

	a.mu.Lock()
	wasActive := a.sessionActive
	a.sessionActive = st.Active
	countedFallback := a.fallbackCounted
	if st.FallbackAttempted {
		a.fallbackCounted = true
	} else {
		a.fallbackCounted = false
	}
	a.mu.Unlock()

	ctx := context.Background()
	switch {
	case st.Active && !wasActive:
		a.metrics.ActiveSessions.Add(ctx, 1)
	case !st.Active && wasActive:
		a.metrics.ActiveSessions.Add(ctx, -1)
	}
	if st.FallbackAttempted && !countedFallback {
		a.metrics.StrategyFallbacks.Add(ctx, 1)
	}

	if a.server != nil {
		a.server.BroadcastSessionState(st)
	}
}

// ApplyConfig applies a hot-reloadable configuration change to the running
// subsystems. Only the fields surfaced by [config.Diff] are applied; anything
// else needs a restart.
func (a *App) ApplyConfig(d config.ConfigDiff, cfg *config.Config) {
	if d.Empty() {
		return
	}
	if d.CooldownChanged {
		a.gate.SetCooldown(time.Duration(d.NewCooldownMS) * time.Millisecond)
		a.log.Info("detection cooldown updated", "cooldown_ms", d.NewCooldownMS)
	}
	if len(d.TriggersAdded) > 0 || len(d.TriggersRemoved) > 0 {
		a.gate.SetTriggers(cfg.Detect.TriggerPhrases)
		a.log.Info("trigger phrases updated",
			"added", d.TriggersAdded, "removed", d.TriggersRemoved)
	}
	if d.MatchChanged {
		a.matcher.SetConfig(match.Config{
			MaxResults:       d.NewMatch.MaxResults,
			FuzzyMaxDistance: d.NewMatch.FuzzyMaxDistance,
			MinQueryLen:      d.NewMatch.MinQueryLen,
		})
		a.log.Info("match tuning updated",
			"max_results", d.NewMatch.MaxResults,
			"fuzzy_max_distance", d.NewMatch.FuzzyMaxDistance,
			"min_query_len", d.NewMatch.MinQueryLen)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the operator gateway and processes fragments until ctx is
// cancelled. It returns the context error on cancellation, or the server
// error if the listener fails.
func (a *App) Run(ctx context.Context) error {
	go a.processFragments(ctx)

	a.httpSrv = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: a.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("operator gateway listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serving operator gateway: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		// Stop capture first so no new fragments arrive.
		a.supervisor.Stop()

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				a.log.Warn("gateway shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// Command versecast is the main entry point for the VerseCast live
// presentation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/versecast/versecast/internal/app"
	"github.com/versecast/versecast/internal/config"
	"github.com/versecast/versecast/internal/observe"
	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/audio/mic"
	audiomock "github.com/versecast/versecast/pkg/audio/mock"
	"github.com/versecast/versecast/pkg/audio/remote"
	"github.com/versecast/versecast/pkg/provider/embeddings"
	emock "github.com/versecast/versecast/pkg/provider/embeddings/mock"
	ollamaembed "github.com/versecast/versecast/pkg/provider/embeddings/ollama"
	oaembed "github.com/versecast/versecast/pkg/provider/embeddings/openai"
	"github.com/versecast/versecast/pkg/provider/transcribe"
	tmock "github.com/versecast/versecast/pkg/provider/transcribe/mock"
	"github.com/versecast/versecast/pkg/provider/transcribe/native"
	oatranscribe "github.com/versecast/versecast/pkg/provider/transcribe/openai"
	"github.com/versecast/versecast/pkg/provider/transcribe/whisperhttp"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "versecast.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "versecast: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "versecast: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config rewrite can change it without
	// a restart.
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Log.Level.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("versecast starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Log.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "versecast",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer closeProviders(providers)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levelVar.Set(new.Log.Level.SlogLevel())
			slog.Info("log level updated", "level", new.Log.Level)
		}
		application.ApplyConfig(d, new)
	})
	if err != nil {
		slog.Warn("config watcher unavailable, changes need a restart", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives its config section and constructs the provider from
// the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription backends ────────────────────────────────────────────────

	reg.RegisterTranscribe("whisper-http", func(e config.TranscribeEntry) (transcribe.Provider, error) {
		return whisperhttp.New(whisperhttp.Config{
			BaseURL:  e.Endpoint,
			Timeout:  e.Timeout(),
			Language: e.Language,
		}, slog.Default())
	})

	reg.RegisterTranscribe("openai", func(e config.TranscribeEntry) (transcribe.Provider, error) {
		key := os.Getenv(e.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is empty", e.APIKeyEnv)
		}
		var opts []oatranscribe.Option
		if e.Endpoint != "" {
			opts = append(opts, oatranscribe.WithBaseURL(e.Endpoint))
		}
		if e.Language != "" {
			opts = append(opts, oatranscribe.WithLanguage(e.Language))
		}
		if e.TimeoutSeconds > 0 {
			opts = append(opts, oatranscribe.WithTimeout(e.Timeout()))
		}
		return oatranscribe.New(key, e.Model, opts...)
	})

	reg.RegisterTranscribe("native", func(e config.TranscribeEntry) (transcribe.Provider, error) {
		var opts []native.Option
		if e.Language != "" {
			opts = append(opts, native.WithLanguage(e.Language))
		}
		return native.New(e.ModelPath, opts...)
	})

	reg.RegisterTranscribe("mock", func(config.TranscribeEntry) (transcribe.Provider, error) {
		return &tmock.Provider{}, nil
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(sem config.SemanticConfig) (embeddings.Provider, error) {
		key := os.Getenv(sem.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is empty", sem.APIKeyEnv)
		}
		var opts []oaembed.Option
		if sem.Endpoint != "" {
			opts = append(opts, oaembed.WithBaseURL(sem.Endpoint))
		}
		return oaembed.New(key, sem.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(sem config.SemanticConfig) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if sem.Dimensions > 0 {
			opts = append(opts, ollamaembed.WithDimensions(sem.Dimensions))
		}
		return ollamaembed.New(sem.Endpoint, sem.Model, opts...)
	})

	reg.RegisterEmbeddings("mock", func(config.SemanticConfig) (embeddings.Provider, error) {
		return &emock.Provider{}, nil
	})

	// ── Audio devices ─────────────────────────────────────────────────────────

	reg.RegisterDevice("local", func(c config.CaptureConfig) (audio.Device, error) {
		return mic.New(mic.Config{
			SampleRate: c.SampleRate,
			Channels:   c.Channels,
		}, slog.Default()), nil
	})

	reg.RegisterDevice("remote", func(config.CaptureConfig) (audio.Device, error) {
		return remote.NewDevice(slog.Default()), nil
	})

	reg.RegisterDevice("mock", func(config.CaptureConfig) (audio.Device, error) {
		return audiomock.NewDevice(), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. Streaming capability is discovered from the created backend, so a
// backend registered once serves both strategies without loading twice.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	prov, err := reg.CreateTranscribe(cfg.Transcribe.TranscribeEntry)
	if err != nil {
		return nil, fmt.Errorf("create transcribe provider %q: %w", cfg.Transcribe.Provider, err)
	}
	ps.Transcribe = prov
	slog.Info("provider created", "kind", "transcribe", "name", cfg.Transcribe.Provider)

	if sp, ok := prov.(transcribe.StreamingProvider); ok {
		ps.Streaming = sp
		slog.Info("streaming capture available", "provider", cfg.Transcribe.Provider)
	} else {
		slog.Info("backend is upload-only, capture runs chunked from the start",
			"provider", cfg.Transcribe.Provider)
	}

	if fb := cfg.Transcribe.Fallback; fb != nil {
		p, err := reg.CreateTranscribe(*fb)
		if err != nil {
			return nil, fmt.Errorf("create fallback transcribe provider %q: %w", fb.Provider, err)
		}
		ps.TranscribeFallback = p
		slog.Info("provider created", "kind", "transcribe-fallback", "name", fb.Provider)
	}

	if sem := cfg.Verses.Semantic; sem.Enabled {
		p, err := reg.CreateEmbeddings(sem)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", sem.Provider, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", sem.Provider)
	}

	dev, err := reg.CreateDevice(cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("create audio device %q: %w", cfg.Capture.Source, err)
	}
	ps.Device = dev
	slog.Info("audio device created", "source", cfg.Capture.Source)

	return ps, nil
}

// closeProviders releases provider resources that hold OS handles, like the
// native whisper model.
func closeProviders(ps *app.Providers) {
	for _, p := range []any{ps.Transcribe, ps.TranscribeFallback} {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("provider close error", "err", err)
			}
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        VerseCast — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Transcribe", providerLabel(cfg.Transcribe.Provider, cfg.Transcribe.Model))
	if fb := cfg.Transcribe.Fallback; fb != nil {
		printRow("Fallback", providerLabel(fb.Provider, fb.Model))
	} else {
		printRow("Fallback", "(none)")
	}
	printRow("Verse store", string(cfg.Verses.Store))
	printRow("Translation", cfg.Verses.Translation)
	if sem := cfg.Verses.Semantic; sem.Enabled {
		printRow("Semantic", providerLabel(sem.Provider, sem.Model))
	} else {
		printRow("Semantic", "(disabled)")
	}
	printRow("Capture", string(cfg.Capture.Source))
	printRow("Chunk window", fmt.Sprintf("%ds", cfg.Capture.ChunkSeconds))
	printRow("Cooldown", fmt.Sprintf("%dms", cfg.Detect.CooldownMS))
	printRow("Triggers", fmt.Sprintf("%d extra", len(cfg.Detect.TriggerPhrases)))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

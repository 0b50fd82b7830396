package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcribe": {"whisper-http", "openai", "native", "mock"},
	"embeddings": {"openai", "ollama", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. `${VAR}` and `$VAR` references in the file
// are expanded from the environment before decoding, so secrets can stay out
// of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references, applies defaults, and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	// Capture
	if !cfg.Capture.Source.IsValid() {
		errs = append(errs, fmt.Errorf("capture.source %q is invalid; valid values: local, remote, mock", cfg.Capture.Source))
	}
	if cfg.Capture.Channels > 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is out of range [1, 2]", cfg.Capture.Channels))
	}
	if cfg.Capture.ChunkSeconds < 5 || cfg.Capture.ChunkSeconds > 7 {
		slog.Warn("capture.chunk_seconds outside [5, 7]; the recorder will clamp it",
			"configured", cfg.Capture.ChunkSeconds)
	}

	// Transcribe
	errs = append(errs, validateTranscribeEntry("transcribe", cfg.Transcribe.TranscribeEntry)...)
	if cfg.Transcribe.Fallback != nil {
		errs = append(errs, validateTranscribeEntry("transcribe.fallback", *cfg.Transcribe.Fallback)...)
	}

	// Verses
	if !cfg.Verses.Store.IsValid() {
		errs = append(errs, fmt.Errorf("verses.store %q is invalid; valid values: embedded, file, postgres", cfg.Verses.Store))
	}
	if cfg.Verses.Store == StoreFile && cfg.Verses.CorpusPath == "" {
		errs = append(errs, errors.New("verses.corpus_path is required when verses.store is file"))
	}
	if cfg.Verses.Store == StorePostgres && cfg.Verses.DSN == "" {
		errs = append(errs, errors.New("verses.dsn is required when verses.store is postgres"))
	}
	if cfg.Verses.FallbackTranslation != "" && cfg.Verses.FallbackTranslation == cfg.Verses.Translation {
		errs = append(errs, fmt.Errorf("verses.fallback_translation %q duplicates the primary translation", cfg.Verses.FallbackTranslation))
	}
	if cfg.Verses.Semantic.Enabled {
		if cfg.Verses.Semantic.Provider == "" {
			errs = append(errs, errors.New("verses.semantic.provider is required when semantic search is enabled"))
		} else {
			validateProviderName("embeddings", cfg.Verses.Semantic.Provider)
		}
		if cfg.Verses.Store != StorePostgres {
			slog.Warn("verses.semantic.enabled requires the postgres store; semantic search will be skipped",
				"store", cfg.Verses.Store)
		}
	}

	// Detect — duplicate trigger phrase detection.
	seen := make(map[string]int, len(cfg.Detect.TriggerPhrases))
	for i, phrase := range cfg.Detect.TriggerPhrases {
		norm := strings.ToLower(strings.TrimSpace(phrase))
		if norm == "" {
			errs = append(errs, fmt.Errorf("detect.trigger_phrases[%d] is empty", i))
			continue
		}
		if prev, ok := seen[norm]; ok {
			errs = append(errs, fmt.Errorf("detect.trigger_phrases[%d] %q is a duplicate of trigger_phrases[%d]", i, phrase, prev))
		}
		seen[norm] = i
	}

	return errors.Join(errs...)
}

// validateTranscribeEntry checks one transcription backend block. The prefix
// distinguishes the primary block from the fallback in messages.
func validateTranscribeEntry(prefix string, e TranscribeEntry) []error {
	var errs []error
	if e.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", prefix))
		return errs
	}
	validateProviderName("transcribe", e.Provider)

	switch e.Provider {
	case "whisper-http":
		if e.Endpoint == "" {
			errs = append(errs, fmt.Errorf("%s.endpoint is required for the whisper-http provider", prefix))
		}
	case "openai":
		if e.APIKeyEnv == "" {
			errs = append(errs, fmt.Errorf("%s.api_key_env is required for the openai provider", prefix))
		}
	case "native":
		if e.ModelPath == "" {
			errs = append(errs, fmt.Errorf("%s.model_path is required for the native provider", prefix))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

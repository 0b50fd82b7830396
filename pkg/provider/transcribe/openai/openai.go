// Package openai implements [transcribe.Provider] using the OpenAI audio
// transcription API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the transcribe.Provider interface.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	timeout  time.Duration
	language string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// API-compatible local servers.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLanguage sets a fixed recognition language for segments that carry no
// language hint of their own.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai transcribe: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Rate-limit retries are handled by the caller's retry policy.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, language: cfg.language}, nil
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, seg transcribe.Segment) (transcribe.Result, error) {
	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(seg.WAV), "segment.wav", "audio/wav"),
	}
	lang := seg.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		params.Language = param.NewOpt(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai transcribe: %w", classify(err))
	}

	return transcribe.Result{
		Text:     resp.Text,
		Language: lang,
		Duration: seg.Duration,
	}, nil
}

// LookupText implements transcribe.Provider. The OpenAI API does no
// scripture extraction, so reference detection stays local.
func (p *Provider) LookupText(context.Context, string) ([]transcribe.Reference, error) {
	return nil, transcribe.ErrNotSupported
}

// classify maps OpenAI API errors to the package error taxonomy, preserving
// the original error as the cause.
func classify(err error) error {
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if cerr := transcribe.ClassifyStatus(apiErr.StatusCode, apiErr.Message); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}

// Package openai embeds text through the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/versecast/versecast/pkg/provider/embeddings"
)

// DefaultModel balances cost and quality for verse-sized texts.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements [embeddings.Provider] over the OpenAI API. Safe for
// concurrent use.
type Provider struct {
	client oai.Client
	model  string

	reqOpts []option.RequestOption
}

// Option configures a [Provider].
type Option func(*Provider)

// WithBaseURL points the client at an API-compatible server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithBaseURL(url))
	}
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithOrganization(org))
	}
}

// WithTimeout bounds each embeddings request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// New creates a provider. An empty model selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	p := &Provider{
		model:   model,
		reqOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = oai.NewClient(p.reqOpts...)
	return p, nil
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return narrow(resp.Data[0].Embedding), nil
}

// EmbedBatch implements [embeddings.Provider]. The API reports an index per
// vector, so results are placed rather than appended.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: vector index %d out of range", e.Index)
		}
		out[e.Index] = narrow(e.Embedding)
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	lower := strings.ToLower(p.model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding-3-small"),
		strings.Contains(lower, "text-embedding-ada-002"):
		return 1536
	default:
		// Every embeddings model OpenAI has shipped so far defaults to 1536.
		return 1536
	}
}

// narrow converts the API's float64 vectors to the float32 the store keeps.
func narrow(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Package ollama embeds text through a local Ollama server's /api/embed
// endpoint. Models like nomic-embed-text run entirely on the host, which
// keeps verse indexing off the network and free of API quotas.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/versecast/versecast/pkg/provider/embeddings"
)

// DefaultBaseURL is where a stock Ollama install listens.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// modelDims maps well-known embedding models to their vector length, so
// Dimensions can answer without a probe request.
var modelDims = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// Provider talks to one Ollama model. Safe for concurrent use.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client

	// dims is resolved from options, the model table, or a one-time probe
	// embed on first use, in that order.
	dims      int
	probeOnce sync.Once
}

// Option configures a [Provider].
type Option func(*Provider)

// WithDimensions pins the vector length, skipping both the model table and
// the probe request.
func WithDimensions(n int) Option {
	return func(p *Provider) { p.dims = n }
}

// WithTimeout bounds each embed request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// New creates a provider for the given server and model. An empty baseURL
// falls back to [DefaultBaseURL].
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dims == 0 {
		p.dims = lookupDims(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements [embeddings.Provider]. All texts go out in a single
// /api/embed call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.post(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama: embed batch: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions implements [embeddings.Provider]. For a model outside the known
// table it probes the live server once and caches the answer; a failed probe
// yields 0.
func (p *Provider) Dimensions() int {
	if p.dims != 0 {
		return p.dims
	}
	p.probeOnce.Do(func() {
		vecs, err := p.post(context.Background(), []string{"probe"})
		if err == nil && len(vecs) > 0 {
			p.dims = len(vecs[0])
		}
	})
	return p.dims
}

func (p *Provider) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return out.Embeddings, nil
}

// lookupDims matches model against the known-model table, tolerating tag
// suffixes like nomic-embed-text:latest.
func lookupDims(model string) int {
	lower := strings.ToLower(model)
	for name, n := range modelDims {
		if strings.Contains(lower, name) {
			return n
		}
	}
	return 0
}

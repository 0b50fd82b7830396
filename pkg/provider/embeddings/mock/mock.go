// Package mock is an in-memory embeddings backend for tests. Vectors are
// derived deterministically from the input text, so equal texts embed to
// equal vectors without a live model.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/versecast/versecast/pkg/provider/embeddings"
)

const defaultDims = 8

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements [embeddings.Provider]. The zero value is usable.
type Provider struct {
	// Dims is the reported vector length. Zero means 8.
	Dims int

	// Err, when set, fails every Embed and EmbedBatch call.
	Err error

	mu    sync.Mutex
	texts []string
}

// Embed returns a deterministic vector for text.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return defaultDims
}

// EmbeddedTexts returns every text passed to Embed or EmbedBatch, in order.
func (p *Provider) EmbeddedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// vector hashes text into a unit-free pseudo-embedding. Each component mixes
// the text hash with its index so distinct texts rarely collide.
func (p *Provider) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.Dimensions())
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / float32(1<<31)
	}
	return vec
}

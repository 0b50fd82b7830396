// Package embeddings abstracts the vector backends behind semantic verse
// search. A provider maps text to dense float32 vectors; the Postgres store
// embeds every verse once at index time and embeds each spoken query at
// search time, so both sides must come from the same provider instance.
package embeddings

import "context"

// Provider is a text-embedding backend. Implementations must be safe for
// concurrent use, and every vector from one instance must have the same
// length.
type Provider interface {
	// Embed returns the vector for one text, length [Provider.Dimensions].
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one backend call; result[i] belongs to
	// texts[i]. No partial results: any failure returns a nil slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length this provider produces. The Postgres
	// store sizes its vector column from it.
	Dimensions() int
}

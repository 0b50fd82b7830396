package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlVerses is the base corpus table. The same verse in two translations
// shares an ID, so the primary key includes the translation.
const ddlVerses = `
CREATE TABLE IF NOT EXISTS verses (
    id           TEXT    NOT NULL,
    translation  TEXT    NOT NULL,
    book         TEXT    NOT NULL,
    chapter      INTEGER NOT NULL,
    verse_num    INTEGER NOT NULL,
    text         TEXT    NOT NULL,
    PRIMARY KEY (id, translation)
);

CREATE INDEX IF NOT EXISTS idx_verses_reference
    ON verses (translation, lower(book), chapter, verse_num);
`

// ddlEmbeddings returns the pgvector DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema
// creation time.
func ddlEmbeddings(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

ALTER TABLE verses ADD COLUMN IF NOT EXISTS embedding vector(%d);

CREATE INDEX IF NOT EXISTS idx_verses_embedding
    ON verses USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the verses table and, when embeddingDimensions
// is positive, the pgvector extension, column, and HNSW index. It is
// idempotent and safe to call on every application start.
//
// Changing the embedding dimension after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{ddlVerses}
	if embeddingDimensions > 0 {
		statements = append(statements, ddlEmbeddings(embeddingDimensions))
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

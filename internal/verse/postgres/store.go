// Package postgres provides a PostgreSQL-backed verse corpus with optional
// pgvector semantic search.
//
// The store serves one translation per instance and implements both
// [verse.Store] and, when an embeddings provider is configured,
// [match.SemanticSearcher]. The pgvector extension is only required when
// semantic search is enabled; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, postgres.Config{
//	    DSN:         dsn,
//	    Translation: "KJV",
//	    Embedder:    embedder, // optional
//	})
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/versecast/versecast/internal/match"
	"github.com/versecast/versecast/internal/verse"
	"github.com/versecast/versecast/pkg/provider/embeddings"
)

// Compile-time interface checks.
var (
	_ verse.Store            = (*Store)(nil)
	_ match.SemanticSearcher = (*Store)(nil)
)

// Config configures a [Store].
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Translation this store serves (e.g. "KJV"). Required.
	Translation string

	// Embedder enables semantic search when non-nil. Its dimensionality
	// determines the vector column width at first migration.
	Embedder embeddings.Provider
}

// Store is a PostgreSQL-backed verse corpus sharing a single [pgxpool.Pool].
// All operations are safe for concurrent use.
type Store struct {
	pool        *pgxpool.Pool
	translation string
	embedder    embeddings.Provider
}

// NewStore creates a Store, establishes the connection pool, registers
// pgvector types when an embedder is configured, and runs [Migrate].
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Translation == "" {
		return nil, errors.New("postgres store: translation must not be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	if cfg.Embedder != nil {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	dims := 0
	if cfg.Embedder != nil {
		dims = cfg.Embedder.Dimensions()
	}
	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:        pool,
		translation: cfg.Translation,
		embedder:    cfg.Embedder,
	}, nil
}

// Translation implements [verse.Store].
func (s *Store) Translation() string { return s.translation }

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// LookupByReference implements [verse.Store]. A legitimate miss returns
// (zero, false, nil).
func (s *Store) LookupByReference(ctx context.Context, book string, chapter, verseNum int) (verse.Verse, bool, error) {
	const q = `
		SELECT id, book, chapter, verse_num, text, translation
		FROM   verses
		WHERE  translation = $1
		  AND  lower(book) = lower($2)
		  AND  chapter = $3
		  AND  verse_num = $4`

	var v verse.Verse
	err := s.pool.QueryRow(ctx, q, s.translation, book, chapter, verseNum).
		Scan(&v.ID, &v.Book, &v.Chapter, &v.VerseNum, &v.Text, &v.Translation)
	if errors.Is(err, pgx.ErrNoRows) {
		return verse.Verse{}, false, nil
	}
	if err != nil {
		return verse.Verse{}, false, fmt.Errorf("postgres store: lookup %s %d:%d: %w", book, chapter, verseNum, err)
	}
	return v, true, nil
}

// All implements [verse.Store].
func (s *Store) All(ctx context.Context) ([]verse.Verse, error) {
	const q = `
		SELECT id, book, chapter, verse_num, text, translation
		FROM   verses
		WHERE  translation = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, s.translation)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list verses: %w", err)
	}

	verses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (verse.Verse, error) {
		var v verse.Verse
		err := row.Scan(&v.ID, &v.Book, &v.Chapter, &v.VerseNum, &v.Text, &v.Translation)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan verses: %w", err)
	}
	return verses, nil
}

// Import upserts the given verses into the corpus. Existing rows with the
// same ID and translation are replaced.
func (s *Store) Import(ctx context.Context, verses []verse.Verse) error {
	const q = `
		INSERT INTO verses (id, translation, book, chapter, verse_num, text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id, translation) DO UPDATE SET
		    book      = EXCLUDED.book,
		    chapter   = EXCLUDED.chapter,
		    verse_num = EXCLUDED.verse_num,
		    text      = EXCLUDED.text`

	for _, v := range verses {
		translation := v.Translation
		if translation == "" {
			translation = s.translation
		}
		if _, err := s.pool.Exec(ctx, q, v.ID, translation, v.Book, v.Chapter, v.VerseNum, v.Text); err != nil {
			return fmt.Errorf("postgres store: import %s: %w", v.ID, err)
		}
	}
	return nil
}

// EmbedMissing computes and stores embeddings for verses that do not have one
// yet. Requires an embedder; batches all missing verses in one provider call.
func (s *Store) EmbedMissing(ctx context.Context) error {
	if s.embedder == nil {
		return errors.New("postgres store: no embeddings provider configured")
	}

	const listQ = `
		SELECT id, text
		FROM   verses
		WHERE  translation = $1 AND embedding IS NULL
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, listQ, s.translation)
	if err != nil {
		return fmt.Errorf("postgres store: list unembedded verses: %w", err)
	}

	type pending struct {
		id   string
		text string
	}
	missing, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pending, error) {
		var p pending
		err := row.Scan(&p.id, &p.text)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("postgres store: scan unembedded verses: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, p := range missing {
		texts[i] = p.text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("postgres store: embedding %d verses: %w", len(missing), err)
	}

	const updateQ = `
		UPDATE verses SET embedding = $1
		WHERE  id = $2 AND translation = $3`
	for i, p := range missing {
		vec := pgvector.NewVector(vectors[i])
		if _, err := s.pool.Exec(ctx, updateQ, vec, p.id, s.translation); err != nil {
			return fmt.Errorf("postgres store: storing embedding for %s: %w", p.id, err)
		}
	}
	return nil
}

// SemanticSearch implements [match.SemanticSearcher]. The query is embedded
// and matched against verse embeddings by cosine distance; results are most
// similar first with similarity mapped into [0,1].
func (s *Store) SemanticSearch(ctx context.Context, query string, topK int) ([]match.SemanticHit, error) {
	if s.embedder == nil {
		return nil, errors.New("postgres store: no embeddings provider configured")
	}
	if topK <= 0 {
		topK = 10
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres store: embedding query: %w", err)
	}

	const q = `
		SELECT id, book, chapter, verse_num, text, translation,
		       embedding <=> $1 AS distance
		FROM   verses
		WHERE  translation = $2 AND embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), s.translation, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: semantic search: %w", err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (match.SemanticHit, error) {
		var (
			hit      match.SemanticHit
			distance float64
		)
		err := row.Scan(
			&hit.Verse.ID,
			&hit.Verse.Book,
			&hit.Verse.Chapter,
			&hit.Verse.VerseNum,
			&hit.Verse.Text,
			&hit.Verse.Translation,
			&distance,
		)
		hit.Similarity = similarityFromDistance(distance)
		return hit, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan semantic hits: %w", err)
	}
	return hits, nil
}

// similarityFromDistance maps a cosine distance in [0,2] into a similarity
// in [0,1].
func similarityFromDistance(distance float64) float64 {
	sim := 1 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Package match resolves free-form transcript queries to ranked verse
// candidates.
//
// Search runs four strategies in union (explicit reference, phrase
// containment, fuzzy token overlap, theme keywords) plus an optional semantic
// strategy when an embedding-backed searcher is configured. Candidates are
// deduplicated by verse ID keeping the highest confidence, sorted
// confidence-descending with a stable sort, and truncated to the configured
// maximum. An empty result is a normal outcome; [ErrUnavailable] is reserved
// for backend failures so callers can tell "nothing matched" from "search is
// down".
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/versecast/versecast/internal/verse"
	"github.com/versecast/versecast/internal/verse/refparse"
)

// ErrUnavailable indicates the verse backend could not be reached. Callers
// must treat it as degraded operation, not as an empty result.
var ErrUnavailable = errors.New("match: verse search unavailable")

// Strategy labels which strategy produced a candidate.
type Strategy string

const (
	StrategyReference Strategy = "reference"
	StrategyPhrase    Strategy = "phrase"
	StrategyFuzzy     Strategy = "fuzzy"
	StrategyTheme     Strategy = "theme"
	StrategySemantic  Strategy = "semantic"
)

// Candidate is a scored verse match.
type Candidate struct {
	Verse      verse.Verse
	Confidence float64
	Strategy   Strategy
}

// SemanticHit is a nearest-neighbour result from a semantic searcher.
type SemanticHit struct {
	Verse verse.Verse
	// Similarity is cosine similarity in [0,1].
	Similarity float64
}

// SemanticSearcher is the optional embedding-backed strategy. Implemented by
// the PostgreSQL store when pgvector and an embeddings provider are
// configured.
type SemanticSearcher interface {
	SemanticSearch(ctx context.Context, query string, topK int) ([]SemanticHit, error)
}

// Config tunes the matcher. Zero values take defaults.
type Config struct {
	// MaxResults caps the ranked candidate list. Default: 10.
	MaxResults int

	// FuzzyMaxDistance is the Levenshtein budget per token. Default: 2.
	FuzzyMaxDistance int

	// MinQueryLen is the minimum normalized query length for the scan
	// strategies; shorter queries only run the reference strategy.
	// Default: 3.
	MinQueryLen int
}

func (c *Config) applyDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.FuzzyMaxDistance <= 0 {
		c.FuzzyMaxDistance = 2
	}
	if c.MinQueryLen <= 0 {
		c.MinQueryLen = 3
	}
}

// Matcher searches a verse store. Safe for concurrent use; the store and
// semantic searcher are read-only after construction, the tuning swaps via
// [Matcher.SetConfig].
type Matcher struct {
	store    verse.Store
	semantic SemanticSearcher
	log      *slog.Logger

	mu  sync.RWMutex
	cfg Config
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(m *Matcher) { m.cfg = cfg }
}

// WithSemantic enables the semantic strategy.
func WithSemantic(s SemanticSearcher) Option {
	return func(m *Matcher) { m.semantic = s }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Matcher) { m.log = log }
}

// New creates a Matcher over store.
func New(store verse.Store, opts ...Option) *Matcher {
	m := &Matcher{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cfg.applyDefaults()
	return m
}

// SetConfig swaps the tuning at runtime. Zero values take defaults. Searches
// already in flight finish with the tuning they started with.
func (m *Matcher) SetConfig(cfg Config) {
	cfg.applyDefaults()
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

func (m *Matcher) config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Search resolves query to ranked candidates. An empty slice with a nil
// error means nothing matched; an [ErrUnavailable]-wrapped error means the
// backend failed.
func (m *Matcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	cfg := m.config()

	byID := make(map[string]Candidate)
	add := func(c Candidate) {
		if c.Confidence <= 0 {
			return
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		if prev, ok := byID[c.Verse.ID]; !ok || c.Confidence > prev.Confidence {
			byID[c.Verse.ID] = c
		}
	}

	if err := m.referenceStrategy(ctx, query, add); err != nil {
		return nil, err
	}

	norm := normalize(query)
	if len(norm) >= cfg.MinQueryLen {
		all, err := m.store.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing corpus: %v", ErrUnavailable, err)
		}
		m.phraseStrategy(norm, all, add)
		m.fuzzyStrategy(norm, all, cfg.FuzzyMaxDistance, add)
		m.themeStrategy(norm, all, add)
	}

	if m.semantic != nil {
		m.semanticStrategy(ctx, query, cfg.MaxResults, add)
	}

	ranked := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		ranked = append(ranked, c)
	}
	// Stable order: confidence desc, explicit references ahead of other
	// strategies at equal confidence, then verse ID so equal scores are
	// deterministic.
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		if aRef, bRef := a.Strategy == StrategyReference, b.Strategy == StrategyReference; aRef != bRef {
			if aRef {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Verse.ID, b.Verse.ID)
	})
	if len(ranked) > cfg.MaxResults {
		ranked = ranked[:cfg.MaxResults]
	}
	return ranked, nil
}

// referenceStrategy resolves explicit references at full confidence. Ranges
// expand to one candidate per verse.
func (m *Matcher) referenceStrategy(ctx context.Context, query string, add func(Candidate)) error {
	for _, ref := range refparse.FindAll(query) {
		start := ref.Verse
		if start == 0 {
			// Chapter-only reference: project the chapter head.
			start = 1
		}
		end := start
		if ref.VerseEnd > start {
			end = ref.VerseEnd
		}
		for vn := start; vn <= end; vn++ {
			v, ok, err := m.store.LookupByReference(ctx, ref.Book, ref.Chapter, vn)
			if err != nil {
				return fmt.Errorf("%w: looking up %s: %v", ErrUnavailable, ref.String(), err)
			}
			if !ok {
				continue
			}
			add(Candidate{Verse: v, Confidence: 1.0, Strategy: StrategyReference})
		}
	}
	return nil
}

// phraseStrategy scores verses whose text contains the whole normalized
// query. Longer queries relative to the verse score higher.
func (m *Matcher) phraseStrategy(norm string, all []verse.Verse, add func(Candidate)) {
	for _, v := range all {
		text := normalize(v.Text)
		if !strings.Contains(text, norm) {
			continue
		}
		conf := math.Min(1.0, float64(len(norm))/float64(len(text))+0.2)
		add(Candidate{Verse: v, Confidence: conf, Strategy: StrategyPhrase})
	}
}

// fuzzyStrategy scores verses by token overlap, tolerating transcription
// noise via substring containment and a small Levenshtein budget. The
// matched/total ratio runs over significant tokens only: stopwords and short
// function words neither match nor inflate the denominator, so filler speech
// does not dilute the score.
func (m *Matcher) fuzzyStrategy(norm string, all []verse.Verse, maxDist int, add func(Candidate)) {
	tokens := significantTokens(norm)
	if len(tokens) == 0 {
		return
	}
	threshold := min(3, int(math.Ceil(0.7*float64(len(tokens)))))

	for _, v := range all {
		words := strings.Fields(normalize(v.Text))
		matched := 0
		for _, tok := range tokens {
			if tokenMatches(tok, words, maxDist) {
				matched++
			}
		}
		if matched < threshold {
			continue
		}
		conf := 0.8 * float64(matched) / float64(len(tokens))
		add(Candidate{Verse: v, Confidence: conf, Strategy: StrategyFuzzy})
	}
}

// semanticStrategy folds in nearest-neighbour hits. A failing semantic
// backend degrades the search rather than failing it; the lexical
// strategies already produced their candidates.
func (m *Matcher) semanticStrategy(ctx context.Context, query string, topK int, add func(Candidate)) {
	hits, err := m.semantic.SemanticSearch(ctx, query, topK)
	if err != nil {
		m.log.Warn("semantic search failed, continuing with lexical results", "error", err)
		return
	}
	for _, h := range hits {
		sim := math.Max(0, math.Min(1, h.Similarity))
		add(Candidate{Verse: h.Verse, Confidence: sim * 0.85, Strategy: StrategySemantic})
	}
}

// tokenMatches reports whether tok matches any verse word by containment in
// either direction or by edit distance.
func tokenMatches(tok string, words []string, maxDist int) bool {
	for _, w := range words {
		if strings.Contains(w, tok) || strings.Contains(tok, w) {
			return true
		}
		if abs(len(w)-len(tok)) > maxDist {
			continue
		}
		if matchr.Levenshtein(tok, w) <= maxDist {
			return true
		}
	}
	return false
}

// significantTokens splits a normalized query into match-worthy tokens,
// dropping short function words.
func significantTokens(norm string) []string {
	var out []string
	for _, tok := range strings.Fields(norm) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"unto": true, "shall": true, "thou": true, "thy": true, "his": true,
	"him": true, "them": true, "they": true, "are": true, "was": true,
	"not": true, "but": true, "have": true, "hath": true, "will": true,
	"you": true, "your": true, "all": true, "this": true,
}

// normalize lowercases and strips everything but letters, digits and spaces,
// collapsing runs of whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

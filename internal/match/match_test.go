package match

import (
	"context"
	"errors"
	"testing"

	"github.com/versecast/versecast/internal/verse"
)

func newTestMatcher(opts ...Option) *Matcher {
	return New(verse.NewEmbeddedStore(), opts...)
}

func TestSearchExplicitReference(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "please turn to John 3:16")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Search returned no candidates")
	}
	top := got[0]
	if top.Verse.ID != "43003016" {
		t.Errorf("top candidate = %s, want John 3:16", top.Verse.Reference())
	}
	if top.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", top.Confidence)
	}
	if top.Strategy != StrategyReference {
		t.Errorf("Strategy = %q, want %q", top.Strategy, StrategyReference)
	}
}

func TestSearchChapterOnlyProjectsChapterHead(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "our reading is Psalm 23")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Search returned no candidates")
	}
	if got[0].Verse.ID != "19023001" {
		t.Errorf("top candidate = %s, want Psalm 23:1", got[0].Verse.Reference())
	}
}

func TestSearchVerseRange(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "Matthew 22:37-39")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	ids := make(map[string]bool)
	for _, c := range got {
		if c.Strategy == StrategyReference {
			ids[c.Verse.ID] = true
			if c.Confidence != 1.0 {
				t.Errorf("reference candidate %s Confidence = %v, want 1.0", c.Verse.ID, c.Confidence)
			}
		}
	}
	if !ids["40022037"] || !ids["40022039"] {
		t.Errorf("range candidates = %v, want both 40022037 and 40022039", ids)
	}
}

func TestSearchPhraseContainment(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "The Lord is my shepherd")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Search returned no candidates")
	}
	top := got[0]
	if top.Verse.ID != "19023001" {
		t.Fatalf("top candidate = %s, want Psalm 23:1", top.Verse.Reference())
	}
	if top.Confidence <= 0.7 || top.Confidence > 1.0 {
		t.Errorf("Confidence = %v, want in (0.7, 1.0]", top.Confidence)
	}
}

func TestSearchFuzzyTokens(t *testing.T) {
	m := newTestMatcher()

	// Paraphrased, not verbatim: token overlap should still find Isaiah 40:31.
	got, err := m.Search(context.Background(), "those who wait upon the lord renew their strength like eagles")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	found := false
	for _, c := range got {
		if c.Verse.ID == "23040031" {
			found = true
			if c.Confidence < 0.5 {
				t.Errorf("Isaiah 40:31 Confidence = %v, want >= 0.5", c.Confidence)
			}
		}
	}
	if !found {
		t.Fatalf("Isaiah 40:31 not in candidates: %+v", got)
	}
}

func TestSearchThemeKeywords(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "a word about forgiveness")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Search returned no candidates")
	}
	for _, c := range got {
		if c.Strategy == StrategyTheme && c.Confidence > 0.7 {
			t.Errorf("theme candidate %s Confidence = %v, want <= 0.7", c.Verse.ID, c.Confidence)
		}
	}
	found := false
	for _, c := range got {
		if c.Verse.ID == "62001009" { // 1 John 1:9
			found = true
		}
	}
	if !found {
		t.Errorf("1 John 1:9 not in candidates: %+v", got)
	}
}

func TestSearchDedupKeepsMaxConfidence(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "John 3:16 for God so loved the world")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	count := 0
	for _, c := range got {
		if c.Verse.ID == "43003016" {
			count++
			if c.Confidence != 1.0 {
				t.Errorf("Confidence = %v, want 1.0 (reference wins dedup)", c.Confidence)
			}
			if c.Strategy != StrategyReference {
				t.Errorf("Strategy = %q, want %q", c.Strategy, StrategyReference)
			}
		}
	}
	if count != 1 {
		t.Errorf("John 3:16 appears %d times, want exactly 1", count)
	}
}

func TestSearchRankingAndTruncation(t *testing.T) {
	m := newTestMatcher(WithConfig(Config{MaxResults: 2}))

	got, err := m.Search(context.Background(), "love")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(candidates) = %d, want 2 (truncated)", len(got))
	}
	if got[0].Confidence < got[1].Confidence {
		t.Errorf("candidates not sorted: %v then %v", got[0].Confidence, got[1].Confidence)
	}
}

func TestSearchEmptyAndNoMatch(t *testing.T) {
	m := newTestMatcher()

	got, err := m.Search(context.Background(), "")
	if err != nil || len(got) != 0 {
		t.Fatalf("empty query = (%v, %v), want (empty, nil)", got, err)
	}

	got, err = m.Search(context.Background(), "zzyzx qwfpgj")
	if err != nil {
		t.Fatalf("no-match query returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("no-match query returned candidates: %+v", got)
	}
}

// listStore serves a fixed verse list, for tests needing crafted texts.
type listStore struct{ verses []verse.Verse }

func (s listStore) LookupByReference(_ context.Context, book string, chapter, verseNum int) (verse.Verse, bool, error) {
	for _, v := range s.verses {
		if v.Book == book && v.Chapter == chapter && v.VerseNum == verseNum {
			return v, true, nil
		}
	}
	return verse.Verse{}, false, nil
}
func (s listStore) All(context.Context) ([]verse.Verse, error) { return s.verses, nil }
func (s listStore) Translation() string                        { return "KJV" }

func TestSearchThemeOccurrencesRaiseConfidence(t *testing.T) {
	dwelling := verse.Verse{
		ID: "43015012", Book: "John", Chapter: 15, VerseNum: 12,
		Text: "Love one another as I have loved you, for love is of God",
	}
	passing := verse.Verse{
		ID: "49005002", Book: "Ephesians", Chapter: 5, VerseNum: 2,
		Text: "Walk in love",
	}
	m := New(listStore{verses: []verse.Verse{dwelling, passing}})

	got, err := m.Search(context.Background(), "sermon about love")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	confs := make(map[string]float64)
	for _, c := range got {
		if c.Strategy == StrategyTheme {
			confs[c.Verse.ID] = c.Confidence
		}
	}
	// Three "love" occurrences hit the 0.7 cap; a single one scores 0.3.
	if confs[dwelling.ID] != 0.7 {
		t.Errorf("dwelling verse Confidence = %v, want 0.7", confs[dwelling.ID])
	}
	if confs[passing.ID] != 0.3 {
		t.Errorf("passing verse Confidence = %v, want 0.3", confs[passing.ID])
	}
}

func TestSearchReferenceWinsConfidenceTies(t *testing.T) {
	// A verse that quotes the reference verbatim scores 1.0 on phrase
	// containment and sorts ahead of the real John 3:16 by ID alone.
	echo := verse.Verse{
		ID: "01001001", Book: "Genesis", Chapter: 1, VerseNum: 1,
		Text: "John 3 16",
	}
	target := verse.Verse{
		ID: "43003016", Book: "John", Chapter: 3, VerseNum: 16,
		Text: "For God so loved the world",
	}
	m := New(listStore{verses: []verse.Verse{echo, target}})

	got, err := m.Search(context.Background(), "John 3:16")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("len(candidates) = %d, want at least 2", len(got))
	}
	if got[0].Verse.ID != target.ID || got[0].Strategy != StrategyReference {
		t.Fatalf("top candidate = %s via %s, want John 3:16 via %s",
			got[0].Verse.ID, got[0].Strategy, StrategyReference)
	}
}

// downStore fails all operations, simulating an unreachable backend.
type downStore struct{}

func (downStore) LookupByReference(context.Context, string, int, int) (verse.Verse, bool, error) {
	return verse.Verse{}, false, errors.New("dial tcp: connection refused")
}
func (downStore) All(context.Context) ([]verse.Verse, error) {
	return nil, errors.New("dial tcp: connection refused")
}
func (downStore) Translation() string { return "KJV" }

func TestSearchBackendFailureIsUnavailable(t *testing.T) {
	m := New(downStore{})

	_, err := m.Search(context.Background(), "for god so loved the world")
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

// scriptedSemantic returns canned hits or a canned error.
type scriptedSemantic struct {
	hits []SemanticHit
	err  error
}

func (s scriptedSemantic) SemanticSearch(context.Context, string, int) ([]SemanticHit, error) {
	return s.hits, s.err
}

func TestSearchSemanticStrategy(t *testing.T) {
	target := verse.Verse{ID: "43003016", Book: "John", Chapter: 3, VerseNum: 16, Text: "x"}
	m := newTestMatcher(WithSemantic(scriptedSemantic{
		hits: []SemanticHit{{Verse: target, Similarity: 1.0}},
	}))

	got, err := m.Search(context.Background(), "zzyzx qwfpgj")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(got))
	}
	if got[0].Strategy != StrategySemantic {
		t.Errorf("Strategy = %q, want %q", got[0].Strategy, StrategySemantic)
	}
	if got[0].Confidence > 0.85 {
		t.Errorf("semantic Confidence = %v, want <= 0.85", got[0].Confidence)
	}
}

func TestSearchSemanticFailureDegrades(t *testing.T) {
	m := newTestMatcher(WithSemantic(scriptedSemantic{err: errors.New("embeddings quota")}))

	got, err := m.Search(context.Background(), "John 3:16")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) == 0 || got[0].Verse.ID != "43003016" {
		t.Fatalf("lexical results lost when semantic fails: %+v", got)
	}
}

package verse

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It backs single-machine deployments and tests.
type MemStore struct {
	translation string

	mu    sync.RWMutex
	byID  map[string]Verse
	byRef map[string]Verse
}

// NewMemStore returns a [MemStore] holding the given verses. Verses with a
// duplicate ID replace earlier entries. translation labels the corpus; when
// empty, the translation of the first verse is used.
func NewMemStore(translation string, verses []Verse) *MemStore {
	if translation == "" && len(verses) > 0 {
		translation = verses[0].Translation
	}
	s := &MemStore{
		translation: translation,
		byID:        make(map[string]Verse, len(verses)),
		byRef:       make(map[string]Verse, len(verses)),
	}
	for _, v := range verses {
		if v.Translation == "" {
			v.Translation = translation
		}
		s.byID[v.ID] = v
		s.byRef[refKey(v.Book, v.Chapter, v.VerseNum)] = v
	}
	return s
}

// NewEmbeddedStore returns a [MemStore] preloaded with the embedded KJV
// sample corpus. Useful for demos and offline operation.
func NewEmbeddedStore() *MemStore {
	return NewMemStore(EmbeddedTranslation, EmbeddedCorpus())
}

// LookupByReference implements [Store.LookupByReference]. Book matching is
// case-insensitive; a miss is (zero, false, nil).
func (s *MemStore) LookupByReference(_ context.Context, book string, chapter, verseNum int) (Verse, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byRef[refKey(book, chapter, verseNum)]
	return v, ok, nil
}

// All implements [Store.All]. Verses are returned sorted by ID so the scan
// order is deterministic.
func (s *MemStore) All(_ context.Context) ([]Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Verse, 0, len(s.byID))
	for _, v := range s.byID {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Verse) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Translation implements [Store.Translation].
func (s *MemStore) Translation() string { return s.translation }

// Len returns the number of verses held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// refKey normalises a reference triple into a map key.
func refKey(book string, chapter, verseNum int) string {
	return fmt.Sprintf("%s|%d|%d", strings.ToLower(strings.TrimSpace(book)), chapter, verseNum)
}

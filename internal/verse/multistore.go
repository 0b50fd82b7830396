package verse

import (
	"context"
	"fmt"
	"log/slog"
)

// MultiStore layers a primary translation store over one or more fallback
// translation stores. A reference lookup that misses or errors in the primary
// is retried against each fallback in order, so a corpus gap in the preferred
// translation still resolves to a projectable verse. All() and Translation()
// delegate to the primary only; fallbacks exist purely for lookup coverage.
type MultiStore struct {
	stores []Store
}

var _ Store = (*MultiStore)(nil)

// NewMultiStore creates a [MultiStore] with primary first. At least one store
// is required; fallbacks are consulted in the order given.
func NewMultiStore(primary Store, fallbacks ...Store) *MultiStore {
	stores := make([]Store, 0, 1+len(fallbacks))
	stores = append(stores, primary)
	stores = append(stores, fallbacks...)
	return &MultiStore{stores: stores}
}

// LookupByReference resolves a reference against the primary store, then each
// fallback. A store error is logged and treated like a miss so a degraded
// primary (auth failure, connection loss) does not blind the whole lookup;
// the error is only surfaced when every store fails.
func (ms *MultiStore) LookupByReference(ctx context.Context, book string, chapter, verseNum int) (Verse, bool, error) {
	var lastErr error
	for i, s := range ms.stores {
		v, ok, err := s.LookupByReference(ctx, book, chapter, verseNum)
		if err != nil {
			lastErr = err
			slog.Warn("verse store lookup failed, trying fallback translation",
				"translation", s.Translation(),
				"book", book, "chapter", chapter, "verse", verseNum,
				"error", err)
			continue
		}
		if ok {
			if i > 0 {
				slog.Debug("reference resolved by fallback translation",
					"translation", s.Translation(),
					"book", book, "chapter", chapter, "verse", verseNum)
			}
			return v, true, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return Verse{}, false, fmt.Errorf("verse: all translation stores failed: %w", lastErr)
	}
	return Verse{}, false, nil
}

// All returns the primary store's corpus.
func (ms *MultiStore) All(ctx context.Context) ([]Verse, error) {
	return ms.stores[0].All(ctx)
}

// Translation returns the primary store's translation tag.
func (ms *MultiStore) Translation() string {
	return ms.stores[0].Translation()
}

// Package verse defines the scripture data model and the Store abstraction
// the matching pipeline reads from.
//
// A [Verse] is immutable once loaded. Stores are addressable two ways: by
// exact reference (book/chapter/verse) and as a finite, restartable sequence
// of all verses for scan-based matching strategies. Not-found is never an
// error; only transport-level failures (timeouts, malformed responses from a
// remote corpus) surface as errors, and callers are expected to treat those
// as "search unavailable" rather than fatal.
package verse

import (
	"context"
	"fmt"
)

// Verse is a single scripture verse. The ID follows the BBCCCVVV scheme
// (zero-padded book, chapter, and verse numbers, e.g. "43003016" for
// John 3:16) so that the same verse in two translations shares an ID.
type Verse struct {
	ID          string `json:"id"`
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	VerseNum    int    `json:"verse"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// Reference returns the human-readable reference, e.g. "John 3:16".
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.VerseNum)
}

// Store is the read abstraction over a verse corpus.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// LookupByReference returns the verse at the given canonical book name,
	// chapter, and verse number. A legitimate miss returns (zero, false, nil);
	// an error is returned only for transport-level failures.
	LookupByReference(ctx context.Context, book string, chapter, verseNum int) (Verse, bool, error)

	// All returns every verse in the corpus. The returned slice is owned by
	// the caller. The sequence is finite and restartable: successive calls
	// return the same verses.
	All(ctx context.Context) ([]Verse, error)

	// Translation identifies which translation this store serves (e.g. "KJV").
	Translation() string
}

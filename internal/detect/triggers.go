package detect

import (
	"sort"
	"strings"

	"github.com/versecast/versecast/internal/verse/refparse"
)

// triggerPhrases are the spoken cues that precede a scripture reading.
// Longer phrases are matched first so "turn your bibles to" wins over
// "turn to".
var triggerPhrases = []string{
	"turn your bibles to",
	"turn with me to",
	"let's turn to",
	"lets turn to",
	"turn to",
	"if you look at",
	"look at",
	"i'm reading from",
	"im reading from",
	"reading from",
	"our passage today is",
	"the text for today is",
	"as we see in",
	"as it is written",
	"as written in",
	"according to",
	"the book of",
	"in the book of",
	"scripture says",
	"the scripture says",
	"bible says",
	"the bible says",
	"word says",
	"the word says",
	"jesus said in",
	"paul writes in",
	"paul wrote in",
	"david wrote in",
	"moses said in",
}

// triggerSet holds the phrase list for a gate instance, sorted longest
// first so the most specific phrase claims the match.
type triggerSet struct {
	phrases []string
}

func newTriggerSet(extra []string) *triggerSet {
	phrases := make([]string, 0, len(triggerPhrases)+len(extra))
	phrases = append(phrases, triggerPhrases...)
	for _, p := range extra {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	sort.Slice(phrases, func(i, j int) bool {
		return len(phrases[i]) > len(phrases[j])
	})
	return &triggerSet{phrases: phrases}
}

// Match scans text for a trigger. On a phrase hit the returned query is the
// text after the phrase (falling back to the whole text when nothing
// follows). A bare canonical book name also triggers, with the whole text as
// the query so the reference parser sees the chapter and verse around it.
func (ts *triggerSet) Match(text string) (query string, ok bool) {
	lower := strings.ToLower(text)

	for _, phrase := range ts.phrases {
		idx := phraseIndex(lower, phrase)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(lower[idx+len(phrase):])
		if rest == "" {
			rest = lower
		}
		return rest, true
	}

	padded := " " + squashPunct(lower) + " "
	for _, book := range refparse.CanonicalBooks() {
		if strings.Contains(padded, " "+strings.ToLower(book)+" ") {
			return lower, true
		}
	}
	return "", false
}

// phraseIndex finds phrase in text at a word boundary.
func phraseIndex(text, phrase string) int {
	from := 0
	for {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return -1
		}
		idx += from
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return idx
		}
		from = idx + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '\''
}

// squashPunct replaces punctuation with spaces so word-boundary containment
// checks work on raw transcript text.
func squashPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

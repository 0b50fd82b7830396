// Package refparse extracts Bible references from transcribed speech.
//
// Transcription renders references inconsistently: "John 3:16", "John 3 16",
// "first Corinthians 13", "psalm twenty three" after numeral normalisation.
// The package recognises the colon form, the space-delimited form produced by
// most speech-to-text engines, and chapter-only references, resolving book
// names through an abbreviation table with phonetic tolerance for misheard
// names.
package refparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Ref is a parsed scripture reference. Verse is 0 for chapter-only
// references ("Psalm 23"); VerseEnd is 0 unless a range was given
// ("John 3:16-17").
type Ref struct {
	Book     string
	Chapter  int
	Verse    int
	VerseEnd int
}

// String renders the reference in display form.
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(r.Book)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.Chapter))
	if r.Verse > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(r.Verse))
		if r.VerseEnd > r.Verse {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(r.VerseEnd))
		}
	}
	return b.String()
}

// colonPattern matches "Book 3", "Book 3:16" and "Book 3:16-17". The book
// group accepts an optional numeric prefix ("1 John").
var colonPattern = regexp.MustCompile(`\b([123]?\s*[A-Za-z]+)\s+(\d{1,3})(?::(\d{1,3})(?:\s*-\s*(\d{1,3}))?)?\b`)

// spacedPattern matches the space-delimited verse form speech engines emit:
// "John 3 16". It is tried before colonPattern so the trailing number is
// claimed as a verse rather than left dangling.
var spacedPattern = regexp.MustCompile(`\b([123]?\s*[A-Za-z]+)\s+(\d{1,3})\s+(\d{1,3})\b`)

// ordinalReplacer normalises spoken ordinal book prefixes before matching.
var ordinalReplacer = strings.NewReplacer(
	"first ", "1 ",
	"second ", "2 ",
	"third ", "3 ",
)

// Parse extracts the first reference from text. It returns false when no
// substring resolves to a known book followed by a chapter number.
func Parse(text string) (Ref, bool) {
	refs := FindAll(text)
	if len(refs) == 0 {
		return Ref{}, false
	}
	return refs[0], true
}

// FindAll extracts every reference from text, in order of appearance.
// Overlapping matches are resolved in favour of the more specific
// space-delimited form, so "John 3 16" yields one reference, not a
// chapter-only "John 3" plus a stray number.
func FindAll(text string) []Ref {
	normalized := ordinalReplacer.Replace(strings.ToLower(text))

	var (
		refs  []Ref
		spans [][2]int
	)
	for _, m := range spacedPattern.FindAllStringSubmatchIndex(normalized, -1) {
		ref, ok := buildRef(normalized, m, true)
		if !ok {
			continue
		}
		refs = append(refs, ref)
		spans = append(spans, [2]int{m[0], m[1]})
	}
	for _, m := range colonPattern.FindAllStringSubmatchIndex(normalized, -1) {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		ref, ok := buildRef(normalized, m, false)
		if !ok {
			continue
		}
		refs = append(refs, ref)
		spans = append(spans, [2]int{m[0], m[1]})
	}

	// Restore order of appearance across the two passes.
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && spans[j][0] < spans[j-1][0]; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
	return refs
}

// buildRef converts a submatch index set into a Ref, resolving the book name.
// spaced marks matches from spacedPattern, whose third group is the verse.
func buildRef(text string, m []int, spaced bool) (Ref, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	book, ok := LookupBook(group(1))
	if !ok {
		return Ref{}, false
	}
	chapter, err := strconv.Atoi(group(2))
	if err != nil || chapter <= 0 {
		return Ref{}, false
	}

	ref := Ref{Book: book, Chapter: chapter}
	if v := group(3); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Ref{}, false
		}
		ref.Verse = n
	}
	if !spaced {
		if v := group(4); v != "" {
			n, err := strconv.Atoi(v)
			if err == nil && n > ref.Verse {
				ref.VerseEnd = n
			}
		}
	}
	return ref, true
}

// overlaps reports whether [start,end) intersects any recorded span.
func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

package match

import (
	"math"
	"strings"

	"github.com/versecast/versecast/internal/verse"
)

// themeWords maps each theme to the word stems that signal it, in query and
// verse text alike. Stems are matched by prefix so "loved", "loveth" and
// "believeth" count.
var themeWords = map[string][]string{
	"love":        {"love", "charity", "belov"},
	"faith":       {"faith", "believ", "trust"},
	"hope":        {"hope", "expect"},
	"peace":       {"peace", "still", "rest"},
	"joy":         {"joy", "rejoic", "glad"},
	"strength":    {"strength", "strong", "power", "might"},
	"wisdom":      {"wisdom", "wise", "understanding"},
	"forgiveness": {"forgiv", "cleanse", "mercy"},
	"salvation":   {"salvation", "saved", "save"},
	"eternal":     {"eternal", "everlasting", "forever"},
}

// themeStrategy scores verses sharing theme vocabulary with the query. Each
// occurrence of a query theme's vocabulary in the verse text adds 0.3,
// capped at 0.7 so a theme hit never outranks a direct reference or phrase
// match. A verse dwelling on a theme ("love" three times) hits the cap.
func (m *Matcher) themeStrategy(norm string, all []verse.Verse, add func(Candidate)) {
	queryThemes := themesOf(norm)
	if len(queryThemes) == 0 {
		return
	}

	for _, v := range all {
		words := strings.Fields(normalize(v.Text))
		occurrences := 0
		for theme := range queryThemes {
			occurrences += stemOccurrences(words, themeWords[theme])
		}
		if occurrences == 0 {
			continue
		}
		conf := math.Min(float64(occurrences)*0.3, 0.7)
		add(Candidate{Verse: v, Confidence: conf, Strategy: StrategyTheme})
	}
}

// stemOccurrences counts tokens prefixed by any of stems. A token counts once
// even when several stems of the same theme match it.
func stemOccurrences(tokens []string, stems []string) int {
	n := 0
	for _, tok := range tokens {
		for _, stem := range stems {
			if strings.HasPrefix(tok, stem) {
				n++
				break
			}
		}
	}
	return n
}

// themesOf returns the set of themes whose stems appear in normalized text.
func themesOf(norm string) map[string]bool {
	tokens := strings.Fields(norm)
	found := make(map[string]bool)
	for theme, stems := range themeWords {
		for _, stem := range stems {
			if containsStem(tokens, stem) {
				found[theme] = true
				break
			}
		}
	}
	return found
}

// containsStem reports whether any token starts with stem.
func containsStem(tokens []string, stem string) bool {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, stem) {
			return true
		}
	}
	return false
}

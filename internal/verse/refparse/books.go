package refparse

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// bookNames maps lowercase book names and common abbreviations to the
// canonical book name. Numeric-prefix books keep their prefix in the key so
// that plain "john" never resolves to "1 John".
var bookNames = map[string]string{
	// Old Testament
	"genesis": "Genesis", "gen": "Genesis",
	"exodus": "Exodus", "exo": "Exodus", "ex": "Exodus",
	"leviticus": "Leviticus", "lev": "Leviticus",
	"numbers": "Numbers", "num": "Numbers",
	"deuteronomy": "Deuteronomy", "deut": "Deuteronomy", "dt": "Deuteronomy",
	"joshua": "Joshua", "josh": "Joshua",
	"judges": "Judges", "judg": "Judges",
	"ruth":     "Ruth",
	"1 samuel": "1 Samuel", "1sam": "1 Samuel", "1 sam": "1 Samuel",
	"2 samuel": "2 Samuel", "2sam": "2 Samuel", "2 sam": "2 Samuel",
	"1 kings": "1 Kings", "1kgs": "1 Kings", "1 kgs": "1 Kings",
	"2 kings": "2 Kings", "2kgs": "2 Kings", "2 kgs": "2 Kings",
	"1 chronicles": "1 Chronicles", "1chr": "1 Chronicles", "1 chr": "1 Chronicles",
	"2 chronicles": "2 Chronicles", "2chr": "2 Chronicles", "2 chr": "2 Chronicles",
	"ezra":     "Ezra",
	"nehemiah": "Nehemiah", "neh": "Nehemiah",
	"esther": "Esther", "est": "Esther",
	"job":    "Job",
	"psalms": "Psalm", "psalm": "Psalm", "ps": "Psalm", "psa": "Psalm",
	"proverbs": "Proverbs", "prov": "Proverbs", "pr": "Proverbs",
	"ecclesiastes": "Ecclesiastes", "eccl": "Ecclesiastes", "ecc": "Ecclesiastes",
	"song of solomon": "Song of Solomon", "song": "Song of Solomon", "sos": "Song of Solomon",
	"isaiah": "Isaiah", "isa": "Isaiah",
	"jeremiah": "Jeremiah", "jer": "Jeremiah",
	"lamentations": "Lamentations", "lam": "Lamentations",
	"ezekiel": "Ezekiel", "ezek": "Ezekiel", "eze": "Ezekiel",
	"daniel": "Daniel", "dan": "Daniel",
	"hosea": "Hosea", "hos": "Hosea",
	"joel":    "Joel",
	"amos":    "Amos",
	"obadiah": "Obadiah", "obad": "Obadiah",
	"jonah": "Jonah",
	"micah": "Micah", "mic": "Micah",
	"nahum": "Nahum", "nah": "Nahum",
	"habakkuk": "Habakkuk", "hab": "Habakkuk",
	"zephaniah": "Zephaniah", "zeph": "Zephaniah", "zep": "Zephaniah",
	"haggai": "Haggai", "hag": "Haggai",
	"zechariah": "Zechariah", "zech": "Zechariah", "zec": "Zechariah",
	"malachi": "Malachi", "mal": "Malachi",

	// New Testament
	"matthew": "Matthew", "matt": "Matthew", "mt": "Matthew",
	"mark": "Mark", "mk": "Mark",
	"luke": "Luke", "lk": "Luke",
	"john": "John", "jn": "John",
	"acts":   "Acts",
	"romans": "Romans", "rom": "Romans",
	"1 corinthians": "1 Corinthians", "1cor": "1 Corinthians", "1 cor": "1 Corinthians",
	"2 corinthians": "2 Corinthians", "2cor": "2 Corinthians", "2 cor": "2 Corinthians",
	"galatians": "Galatians", "gal": "Galatians",
	"ephesians": "Ephesians", "eph": "Ephesians",
	"philippians": "Philippians", "phil": "Philippians", "php": "Philippians",
	"colossians": "Colossians", "col": "Colossians",
	"1 thessalonians": "1 Thessalonians", "1thess": "1 Thessalonians", "1 thess": "1 Thessalonians",
	"2 thessalonians": "2 Thessalonians", "2thess": "2 Thessalonians", "2 thess": "2 Thessalonians",
	"1 timothy": "1 Timothy", "1tim": "1 Timothy", "1 tim": "1 Timothy",
	"2 timothy": "2 Timothy", "2tim": "2 Timothy", "2 tim": "2 Timothy",
	"titus": "Titus", "tit": "Titus",
	"philemon": "Philemon", "phlm": "Philemon",
	"hebrews": "Hebrews", "heb": "Hebrews",
	"james": "James", "jas": "James",
	"1 peter": "1 Peter", "1pet": "1 Peter", "1 pet": "1 Peter",
	"2 peter": "2 Peter", "2pet": "2 Peter", "2 pet": "2 Peter",
	"1 john": "1 John", "1jn": "1 John", "1 jn": "1 John",
	"2 john": "2 John", "2jn": "2 John", "2 jn": "2 John",
	"3 john": "3 John", "3jn": "3 John", "3 jn": "3 John",
	"jude":       "Jude",
	"revelation": "Revelation", "revelations": "Revelation", "rev": "Revelation",
}

// canonicalBooks is the deduplicated list of canonical names, built once at
// package init for trigger scanning and phonetic matching.
var canonicalBooks = func() []string {
	seen := make(map[string]struct{}, 66)
	var out []string
	for _, canonical := range bookNames {
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}()

// phoneticJWThreshold is the minimum Jaro-Winkler similarity for accepting a
// phonetically-matched book name. Transcription regularly mangles book names
// ("Galations", "Filippians"); candidates only reach this gate after the
// Double Metaphone codes agree, so the threshold leaves room for a mangled
// first letter, which forfeits the Winkler prefix boost ("filippians" vs
// "philippians" scores 0.83).
const phoneticJWThreshold = 0.8

// CanonicalBooks returns the canonical book names in unspecified order.
// The returned slice is shared; callers must not modify it.
func CanonicalBooks() []string { return canonicalBooks }

// LookupBook resolves a spoken book candidate to its canonical name.
// Matching is case-insensitive, tolerates missing spaces in numeric
// prefixes ("1corinthians"), and falls back to phonetic matching for
// full-length names.
func LookupBook(candidate string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return "", false
	}
	if canonical, ok := bookNames[c]; ok {
		return canonical, true
	}
	squeezed := strings.ReplaceAll(c, " ", "")
	for key, canonical := range bookNames {
		if squeezed == strings.ReplaceAll(key, " ", "") {
			return canonical, true
		}
	}
	// Phonetic fallback for full names only; short abbreviations produce too
	// many metaphone collisions to be trusted.
	if len(squeezed) >= 4 {
		if canonical, ok := lookupPhonetic(c); ok {
			return canonical, true
		}
	}
	return "", false
}

// lookupPhonetic matches candidate against canonical names using Double
// Metaphone overlap, ranked by Jaro-Winkler similarity.
func lookupPhonetic(candidate string) (string, bool) {
	cp, cs := matchr.DoubleMetaphone(stripPrefix(candidate))

	var (
		best      string
		bestScore float64
	)
	for _, canonical := range canonicalBooks {
		name := strings.ToLower(canonical)
		np, ns := matchr.DoubleMetaphone(stripPrefix(name))
		if !codesOverlap(cp, cs, np, ns) {
			continue
		}
		if score := matchr.JaroWinkler(candidate, name, false); score >= phoneticJWThreshold && score > bestScore {
			best = canonical
			bestScore = score
		}
	}
	return best, best != ""
}

// stripPrefix drops a leading "1 ", "2 " or "3 " so the metaphone codes are
// computed on the name proper.
func stripPrefix(name string) string {
	for _, p := range []string{"1 ", "2 ", "3 "} {
		if rest, ok := strings.CutPrefix(name, p); ok {
			return rest
		}
	}
	return name
}

// codesOverlap reports whether the two metaphone code pairs share a non-empty
// code.
func codesOverlap(ap, as, bp, bs string) bool {
	for _, a := range []string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}

package verse

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorpusFile is the top-level structure of a verse corpus YAML file.
//
// Example:
//
//	translation: "KJV"
//	verses:
//	  - book: "John"
//	    chapter: 3
//	    verse: 16
//	    text: "For God so loved the world..."
type CorpusFile struct {
	Translation string       `yaml:"translation"`
	Verses      []VerseEntry `yaml:"verses"`
}

// VerseEntry is a single verse record in a corpus file. ID is optional; when
// omitted it is derived from the book, chapter and verse number.
type VerseEntry struct {
	ID      string `yaml:"id"`
	Book    string `yaml:"book"`
	Chapter int    `yaml:"chapter"`
	Verse   int    `yaml:"verse"`
	Text    string `yaml:"text"`
}

// LoadCorpusFile reads and parses a verse corpus YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadCorpusFile(path string) (*CorpusFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verse: open corpus file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadCorpusFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("verse: parse corpus file %q: %w", path, err)
	}
	return cf, nil
}

// LoadCorpusFromReader parses corpus YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCorpusFromReader(r io.Reader) (*CorpusFile, error) {
	var cf CorpusFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("verse: decode corpus yaml: %w", err)
	}
	return &cf, nil
}

// Validate checks the parsed corpus for missing or malformed entries.
func (cf *CorpusFile) Validate() error {
	if strings.TrimSpace(cf.Translation) == "" {
		return fmt.Errorf("verse: corpus translation must not be empty")
	}
	if len(cf.Verses) == 0 {
		return fmt.Errorf("verse: corpus contains no verses")
	}
	for i, v := range cf.Verses {
		switch {
		case strings.TrimSpace(v.Book) == "":
			return fmt.Errorf("verse: corpus entry %d: book must not be empty", i)
		case v.Chapter <= 0:
			return fmt.Errorf("verse: corpus entry %d (%s): chapter must be positive", i, v.Book)
		case v.Verse <= 0:
			return fmt.Errorf("verse: corpus entry %d (%s %d): verse must be positive", i, v.Book, v.Chapter)
		case strings.TrimSpace(v.Text) == "":
			return fmt.Errorf("verse: corpus entry %d (%s %d:%d): text must not be empty", i, v.Book, v.Chapter, v.Verse)
		}
	}
	return nil
}

// BuildStore validates the corpus and materialises it as a [MemStore].
func (cf *CorpusFile) BuildStore() (*MemStore, error) {
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	verses := make([]Verse, 0, len(cf.Verses))
	for _, e := range cf.Verses {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d-%d", strings.ToLower(strings.ReplaceAll(e.Book, " ", "")), e.Chapter, e.Verse)
		}
		verses = append(verses, Verse{
			ID:          id,
			Book:        e.Book,
			Chapter:     e.Chapter,
			VerseNum:    e.Verse,
			Text:        e.Text,
			Translation: cf.Translation,
		})
	}
	return NewMemStore(cf.Translation, verses), nil
}

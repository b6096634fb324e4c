package extract

import (
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords are the short French function words filtered out of
// keyword sets unless a configuration provides its own list.
var DefaultStopwords = []string{
	"et", "le", "la", "les", "de", "des", "un", "une", "à", "en", "du", "pour", "par", "sur",
}

// DefaultPunctuation is the set of characters stripped from token edges.
const DefaultPunctuation = `.,!?()"`

// DefaultLanguage is the BCP 47 tag used for lowercasing.
const DefaultLanguage = "fr"

// DefaultMinLength is the shortest token kept as a keyword, in runes.
const DefaultMinLength = 3

// KeywordOptions configures a KeywordExtractor.
// Zero values select the defaults.
type KeywordOptions struct {
	// Stopwords are discarded after lowercasing. Nil selects DefaultStopwords;
	// an empty non-nil slice disables stopword filtering.
	Stopwords []string

	// Punctuation lists the characters stripped from both ends of a token.
	Punctuation string

	// Language selects locale-specific lowercasing rules.
	Language string

	// MinLength is the shortest token kept, in runes.
	MinLength int
}

// KeywordExtractor turns page text into a deduplicated keyword set.
// It is immutable after construction and safe for concurrent use.
type KeywordExtractor struct {
	stopwords   map[string]struct{}
	punctuation string
	tag         language.Tag
	minLength   int
}

// NewKeywordExtractor creates a KeywordExtractor from opts.
// An unknown language tag falls back to language-neutral lowercasing.
func NewKeywordExtractor(opts KeywordOptions) *KeywordExtractor {
	stopwords := opts.Stopwords
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	punctuation := opts.Punctuation
	if punctuation == "" {
		punctuation = DefaultPunctuation
	}
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}

	e := &KeywordExtractor{
		stopwords:   make(map[string]struct{}, len(stopwords)),
		punctuation: punctuation,
		tag:         tag,
		minLength:   minLength,
	}
	for _, w := range stopwords {
		e.stopwords[e.normalize(w)] = struct{}{}
	}
	return e
}

// Extract returns the keyword set of text.
// Empty text yields an empty, non-nil set.
func (e *KeywordExtractor) Extract(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, field := range strings.Fields(e.normalize(text)) {
		token := strings.Trim(field, e.punctuation)
		if utf8.RuneCountInString(token) < e.minLength {
			continue
		}
		if _, stop := e.stopwords[token]; stop {
			continue
		}
		keywords[token] = struct{}{}
	}
	return keywords
}

// ExtractSorted returns the keyword set of text as a sorted slice.
func (e *KeywordExtractor) ExtractSorted(text string) []string {
	set := e.Extract(text)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Canonical returns the form a single search term takes in the keyword
// set: normalized, lowercased and stripped of surrounding punctuation.
// Stopwords and short terms are not filtered.
func (e *KeywordExtractor) Canonical(term string) string {
	return strings.Trim(strings.TrimSpace(e.normalize(term)), e.punctuation)
}

// normalize composes Unicode sequences and lowercases s.
// A cases.Caser keeps state, so each call builds its own.
func (e *KeywordExtractor) normalize(s string) string {
	return cases.Lower(e.tag).String(norm.NFC.String(s))
}

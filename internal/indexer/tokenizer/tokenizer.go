// Package tokenizer splits text field values into index terms. Input is
// lower-cased, split on anything that is not a letter or digit, filtered
// against a stop-word list and reduced with a suffix stemmer.
package tokenizer

import (
	"strings"
	"unicode"
)

var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Rules are tried in order; the first suffix that leaves a long enough
// stem wins.
var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Token is one analyzed term and its position among the kept tokens.
type Token struct {
	Term     string
	Position int
}

// Analyzer turns text into tokens. The zero value is not usable; call New.
type Analyzer struct {
	stopWords map[string]struct{}
	minLen    int
	stem      bool
}

type Option func(*Analyzer)

// WithoutStemming keeps words as lower-cased input.
func WithoutStemming() Option {
	return func(a *Analyzer) { a.stem = false }
}

// WithStopWords replaces the default stop-word list.
func WithStopWords(words ...string) Option {
	return func(a *Analyzer) {
		a.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			a.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{stopWords: defaultStopWords, minLen: 2, stem: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAnalyzer = New()

// Default returns the analyzer used for every TEXT field.
func Default() *Analyzer { return defaultAnalyzer }

// Tokenize analyzes text with the default analyzer.
func Tokenize(text string) []Token { return defaultAnalyzer.Tokenize(text) }

func (a *Analyzer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term, ok := a.normalizeWord(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Terms returns the distinct terms of text in first-seen order.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		out = append(out, tok.Term)
	}
	return out
}

// Normalize analyzes a single query word the way indexing would. It returns
// false when the word would have been dropped.
func (a *Analyzer) Normalize(word string) (string, bool) {
	return a.normalizeWord(strings.ToLower(strings.TrimSpace(word)))
}

func (a *Analyzer) normalizeWord(word string) (string, bool) {
	if len(word) < a.minLen {
		return "", false
	}
	if _, stop := a.stopWords[word]; stop {
		return "", false
	}
	if !a.stem {
		return word, true
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

func stem(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		if candidate := word[:len(word)-len(rule.suffix)] + rule.replacement; len(candidate) >= rule.minLen {
			return candidate
		}
	}
	return word
}

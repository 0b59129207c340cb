package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsStopWordsAndStems(t *testing.T) {
	tokens := Tokenize("The Modern Prometheus, and the running readers!")
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, []string{"modern", "prometheu", "runn", "reader"}, terms)
}

func TestTermsAreDistinct(t *testing.T) {
	assert.Equal(t, []string{"frankenstein", "monst"}, Default().Terms("Frankenstein monster frankenstein"))
}

func TestNormalizeMatchesIndexing(t *testing.T) {
	got, ok := Default().Normalize("  Prometheus ")
	assert.True(t, ok)
	assert.Equal(t, Tokenize("Prometheus")[0].Term, got)

	_, ok = Default().Normalize("the")
	assert.False(t, ok)
	_, ok = Default().Normalize("x")
	assert.False(t, ok)
}

func TestAnalyzerOptions(t *testing.T) {
	a := New(WithoutStemming(), WithStopWords("modern"))
	terms := a.Terms("the modern prometheus")
	assert.Equal(t, []string{"the", "prometheus"}, terms)
}

package embed

import (
	"strings"

	"github.com/surgebase/porter2"
)

// Stemmer normalizes tokens before they enter the TF-IDF vocabulary, so
// authenticate/authentication/authenticating collapse to one term.
// Adapted from the teacher's internal/semantic/stemmer.go, trimmed of
// the TranslationDictionary config loader and word-variation/statistics
// helpers this embedder has no use for — only Stem and StemAll survive.
type Stemmer struct {
	enabled    bool
	minLength  int
	exclusions map[string]bool
}

// NewStemmer creates a Porter2 stemmer. Words shorter than minLength, or
// present in exclusions, pass through unchanged.
func NewStemmer(enabled bool, minLength int, exclusions map[string]bool) *Stemmer {
	if minLength < 0 {
		minLength = 3
	}
	if exclusions == nil {
		exclusions = make(map[string]bool)
	}
	return &Stemmer{enabled: enabled, minLength: minLength, exclusions: exclusions}
}

// Stem returns word's Porter2 stem, or word unchanged if stemming is
// disabled, the word is excluded, or it's shorter than minLength.
func (s *Stemmer) Stem(word string) string {
	if !s.enabled {
		return word
	}
	if s.exclusions[strings.ToLower(word)] {
		return word
	}
	if len(word) < s.minLength {
		return word
	}
	return porter2.Stem(word)
}

// StemAll applies Stem to every word.
func (s *Stemmer) StemAll(words []string) []string {
	if !s.enabled {
		return words
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, s.Stem(w))
	}
	return out
}

// Package tokenize provides the one tokenizer shared by the text search
// engine and the TF-IDF embedder. Both must split names the same way —
// camelCase, snake_case, kebab-case, and dotted paths into the same
// lower-cased word set — or query and corpus token streams diverge and
// every ranking and semantic-relevance computation downstream silently
// collapses. Adapted from the teacher's NameSplitter.
package tokenize

import (
	"strings"
	"sync"
	"unicode"
)

// Tokenizer splits identifiers into constituent words with a small
// cache, since the same names are re-tokenized often during indexing and
// querying. When full, the cache evicts the oldest inserted name; a cache
// hit does not refresh its position.
type Tokenizer struct {
	cache sync.Map

	mu        sync.Mutex
	cacheKeys []string
	maxSize   int
}

const defaultCacheSize = 2000

// New creates a Tokenizer with the default cache size.
func New() *Tokenizer {
	return NewWithSize(defaultCacheSize)
}

// NewWithSize creates a Tokenizer with a custom cache size.
func NewWithSize(cacheSize int) *Tokenizer {
	return &Tokenizer{cacheKeys: make([]string, 0, cacheSize), maxSize: cacheSize}
}

type separatorSet uint8

const (
	sepNone       separatorSet = 0
	sepUnderscore separatorSet = 1 << iota
	sepHyphen
	sepDot
	sepSlash
	sepCamelCase
	sepPascalCase
	sepDigits
)

func detectSeparators(runes []rune) separatorSet {
	var seps separatorSet
	for i, ch := range runes {
		switch ch {
		case '_':
			seps |= sepUnderscore
		case '-':
			seps |= sepHyphen
		case '.':
			seps |= sepDot
		case '/':
			seps |= sepSlash
		}
		if i == 0 {
			continue
		}
		prev := runes[i-1]
		if unicode.IsLower(prev) && unicode.IsUpper(ch) {
			seps |= sepCamelCase
		}
		if i > 1 && unicode.IsUpper(prev) && unicode.IsLower(ch) && unicode.IsUpper(runes[i-2]) {
			seps |= sepPascalCase
		}
		if (unicode.IsLetter(prev) && unicode.IsDigit(ch)) || (unicode.IsDigit(prev) && unicode.IsLetter(ch)) {
			seps |= sepDigits
		}
	}
	return seps
}

// Split tokenizes name into lower-cased, Unicode-aware, case-folded words.
func (t *Tokenizer) Split(name string) []string {
	if name == "" {
		return []string{}
	}
	if cached, ok := t.cache.Load(name); ok {
		return cached.([]string)
	}

	runes := []rune(name)
	seps := detectSeparators(runes)
	if seps == sepNone {
		words := []string{strings.ToLower(name)}
		t.store(name, words)
		return words
	}

	wordBuf := make([]rune, 0, 64)
	words := make([]string, 0, 8)
	flush := func() {
		if len(wordBuf) > 0 {
			words = append(words, strings.ToLower(string(wordBuf)))
			wordBuf = wordBuf[:0]
		}
	}

	for i, ch := range runes {
		if ch == '_' || ch == '-' || ch == '.' || ch == '/' {
			flush()
			continue
		}
		if i > 0 && seps&(sepCamelCase|sepPascalCase) != 0 {
			prev := runes[i-1]
			if unicode.IsLower(prev) && unicode.IsUpper(ch) {
				flush()
			}
			if i > 1 && unicode.IsUpper(prev) && unicode.IsLower(ch) && unicode.IsUpper(runes[i-2]) {
				if len(wordBuf) > 0 {
					last := wordBuf[len(wordBuf)-1]
					wordBuf = wordBuf[:len(wordBuf)-1]
					if len(wordBuf) > 0 {
						words = append(words, strings.ToLower(string(wordBuf)))
					}
					wordBuf = wordBuf[:0]
					wordBuf = append(wordBuf, last)
				}
			}
		}
		if i > 0 && seps&sepDigits != 0 {
			prev := runes[i-1]
			if (unicode.IsLetter(prev) && unicode.IsDigit(ch)) || (unicode.IsDigit(prev) && unicode.IsLetter(ch)) {
				flush()
			}
		}
		wordBuf = append(wordBuf, ch)
	}
	flush()

	t.store(name, words)
	return words
}

// SplitToSet tokenizes name and returns the unique word set.
func (t *Tokenizer) SplitToSet(name string) map[string]struct{} {
	words := t.Split(name)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func (t *Tokenizer) store(name string, words []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.cacheKeys) >= t.maxSize && len(t.cacheKeys) > 0 {
		oldest := t.cacheKeys[0]
		t.cache.Delete(oldest)
		t.cacheKeys = t.cacheKeys[1:]
	}
	t.cache.Store(name, words)
	t.cacheKeys = append(t.cacheKeys, name)
}

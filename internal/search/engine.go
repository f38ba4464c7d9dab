// Package search implements the text search engine: an in-memory index
// over (name, signature, doc_comment) built from the symbol store,
// serving fuzzy, exact, and type-scoped queries. Adapted from the
// teacher's internal/semantic package — the tokenizer split out to
// internal/tokenize so the embedder can share it, and the fuzzy matcher
// trimmed from its TranslationDictionary-specific configuration down to
// the bare Levenshtein/Jaro-Winkler wrapper this engine needs.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/anortham/miller/internal/tokenize"
	"github.com/anortham/miller/internal/types"
)

// Options narrows a query the way spec.md §4.4 names: limit, language,
// symbol_kinds, file_pattern, include_signature.
type Options struct {
	Limit            int
	Language         string
	SymbolKinds      []types.SymbolKind
	FilePattern      string
	IncludeSignature bool
}

// Result is one scored hit.
type Result struct {
	Symbol types.Symbol
	Score  float64
}

// indexEntry is the engine's per-symbol tokenized record.
type indexEntry struct {
	symbol        types.Symbol
	nameTokens    []string
	sigDocTokens  []string
	declaredType  string
}

// Engine is the in-memory tokenized index plus the fuzzy matcher over it.
type Engine struct {
	tokenizer *tokenize.Tokenizer
	fuzzy     *FuzzyMatcher

	entries []indexEntry
	byName  map[string][]int // name -> indices into entries, for exact-name scoring
}

// NewEngine creates an empty engine. Call Rebuild to populate it.
func NewEngine() *Engine {
	return &Engine{
		tokenizer: tokenize.New(),
		fuzzy:     NewFuzzyMatcher(true, 0.75, "levenshtein"),
		byName:    make(map[string][]int),
	}
}

// symbolSource is the minimal contract the engine needs from the store —
// declared here rather than importing internal/store, so search has no
// dependency on the storage layer's concrete type.
type symbolSource interface {
	IterAllSymbols(fn func(types.Symbol) error) error
}

// typeSource supplies the inferred/declared type for a symbol id, as
// produced by an extractor's InferTypes.
type typeSource map[string]string

// Rebuild streams every symbol from store and rebuilds the in-memory
// index from scratch — the mechanism behind "re-index is called when the
// store emits a write-wave completion event."
func (e *Engine) Rebuild(store symbolSource, types_ typeSource) error {
	e.Clear()
	return store.IterAllSymbols(func(s types.Symbol) error {
		e.index(s, types_[s.ID])
		return nil
	})
}

// IndexSymbol appends a single symbol's index entry, letting the
// indexing coordinator keep the engine warm between full rebuilds. An
// entry already indexed under the same id is not replaced, so indexing a
// symbol twice yields two entries.
func (e *Engine) IndexSymbol(s types.Symbol, declaredType string) {
	e.index(s, declaredType)
}

func (e *Engine) index(s types.Symbol, declaredType string) {
	entry := indexEntry{
		symbol:       s,
		nameTokens:   e.tokenizer.Split(s.Name),
		sigDocTokens: append(e.tokenizer.Split(s.Signature), e.tokenizer.Split(s.DocComment)...),
		declaredType: declaredType,
	}
	idx := len(e.entries)
	e.entries = append(e.entries, entry)
	e.byName[s.Name] = append(e.byName[s.Name], idx)
}

// Clear drops the in-memory structures.
func (e *Engine) Clear() {
	e.entries = nil
	e.byName = make(map[string][]int)
}

// Fuzzy implements Levenshtein-tolerant matching over the tokenized
// index. An empty query returns nil, per spec.
func (e *Engine) Fuzzy(query string, opts Options) []Result {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	queryTokens := e.tokenizer.Split(query)
	queryLower := strings.ToLower(query)

	var results []Result
	for _, entry := range e.entries {
		if !matchesFilters(entry.symbol, opts) {
			continue
		}
		score, ok := e.score(entry, queryLower, queryTokens)
		if !ok {
			continue
		}
		results = append(results, Result{Symbol: entry.symbol, Score: score})
	}
	return rankAndLimit(results, opts.Limit)
}

// score implements the ranking rule from spec.md §4.4.
func (e *Engine) score(entry indexEntry, queryLower string, queryTokens []string) (float64, bool) {
	nameLower := strings.ToLower(entry.symbol.Name)
	var score float64
	matched := false

	switch {
	case nameLower == queryLower:
		score += 1.0
		matched = true
	case strings.HasPrefix(nameLower, queryLower):
		score += 0.6
		matched = true
	}

	tokenMatches := 0
	for _, qt := range queryTokens {
		for _, nt := range entry.nameTokens {
			if strings.EqualFold(qt, nt) {
				tokenMatches++
				matched = true
				break
			}
		}
	}
	if tokenMatches > 2 {
		tokenMatches = 2
	}
	score += float64(tokenMatches) * 0.4

	sigDocMatches := 0
	for _, qt := range queryTokens {
		for _, st := range entry.sigDocTokens {
			if strings.EqualFold(qt, st) {
				sigDocMatches++
			}
		}
	}
	score += float64(sigDocMatches) * 0.1
	if sigDocMatches > 0 {
		matched = true
	}

	similarity := e.fuzzy.Similarity(nameLower, queryLower)
	if !matched && similarity >= e.fuzzy.threshold {
		matched = true
	}
	if matched && len(entry.symbol.Name) > 0 {
		editDistance := (1 - similarity) * float64(len(entry.symbol.Name))
		score -= editDistance / float64(len(entry.symbol.Name))
	}

	return score, matched
}

// Exact implements substring matching with optional regex, falling back
// to literal substring when pattern fails to compile.
func (e *Engine) Exact(pattern string, opts Options) []Result {
	if pattern == "" {
		return nil
	}
	re, reErr := regexp.Compile(pattern)

	var results []Result
	for _, entry := range e.entries {
		if !matchesFilters(entry.symbol, opts) {
			continue
		}
		haystack := entry.symbol.Name
		if opts.IncludeSignature {
			haystack += " " + entry.symbol.Signature
		}
		var hit bool
		if reErr == nil {
			hit = re.MatchString(haystack)
		} else {
			hit = strings.Contains(haystack, pattern)
		}
		if !hit {
			continue
		}
		score := 1.0
		if entry.symbol.Name == pattern {
			score = 2.0
		}
		results = append(results, Result{Symbol: entry.symbol, Score: score})
	}
	return rankAndLimit(results, opts.Limit)
}

// ByType restricts to symbols whose declared or inferred type equals
// typeName.
func (e *Engine) ByType(typeName string, opts Options) []Result {
	var results []Result
	for _, entry := range e.entries {
		if entry.declaredType != typeName {
			continue
		}
		if !matchesFilters(entry.symbol, opts) {
			continue
		}
		results = append(results, Result{Symbol: entry.symbol, Score: 1.0})
	}
	return rankAndLimit(results, opts.Limit)
}

func matchesFilters(s types.Symbol, opts Options) bool {
	if opts.Language != "" && s.Language != opts.Language {
		return false
	}
	if len(opts.SymbolKinds) > 0 {
		found := false
		for _, k := range opts.SymbolKinds {
			if s.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if opts.FilePattern != "" && !strings.Contains(s.FilePath, opts.FilePattern) {
		return false
	}
	return true
}

// kindPriority breaks ties per spec: {class, function, method, ...}.
var kindPriority = map[types.SymbolKind]int{
	types.KindClass:     0,
	types.KindFunction:  1,
	types.KindMethod:    2,
	types.KindInterface: 3,
}

func rankAndLimit(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := kindPriority[results[i].Symbol.Kind], kindPriority[results[j].Symbol.Kind]
		if pi != pj {
			return pi < pj
		}
		return results[i].Symbol.Name < results[j].Symbol.Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

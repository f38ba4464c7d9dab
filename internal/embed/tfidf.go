// Package embed implements the pluggable Embedder interface and its
// default implementation: a TF-IDF embedder sharing internal/tokenize
// with the text search engine (the shared-tokenizer design note) and
// folding in Porter2 stemming before vocabulary terms are counted.
package embed

import (
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anortham/miller/internal/tokenize"
	"github.com/anortham/miller/internal/types"
)

// Embedder is the pluggable contract named in the component design.
type Embedder interface {
	Initialize(modelName string) error
	EmbedCode(snippet, context string) (Result, error)
	EmbedQuery(text string) (types.Embedding, error)
	ClearCache()
}

// Result is embed_code's return shape: the vector plus how many new
// vocabulary terms this call introduced, so a caller can decide whether
// a vocabulary-version bump is warranted.
type Result struct {
	Vector          []float32
	VocabularyDelta int
}

// TFIDF is the default embedder. VocabularyVersion increments whenever a
// new term is added to the corpus-wide document frequency table — the
// mechanism behind "a version mismatch triggers full re-embedding."
type TFIDF struct {
	tokenizer *tokenize.Tokenizer
	stemmer   *Stemmer
	dim       int

	mu                sync.RWMutex
	modelName         string
	documentFrequency map[string]int
	documentCount     int
	vocabularyVersion int
}

// NewTFIDF creates an embedder sharing tokenizer with the search engine.
func NewTFIDF(tokenizer *tokenize.Tokenizer) *TFIDF {
	return &TFIDF{
		tokenizer:         tokenizer,
		stemmer:           NewStemmer(true, 3, map[string]bool{"api": true, "http": true}),
		dim:               types.DefaultEmbeddingDimension,
		documentFrequency: make(map[string]int),
	}
}

func (e *TFIDF) Initialize(modelName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelName = modelName
	return nil
}

// VocabularyVersion reports the current vocabulary version, so an
// indexer and a query encoder can detect divergence.
func (e *TFIDF) VocabularyVersion() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vocabularyVersion
}

// EmbedCode tokenizes snippet (augmented with language- and
// path-hinted terms from context, e.g. directory segments) and returns
// its TF-IDF vector plus how many brand-new vocabulary terms it added.
func (e *TFIDF) EmbedCode(snippet, context string) (Result, error) {
	terms := e.extractTerms(snippet, context)

	e.mu.Lock()
	delta := 0
	for term := range uniqueSet(terms) {
		if e.documentFrequency[term] == 0 {
			delta++
			e.vocabularyVersion++
		}
		e.documentFrequency[term]++
	}
	e.documentCount++
	vector := e.vectorize(terms)
	e.mu.Unlock()

	return Result{Vector: vector, VocabularyDelta: delta}, nil
}

// EmbedQuery embeds a query string against the current vocabulary state
// without mutating document frequency — the indexer and the query
// encoder must read the same vocabulary, never write different ones.
func (e *TFIDF) EmbedQuery(text string) (types.Embedding, error) {
	terms := e.extractTerms(text, "")
	e.mu.RLock()
	vector := e.vectorize(terms)
	e.mu.RUnlock()
	return types.Embedding{Vector: vector}, nil
}

// ClearCache resets the corpus vocabulary entirely, bumping the version
// so every previously embedded vector is considered stale.
func (e *TFIDF) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.documentFrequency = make(map[string]int)
	e.documentCount = 0
	e.vocabularyVersion++
}

func (e *TFIDF) extractTerms(snippet, context string) []string {
	terms := e.stemmer.StemAll(e.tokenizer.Split(snippet))
	if context != "" {
		dir := filepath.Dir(context)
		if dir != "." && dir != "/" {
			for _, seg := range strings.Split(dir, string(filepath.Separator)) {
				if seg == "" {
					continue
				}
				terms = append(terms, e.stemmer.StemAll(e.tokenizer.Split(seg))...)
			}
		}
		if ext := filepath.Ext(context); ext != "" {
			terms = append(terms, strings.TrimPrefix(ext, "."))
		}
	}
	return terms
}

// vectorize must be called with at least a read lock held, since it
// reads documentFrequency/documentCount.
func (e *TFIDF) vectorize(terms []string) []float32 {
	termFreq := make(map[string]int, len(terms))
	for _, t := range terms {
		termFreq[t]++
	}

	vector := make([]float32, e.dim)
	for term, tf := range termFreq {
		weight := tfidfWeight(tf, e.documentFrequency[term], e.documentCount)
		idx, sign := projectTerm(term, e.dim)
		vector[idx] += float32(sign) * float32(weight)
	}
	normalize(vector)
	return vector
}

func tfidfWeight(termFreq, docFreq, totalDocs int) float64 {
	if docFreq == 0 || totalDocs == 0 {
		return float64(termFreq)
	}
	idf := math.Log(float64(totalDocs+1)/float64(docFreq+1)) + 1.0
	return float64(termFreq) * idf
}

// projectTerm deterministically assigns a term to a dimension in [0, D)
// with a sign, per spec.md §4.5's hashed dense projection.
func projectTerm(term string, dim int) (int, int) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	idx := int(sum % uint64(dim))
	sign := 1
	if sum&(1<<63) != 0 {
		sign = -1
	}
	return idx, sign
}

func normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
}

func uniqueSet(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		out[t] = struct{}{}
	}
	return out
}

// Package hybrid implements the hybrid search fusion rule: merging a
// structural candidate set (from the text search engine) with a
// semantic candidate set (from the vector store) into one ranked list.
package hybrid

import (
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/anortham/miller/internal/types"
)

// SearchMethod tags how a result was found.
type SearchMethod string

const (
	MethodStructural SearchMethod = "structural"
	MethodSemantic   SearchMethod = "semantic"
	MethodHybrid     SearchMethod = "hybrid"
)

// StructuralCandidate is one hit from the text search engine.
type StructuralCandidate struct {
	Symbol types.Symbol
}

// SemanticCandidate is one hit from the vector store, already carrying
// its cosine confidence.
type SemanticCandidate struct {
	Symbol     types.Symbol
	Confidence float64
}

// Result is one fused, scored hit.
type Result struct {
	Symbol       types.Symbol
	HybridScore  float64
	SearchMethod SearchMethod
}

// Merge fuses structural and semantic candidates for query using the
// scoring rule from spec.md §4.7:
//
//	hybrid_score = 0.3*name_similarity + 0.3*structural_score + 0.4*semantic_score
//
// structural_score is 0.7 when the symbol appeared in structural, 0.2
// otherwise; semantic_score is the cosine confidence, 0 if absent.
// Results are sorted by hybrid_score descending, ties broken by
// structural precedence (a symbol present in structural wins a tie).
func Merge(query string, structural []StructuralCandidate, semantic []SemanticCandidate, k int) []Result {
	byID := make(map[string]*Result)
	order := make([]string, 0, len(structural)+len(semantic))

	ensure := func(sym types.Symbol) *Result {
		if r, ok := byID[sym.ID]; ok {
			return r
		}
		r := &Result{Symbol: sym}
		byID[sym.ID] = r
		order = append(order, sym.ID)
		return r
	}

	inStructural := make(map[string]bool, len(structural))
	for _, c := range structural {
		inStructural[c.Symbol.ID] = true
		ensure(c.Symbol)
	}
	semanticConfidence := make(map[string]float64, len(semantic))
	for _, c := range semantic {
		semanticConfidence[c.Symbol.ID] = c.Confidence
		ensure(c.Symbol)
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		structuralScore := 0.2
		if inStructural[id] {
			structuralScore = 0.7
		}
		semanticScore := semanticConfidence[id]

		r.HybridScore = 0.3*nameSimilarity(r.Symbol.Name, query) + 0.3*structuralScore + 0.4*semanticScore

		_, isSemantic := semanticConfidence[id]
		switch {
		case inStructural[id] && isSemantic:
			r.SearchMethod = MethodHybrid
		case inStructural[id]:
			r.SearchMethod = MethodStructural
		default:
			r.SearchMethod = MethodSemantic
		}
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		return inStructural[results[i].Symbol.ID] && !inStructural[results[j].Symbol.ID]
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// nameSimilarity is normalized Levenshtein similarity via go-edlib.
func nameSimilarity(name, query string) float64 {
	if name == "" || query == "" {
		return 0
	}
	if name == query {
		return 1
	}
	score, err := edlib.StringsSimilarity(name, query, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(score)
}

// CrossLayerAugment classifies semantic candidates by architectural layer
// (via classify) and returns them unchanged when they span at least two
// distinct layers, or nil otherwise. It neither adds, drops nor reorders
// candidates.
func CrossLayerAugment(semantic []SemanticCandidate, classify func(filePath string) types.Layer) []SemanticCandidate {
	layers := make(map[types.Layer]bool)
	for _, c := range semantic {
		layers[classify(c.Symbol.FilePath)] = true
	}
	if len(layers) < 2 {
		return nil
	}
	return semantic
}

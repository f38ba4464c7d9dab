package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func TestFuzzyFindsCamelCaseViaToken(t *testing.T) {
	e := NewEngine()
	e.IndexSymbol(types.Symbol{ID: "s1", Name: "getUserData", Kind: types.KindFunction, Language: "typescript", FilePath: "a.ts"}, "")
	e.IndexSymbol(types.Symbol{ID: "s2", Name: "get_user_data", Kind: types.KindFunction, Language: "python", FilePath: "b.py"}, "")

	results := e.Fuzzy("data", Options{})
	require.Len(t, results, 2)

	names := map[string]bool{}
	for _, r := range results {
		names[r.Symbol.Name] = true
	}
	require.True(t, names["getUserData"])
	require.True(t, names["get_user_data"])
}

func TestFuzzyEmptyQueryReturnsEmpty(t *testing.T) {
	e := NewEngine()
	e.IndexSymbol(types.Symbol{ID: "s1", Name: "Widget"}, "")
	require.Empty(t, e.Fuzzy("", Options{}))
}

func TestExactFallsBackToLiteralOnInvalidRegex(t *testing.T) {
	e := NewEngine()
	e.IndexSymbol(types.Symbol{ID: "s1", Name: "weird(name"}, "")

	results := e.Exact("weird(name", Options{})
	require.Len(t, results, 1)
}

func TestByTypeRestrictsToDeclaredType(t *testing.T) {
	e := NewEngine()
	e.IndexSymbol(types.Symbol{ID: "s1", Name: "count"}, "int")
	e.IndexSymbol(types.Symbol{ID: "s2", Name: "name"}, "string")

	results := e.ByType("int", Options{})
	require.Len(t, results, 1)
	require.Equal(t, "count", results[0].Symbol.Name)
}

func TestRankingPrefersExactOverPrefix(t *testing.T) {
	e := NewEngine()
	e.IndexSymbol(types.Symbol{ID: "s1", Name: "Widget"}, "")
	e.IndexSymbol(types.Symbol{ID: "s2", Name: "WidgetFactory"}, "")

	results := e.Fuzzy("Widget", Options{})
	require.NotEmpty(t, results)
	require.Equal(t, "Widget", results[0].Symbol.Name)
}

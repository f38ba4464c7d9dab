package hybrid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func TestMergeTagsSearchMethod(t *testing.T) {
	structural := []StructuralCandidate{
		{Symbol: types.Symbol{ID: "s1", Name: "getUserData"}},
	}
	semantic := []SemanticCandidate{
		{Symbol: types.Symbol{ID: "s1", Name: "getUserData"}, Confidence: 0.9},
		{Symbol: types.Symbol{ID: "s2", Name: "fetchUser"}, Confidence: 0.8},
	}

	results := Merge("user data", structural, semantic, 10)
	require.Len(t, results, 2)

	byID := make(map[string]Result)
	for _, r := range results {
		byID[r.Symbol.ID] = r
	}
	require.Equal(t, MethodHybrid, byID["s1"].SearchMethod)
	require.Equal(t, MethodSemantic, byID["s2"].SearchMethod)
}

func TestMergeSortsByHybridScoreDescending(t *testing.T) {
	semantic := []SemanticCandidate{
		{Symbol: types.Symbol{ID: "low", Name: "zzz"}, Confidence: 0.1},
		{Symbol: types.Symbol{ID: "high", Name: "user"}, Confidence: 0.95},
	}
	results := Merge("user", nil, semantic, 10)
	require.Equal(t, "high", results[0].Symbol.ID)
}

func TestCrossLayerAugmentRequiresTwoLayers(t *testing.T) {
	semantic := []SemanticCandidate{
		{Symbol: types.Symbol{ID: "s1", FilePath: "api/user.go"}},
	}
	classify := func(path string) types.Layer { return types.LayerAPI }
	require.Nil(t, CrossLayerAugment(semantic, classify))

	semantic = append(semantic, SemanticCandidate{Symbol: types.Symbol{ID: "s2", FilePath: "domain/user.go"}})
	classify2 := func(path string) types.Layer {
		if path == "api/user.go" {
			return types.LayerAPI
		}
		return types.LayerDomain
	}
	require.Len(t, CrossLayerAugment(semantic, classify2), 2)
}

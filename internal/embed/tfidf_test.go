package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/tokenize"
)

func TestEmbedCodeProducesNormalizedVector(t *testing.T) {
	e := NewTFIDF(tokenize.New())
	require.NoError(t, e.Initialize("tfidf-default"))

	result, err := e.EmbedCode("func authenticate(user string) bool", "internal/auth/login.go")
	require.NoError(t, err)
	require.Len(t, result.Vector, 384)

	var sumSquares float64
	for _, v := range result.Vector {
		sumSquares += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestEmbedCodeAndQueryShareVocabulary(t *testing.T) {
	e := NewTFIDF(tokenize.New())
	require.NoError(t, e.Initialize("tfidf-default"))

	before := e.VocabularyVersion()
	_, err := e.EmbedCode("func authenticateUser() {}", "auth.go")
	require.NoError(t, err)
	require.Greater(t, e.VocabularyVersion(), before)

	embedding, err := e.EmbedQuery("authenticate user")
	require.NoError(t, err)
	require.Len(t, embedding.Vector, 384)
}

func TestStemmerCollapsesAuthenticationVariants(t *testing.T) {
	s := NewStemmer(true, 3, nil)
	require.Equal(t, s.Stem("authenticate"), s.Stem("authentication"))
	require.Equal(t, s.Stem("authenticate"), s.Stem("authenticating"))
}

func TestClearCacheBumpsVocabularyVersion(t *testing.T) {
	e := NewTFIDF(tokenize.New())
	_, err := e.EmbedCode("func widget() {}", "widget.go")
	require.NoError(t, err)
	before := e.VocabularyVersion()
	e.ClearCache()
	require.Greater(t, e.VocabularyVersion(), before)
}

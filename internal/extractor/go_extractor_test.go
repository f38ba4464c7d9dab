package extractor

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func parseGo(t *testing.T, src string) *Tree {
	t.Helper()
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
	p := tree_sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	content := []byte(src)
	tree := p.Parse(content, nil)
	require.NotNil(t, tree)
	root := tree.RootNode()
	return &Tree{Root: root, Content: content, Path: "pkg/widget.go", Language: "go"}
}

func TestGoExtractSymbolsNameAnchoredPosition(t *testing.T) {
	src := `package pkg

// Widget does things.
func Widget(x int) string {
	return "x"
}
`
	tree := parseGo(t, src)
	ext := NewGoExtractor()
	symbols, diags := ext.ExtractSymbols(tree)
	require.Empty(t, diags)

	var found *types.Symbol
	for i := range symbols {
		if symbols[i].Name == "Widget" {
			found = &symbols[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, types.KindFunction, found.Kind)
	require.Equal(t, types.VisibilityPublic, found.Visibility)
	require.Contains(t, found.DocComment, "Widget does things")
	require.Equal(t, 4, found.Position.StartLine)
}

func TestGoExtractRelationshipsImportIntegrity(t *testing.T) {
	src := `package pkg

import "fmt"

func Speak() {
	fmt.Println("hi")
}
`
	tree := parseGo(t, src)
	ext := NewGoExtractor()
	symbols, _ := ext.ExtractSymbols(tree)
	rels, diags := ext.ExtractRelationships(tree, symbols)
	require.Empty(t, diags)

	byID := make(map[string]types.Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}

	var sawImport bool
	for _, r := range rels {
		if r.Kind == types.RelImports {
			sawImport = true
			_, fromOK := byID[r.FromSymbolID]
			_, toOK := byID[r.ToSymbolID]
			require.True(t, fromOK, "from_symbol_id must resolve to an extracted symbol")
			require.True(t, toOK, "to_symbol_id must resolve to an extracted symbol")
		}
	}
	require.True(t, sawImport)
}

func TestGoExtractSymbolsUnexportedVisibility(t *testing.T) {
	src := `package pkg

func helper() {}
`
	tree := parseGo(t, src)
	ext := NewGoExtractor()
	symbols, _ := ext.ExtractSymbols(tree)

	var found *types.Symbol
	for i := range symbols {
		if symbols[i].Name == "helper" {
			found = &symbols[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, types.VisibilityPrivate, found.Visibility)
}

package extractor

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func parseTS(t *testing.T, src string) *Tree {
	t.Helper()
	lang := tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	p := tree_sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	content := []byte(src)
	tree := p.Parse(content, nil)
	require.NotNil(t, tree)
	root := tree.RootNode()
	return &Tree{Root: root, Content: content, Path: "src/watcher.ts", Language: "typescript"}
}

// TestExtractSymbolsClassConstructorNameAnchored exercises the scenario
// from the data model's name-anchored-position invariant: a class with a
// constructor method should produce a symbol whose position spans only
// the identifier, not the full declaration.
func TestExtractSymbolsClassConstructorNameAnchored(t *testing.T) {
	src := `export class FileWatcher {
    constructor() {
        this.paths = [];
    }
}
`
	tree := parseTS(t, src)
	ext := NewJavaScriptExtractor("typescript")
	symbols, diags := ext.ExtractSymbols(tree)
	require.Empty(t, diags)

	var class *types.Symbol
	for i := range symbols {
		if symbols[i].Name == "FileWatcher" {
			class = &symbols[i]
		}
	}
	require.NotNil(t, class)
	require.Equal(t, types.KindClass, class.Kind)
	require.Equal(t, types.VisibilityPublic, class.Visibility)
	require.Equal(t, 1, class.Position.StartLine)
}

func TestExtractRelationshipsClassExtends(t *testing.T) {
	src := `class Base {}
class Derived extends Base {}
`
	tree := parseTS(t, src)
	ext := NewJavaScriptExtractor("typescript")
	symbols, _ := ext.ExtractSymbols(tree)
	rels, diags := ext.ExtractRelationships(tree, symbols)
	require.Empty(t, diags)

	byID := make(map[string]types.Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}

	var sawExtends bool
	for _, r := range rels {
		if r.Kind == types.RelExtends {
			sawExtends = true
			from, fromOK := byID[r.FromSymbolID]
			to, toOK := byID[r.ToSymbolID]
			require.True(t, fromOK)
			require.True(t, toOK)
			require.Equal(t, "Derived", from.Name)
			require.Equal(t, "Base", to.Name)
		}
	}
	require.True(t, sawExtends)
}

func TestExtractSymbolsImportRelationshipIntegrity(t *testing.T) {
	src := `import { readFile } from "fs/promises";

export function load() {
    return readFile("x");
}
`
	tree := parseTS(t, src)
	ext := NewJavaScriptExtractor("typescript")
	symbols, _ := ext.ExtractSymbols(tree)
	rels, _ := ext.ExtractRelationships(tree, symbols)

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
			require.True(t, fromOK)
			require.True(t, toOK)
		}
	}
	require.True(t, sawImport)
}

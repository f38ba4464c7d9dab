package extractor

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func parsePython(t *testing.T, src string) *Tree {
	t.Helper()
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	p := tree_sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	content := []byte(src)
	tree := p.Parse(content, nil)
	require.NotNil(t, tree)
	root := tree.RootNode()
	return &Tree{Root: root, Content: content, Path: "pkg/widget.py", Language: "python"}
}

func TestPythonExtractSymbolsMethodIsChildOfClass(t *testing.T) {
	src := `class Indexer:
    """Indexes a workspace."""

    def run(self):
        pass

def _private_helper():
    pass
`
	tree := parsePython(t, src)
	ext := NewPythonExtractor()
	symbols, diags := ext.ExtractSymbols(tree)
	require.Empty(t, diags)

	var class, method, helper *types.Symbol
	for i := range symbols {
		switch symbols[i].Name {
		case "Indexer":
			class = &symbols[i]
		case "run":
			method = &symbols[i]
		case "_private_helper":
			helper = &symbols[i]
		}
	}
	require.NotNil(t, class)
	require.NotNil(t, method)
	require.NotNil(t, helper)

	require.Equal(t, types.KindMethod, method.Kind)
	require.Equal(t, class.ID, method.ParentID)
	require.Contains(t, class.DocComment, "Indexes a workspace")
	require.Equal(t, types.VisibilityPrivate, helper.Visibility)
}

func TestPythonExtractRelationshipsExtends(t *testing.T) {
	src := `class Base:
    pass

class Derived(Base):
    pass
`
	tree := parsePython(t, src)
	ext := NewPythonExtractor()
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

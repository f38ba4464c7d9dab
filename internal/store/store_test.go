package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSymbols(filePath string) []types.Symbol {
	module := types.Symbol{
		ID:       "module-1",
		Name:     filePath,
		Kind:     types.KindModule,
		Language: "go",
		FilePath: filePath,
		Position: types.Position{StartLine: 1, EndLine: 10, EndByte: 100},
	}
	fn := types.Symbol{
		ID:       "fn-1",
		Name:     "Widget",
		Kind:     types.KindFunction,
		Language: "go",
		FilePath: filePath,
		Position: types.Position{StartLine: 3, EndLine: 5, StartByte: 20, EndByte: 60},
		ParentID: module.ID,
	}
	return []types.Symbol{module, fn}
}

func TestReplaceFileSymbolsIdempotentReindex(t *testing.T) {
	s := openTestStore(t)
	f := types.File{Path: "a.go", Language: "go", ContentHash: "h1"}
	symbols := sampleSymbols(f.Path)

	require.NoError(t, s.ReplaceFileSymbols(f, symbols, nil))
	require.NoError(t, s.ReplaceFileSymbols(f, symbols, nil))

	got, err := s.FindSymbols(FindSymbolsOptions{FilePath: f.Path})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestReplaceFileSymbolsRelationshipIntegrity(t *testing.T) {
	s := openTestStore(t)
	f := types.File{Path: "a.go", Language: "go", ContentHash: "h1"}
	symbols := sampleSymbols(f.Path)
	rels := []types.Relationship{
		{ID: "rel-1", FromSymbolID: "module-1", ToSymbolID: "fn-1", Kind: types.RelDefines, FilePath: f.Path},
	}

	require.NoError(t, s.ReplaceFileSymbols(f, symbols, rels))

	fetched, err := s.GetRelationships("fn-1")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Equal(t, "module-1", fetched[0].FromSymbolID)
}

func TestReplaceFileSymbolsRejectsDanglingRelationship(t *testing.T) {
	s := openTestStore(t)
	f := types.File{Path: "a.go", Language: "go", ContentHash: "h1"}
	symbols := sampleSymbols(f.Path)
	rels := []types.Relationship{
		{ID: "rel-bad", FromSymbolID: "module-1", ToSymbolID: "does-not-exist", Kind: types.RelCalls, FilePath: f.Path},
	}

	err := s.ReplaceFileSymbols(f, symbols, rels)
	require.Error(t, err)

	// The failed transaction must not have left partial state behind.
	got, err := s.FindSymbols(FindSymbolsOptions{FilePath: f.Path})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGetFileHashDeltaSkip(t *testing.T) {
	s := openTestStore(t)
	hash, err := s.GetFileHash("missing.go")
	require.NoError(t, err)
	require.Empty(t, hash)

	f := types.File{Path: "a.go", Language: "go", ContentHash: "abc123"}
	require.NoError(t, s.UpsertFile(f))

	hash, err = s.GetFileHash("a.go")
	require.NoError(t, err)
	require.Equal(t, "abc123", hash)
}

func TestDeleteFileCascadesSymbols(t *testing.T) {
	s := openTestStore(t)
	f := types.File{Path: "a.go", Language: "go", ContentHash: "h1"}
	require.NoError(t, s.ReplaceFileSymbols(f, sampleSymbols(f.Path), nil))

	require.NoError(t, s.DeleteFile(f.Path))

	got, err := s.FindSymbols(FindSymbolsOptions{FilePath: f.Path})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFindSymbolsByKind(t *testing.T) {
	s := openTestStore(t)
	f := types.File{Path: "a.go", Language: "go", ContentHash: "h1"}
	require.NoError(t, s.ReplaceFileSymbols(f, sampleSymbols(f.Path), nil))

	got, err := s.FindSymbols(FindSymbolsOptions{Kinds: []types.SymbolKind{types.KindFunction}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Widget", got[0].Name)
}

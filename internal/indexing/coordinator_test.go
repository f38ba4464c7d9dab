package indexing

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/embed"
	"github.com/anortham/miller/internal/store"
	"github.com/anortham/miller/internal/tokenize"
	"github.com/anortham/miller/internal/vectorstore"
)

func newTestCoordinator(t *testing.T, dir string, withEmbedder bool) (*Coordinator, *store.Store) {
	t.Helper()
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = withEmbedder

	st, err := store.Open(filepath.Join(dir, ".miller", "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vs, err := vectorstore.Open(st.DB())
	require.NoError(t, err)

	var embedder embed.Embedder
	if withEmbedder {
		e := embed.NewTFIDF(tokenize.New())
		require.NoError(t, e.Initialize("tfidf-default"))
		embedder = e
	}

	return New(cfg, st, vs, embedder), st
}

func writeGoFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// TestIndexWorkspaceDeltaSkip covers scenario S3: re-indexing an
// unchanged file leaves the symbol count unchanged.
func TestIndexWorkspaceDeltaSkip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.go")
	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	coord, st := newTestCoordinator(t, dir, false)
	ctx := context.Background()

	require.NoError(t, coord.IndexWorkspace(ctx, dir))
	first, err := st.FindSymbols(store.FindSymbolsOptions{FilePath: file})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, coord.IndexWorkspace(ctx, dir))
	second, err := st.FindSymbols(store.FindSymbolsOptions{FilePath: file})
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
}

// TestIndexWorkspaceModifiedReindexNoDuplicates covers scenario S4:
// modifying a file and re-indexing replaces its symbol set rather than
// appending to it.
func TestIndexWorkspaceModifiedReindexNoDuplicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.go")
	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	coord, st := newTestCoordinator(t, dir, false)
	ctx := context.Background()
	require.NoError(t, coord.IndexWorkspace(ctx, dir))

	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n\nfunc Goodbye() string {\n\treturn \"bye\"\n}\n")
	require.NoError(t, coord.IndexWorkspace(ctx, dir))

	symbols, err := st.FindSymbols(store.FindSymbolsOptions{FilePath: file})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, s := range symbols {
		key := s.FilePath + "|" + s.Name + "|" + strconv.Itoa(s.Position.StartByte)
		require.False(t, seen[key], "duplicate symbol %s at %d", s.Name, s.Position.StartByte)
		seen[key] = true
	}

	names := make(map[string]bool)
	for _, s := range symbols {
		names[s.Name] = true
	}
	require.True(t, names["Goodbye"], "expected new function to be indexed")
}

// TestIndexWorkspaceDeleteFileRemovesSymbols confirms DeleteFile clears a
// file's symbols and relationships.
func TestIndexWorkspaceDeleteFileRemovesSymbols(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.go")
	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	coord, st := newTestCoordinator(t, dir, false)
	ctx := context.Background()
	require.NoError(t, coord.IndexWorkspace(ctx, dir))

	symbols, err := st.FindSymbols(store.FindSymbolsOptions{FilePath: file})
	require.NoError(t, err)
	require.NotEmpty(t, symbols)

	require.NoError(t, coord.DeleteFile(file))
	symbols, err = st.FindSymbols(store.FindSymbolsOptions{FilePath: file})
	require.NoError(t, err)
	require.Empty(t, symbols)
}

// TestIndexWorkspaceEmbedsSymbolsWhenSemanticSearchEnabled confirms the
// indexing pipeline submits embeddings to the vector store when an
// embedder is configured.
func TestIndexWorkspaceEmbedsSymbolsWhenSemanticSearchEnabled(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.go")
	writeGoFile(t, file, "package hello\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	coord, _ := newTestCoordinator(t, dir, true)
	ctx := context.Background()
	require.NoError(t, coord.IndexWorkspace(ctx, dir))

	stats := coord.Vectors().Stats()
	require.Greater(t, stats.TotalVectors, 0)
}

// TestScannerDiscoverIgnoresDotDirectories confirms the ignore-list rule
// (.git, node_modules, dist, build, coverage, any dotted directory)
// from spec.md §4.9's discovery procedure.
func TestScannerDiscoverIgnoresDotDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	writeGoFile(t, filepath.Join(dir, ".git", "ignored.go"), "package ignored\n")
	writeGoFile(t, filepath.Join(dir, "node_modules", "ignored.go"), "package ignored\n")
	writeGoFile(t, filepath.Join(dir, "kept.go"), "package kept\n")

	coord, _ := newTestCoordinator(t, dir, false)
	paths, err := coord.scanner.Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(dir, "kept.go"), paths[0])
}

package miller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anortham/miller/internal/config"
)

func newTestWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.go"),
		[]byte("package auth\n\nfunc AuthenticateUser(name string) bool {\n\treturn name != \"\"\n}\n"), 0o644))
	return dir
}

func TestInitializeIndexAndSearchCode(t *testing.T) {
	dir := newTestWorkspace(t)
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = false

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	require.NoError(t, m.IndexWorkspace(context.Background()))

	results := m.SearchCode("AuthenticateUser", Options{MaxResults: 10})
	require.NotEmpty(t, results)
	require.Equal(t, "AuthenticateUser", results[0].Symbol.Name)
}

func TestSemanticSearchUnavailableWithoutEmbedder(t *testing.T) {
	dir := newTestWorkspace(t)
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = false

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	_, err = m.SemanticSearch("authenticate", Options{})
	require.Error(t, err)
}

func TestHybridSearchMergesStructuralAndSemantic(t *testing.T) {
	dir := newTestWorkspace(t)
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = true
	cfg.SemanticThreshold = 0

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	require.NoError(t, m.IndexWorkspace(context.Background()))

	results, err := m.HybridSearch("AuthenticateUser", Options{MaxResults: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestGetWorkspaceStatsReportsCounts(t *testing.T) {
	dir := newTestWorkspace(t)
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = false

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	require.NoError(t, m.IndexWorkspace(context.Background()))

	stats, err := m.GetWorkspaceStats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalFiles)
	require.Greater(t, stats.TotalSymbols, 0)
}

func TestFindCrossLayerEntityTracesSymbolAcrossWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "types"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "api", "DTOs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "domain", "entities"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "types", "user.ts"),
		[]byte("export interface User {\n\tid: string\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api", "DTOs", "user.ts"),
		[]byte("export class User {\n\tid: string\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "domain", "entities", "user.go"),
		[]byte("package entities\n\ntype User struct {\n\tID string\n}\n"), 0o644))

	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = true
	cfg.SemanticThreshold = 0

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	require.NoError(t, m.IndexWorkspace(context.Background()))

	entity, err := m.FindCrossLayerEntity("User", 10)
	require.NoError(t, err)
	require.NotNil(t, entity)
	require.Equal(t, "User", entity.EntityName)
	require.NotEmpty(t, entity.Symbols)
	require.Greater(t, entity.TotalConfidence, 0.0)

	layers := make(map[string]bool)
	for _, s := range entity.Symbols {
		layers[string(s.Layer)] = true
	}
	require.True(t, layers["frontend"] || layers["api"] || layers["domain"])
}

func TestHealthCheckReportsLoadedParsers(t *testing.T) {
	dir := newTestWorkspace(t)
	cfg := config.Default(dir)
	cfg.EnableSemanticSearch = false

	m, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	report := m.HealthCheck()
	require.True(t, report.StoreOK)
}

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.WatcherDebounceMs)
	assert.Equal(t, "tfidf", cfg.EmbeddingModel)
}

func TestValidateRejectsMissingWorkspace(t *testing.T) {
	cfg := Default("/does/not/exist/miller-workspace")
	assert.Error(t, cfg.Validate())
}

func TestLoadKDLMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.WorkspacePath)
	assert.False(t, cfg.EnableWatcher)
}

func TestLoadKDLOverlay(t *testing.T) {
	dir := t.TempDir()
	contents := `
watcher {
    enabled true
    debounce_ms 250
}
semantic {
    enabled true
    embedding_model "tfidf"
    process_count 2
}
index {
    batch_size 25
    exclude "vendor" "dist"
}
`
	require.NoError(t, os.WriteFile(dir+"/.miller.kdl", []byte(contents), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.True(t, cfg.EnableWatcher)
	assert.Equal(t, 250, cfg.WatcherDebounceMs)
	assert.Equal(t, 2, cfg.EmbeddingProcessCount)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.ElementsMatch(t, []string{"vendor", "dist"}, cfg.Exclude)
}

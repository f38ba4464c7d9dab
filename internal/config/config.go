// Package config loads and validates Miller's workspace configuration:
// where the workspace lives, whether the file watcher and semantic search
// are enabled, and the knobs the indexing coordinator and embedder read at
// startup. Adapted from the teacher's internal/config, trimmed to the
// fields this spec's public API names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the public initialize(config) input from the external
// interfaces section of the spec.
type Config struct {
	WorkspacePath         string
	EnableWatcher         bool
	WatcherDebounceMs     int
	EnableSemanticSearch  bool
	EmbeddingModel        string
	EmbeddingProcessCount int
	BatchSize             int

	Include []string
	Exclude []string

	// SemanticThreshold is the default cosine-similarity threshold for
	// semantic_search when the caller does not override it.
	SemanticThreshold float32
}

// DefaultIgnoreList is the directory ignore set named in the indexing
// coordinator's discovery procedure.
var DefaultIgnoreList = []string{".git", "node_modules", "dist", "build", "coverage"}

// Default returns a Config with the spec's documented defaults.
func Default(workspacePath string) *Config {
	return &Config{
		WorkspacePath:         workspacePath,
		EnableWatcher:         false,
		WatcherDebounceMs:     100,
		EnableSemanticSearch:  true,
		EmbeddingModel:        "tfidf",
		EmbeddingProcessCount: 1,
		BatchSize:             50,
		SemanticThreshold:     0.3,
	}
}

// Validate checks the config for values the rest of the pipeline cannot
// safely default around.
func (c *Config) Validate() error {
	if c.WorkspacePath == "" {
		return fmt.Errorf("config: workspace_path is required")
	}
	info, err := os.Stat(c.WorkspacePath)
	if err != nil {
		return fmt.Errorf("config: workspace_path %q: %w", c.WorkspacePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: workspace_path %q is not a directory", c.WorkspacePath)
	}
	if c.WatcherDebounceMs < 0 {
		return fmt.Errorf("config: watcher_debounce_ms must be >= 0")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.EmbeddingProcessCount <= 0 {
		c.EmbeddingProcessCount = 1
	}
	return nil
}

// StateDir returns <workspace>/.miller, the root of all persisted state.
func (c *Config) StateDir() string {
	return filepath.Join(c.WorkspacePath, ".miller")
}

// StorePath returns the relational store file path.
func (c *Config) StorePath() string {
	return filepath.Join(c.StateDir(), "db.sqlite")
}

// VectorsDir returns the vector index directory.
func (c *Config) VectorsDir() string {
	return filepath.Join(c.StateDir(), "vectors")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir(), "logs")
}

// EnsureStateDirs creates the .miller/{vectors,logs} tree.
func (c *Config) EnsureStateDirs() error {
	for _, dir := range []string{c.StateDir(), c.VectorsDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

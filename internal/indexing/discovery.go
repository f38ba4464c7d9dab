// Package indexing implements the indexing coordinator: recursive
// workspace discovery, the delta-hash check, the parse→extract→persist
// pipeline, embedding batching, and watch mode. Adapted from the
// teacher's internal/indexing package, retargeted from LCI's in-memory
// trigram index onto Miller's relational store and vector store.
package indexing

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/grammar"
)

// ignoredDir mirrors config.DefaultIgnoreList plus the
// any-dotted-directory rule named in spec.md §4.9's discovery procedure.
func ignoredDir(name string, extra []string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, d := range config.DefaultIgnoreList {
		if name == d {
			return true
		}
	}
	for _, d := range extra {
		if name == d {
			return true
		}
	}
	return false
}

// Scanner walks a workspace root and yields candidate file paths: not in
// an ignored directory, not matching an Exclude glob, extension
// registered with the grammar registry, and not binary by extension.
type Scanner struct {
	registry *grammar.Registry
	detector *BinaryDetector
	include  []string
	exclude  []string
}

// NewScanner builds a Scanner backed by registry and cfg's include/exclude
// patterns.
func NewScanner(registry *grammar.Registry, cfg *config.Config) *Scanner {
	return &Scanner{
		registry: registry,
		detector: NewBinaryDetector(),
		include:  cfg.Include,
		exclude:  cfg.Exclude,
	}
}

// Discover walks root and returns every path the pipeline should
// consider indexing.
func (s *Scanner) Discover(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // recoverable at file granularity, per the error taxonomy
		}
		if info.IsDir() {
			if path != root && ignoredDir(info.Name(), nil) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.shouldIndex(root, path, info) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func (s *Scanner) shouldIndex(root, path string, info os.FileInfo) bool {
	if s.detector.IsBinaryByExtension(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !s.registry.IsExtensionSupported(ext) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range s.exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, pattern := range s.include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

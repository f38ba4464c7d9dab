// Package parser implements the parser manager: given a file's path and
// bytes, it dispatches to the correct grammar and returns a parse tree
// plus the detected language. Adapted from the teacher's
// internal/parser/parser.go dispatch logic, stripped of LCI's own
// block-boundary/reference extraction (that lives one layer up, in
// internal/extractor, per this spec's uniform extractor contract).
package parser

import (
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/anortham/miller/internal/grammar"
	"github.com/anortham/miller/internal/merrors"
)

// ParseResult is the parser manager's output. Trees are single-use: the
// manager never retains them, and callers must Close the tree once
// extraction has consumed it.
type ParseResult struct {
	Tree     *tree_sitter.Tree
	Language string
}

// Manager dispatches (path, bytes) to the right tree-sitter grammar.
// A small pool of *tree_sitter.Parser instances is kept per language so
// concurrent parses don't all pay the parser-allocation cost, mirroring
// the teacher's per-extension parser map.
type Manager struct {
	registry *grammar.Registry

	mu      sync.Mutex
	parsers map[string][]*tree_sitter.Parser // language -> pool
}

// NewManager creates a parser manager backed by registry.
func NewManager(registry *grammar.Registry) *Manager {
	return &Manager{registry: registry, parsers: make(map[string][]*tree_sitter.Parser)}
}

// Initialize loads every registered grammar eagerly; an individual
// grammar's failure is recorded by the registry and never fatal here.
func (m *Manager) Initialize() {
	m.registry.Initialize()
}

// Parse selects a language by extension, falling back to a shebang sniff
// for extension-less scripts, then parses bytes with that grammar.
func (m *Manager) Parse(path string, data []byte) (*ParseResult, error) {
	lang := m.detectLanguage(path, data)
	if lang == "" {
		return nil, merrors.New(merrors.UnsupportedLanguage, "parse", errUnsupported(path)).WithFile(path)
	}

	tsLang, err := m.registry.Load(lang)
	if err != nil {
		return nil, merrors.New(merrors.UnsupportedLanguage, "parse", err).WithFile(path)
	}

	p := m.acquireParser(lang, tsLang)
	defer m.releaseParser(lang, p)

	tree := p.Parse(data, nil)
	if tree == nil {
		return nil, merrors.New(merrors.ParseError, "parse", errParseFailed(path)).WithFile(path)
	}
	return &ParseResult{Tree: tree, Language: lang}, nil
}

func (m *Manager) detectLanguage(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang := m.registry.LanguageForExtension(ext); lang != "" {
		return lang
	}
	// Shebang sniff for extension-less scripts, e.g. a Python entry point.
	if len(data) > 2 && data[0] == '#' && data[1] == '!' {
		line := data
		if nl := strings.IndexByte(string(data), '\n'); nl >= 0 {
			line = data[:nl]
		}
		shebang := string(line)
		switch {
		case strings.Contains(shebang, "python"):
			return m.registry.LanguageForExtension(".py")
		case strings.Contains(shebang, "node"):
			return m.registry.LanguageForExtension(".js")
		}
	}
	return ""
}

func (m *Manager) acquireParser(lang string, tsLang *tree_sitter.Language) *tree_sitter.Parser {
	m.mu.Lock()
	pool := m.parsers[lang]
	if len(pool) > 0 {
		p := pool[len(pool)-1]
		m.parsers[lang] = pool[:len(pool)-1]
		m.mu.Unlock()
		return p
	}
	m.mu.Unlock()

	p := tree_sitter.NewParser()
	_ = p.SetLanguage(tsLang)
	return p
}

func (m *Manager) releaseParser(lang string, p *tree_sitter.Parser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsers[lang] = append(m.parsers[lang], p)
}

// SupportedExtensions returns the set of file extensions the manager can
// dispatch.
func (m *Manager) SupportedExtensions() map[string]struct{} {
	out := make(map[string]struct{})
	for _, ext := range m.registry.SupportedExtensions() {
		out[ext] = struct{}{}
	}
	return out
}

// SupportedLanguages returns the set of registered language names.
func (m *Manager) SupportedLanguages() map[string]struct{} {
	out := make(map[string]struct{})
	for _, lang := range m.registry.SupportedLanguages() {
		out[lang] = struct{}{}
	}
	return out
}

// IsFileSupported reports whether path's extension has a registered
// grammar.
func (m *Manager) IsFileSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return m.registry.IsExtensionSupported(ext)
}

type unsupportedLanguageErr struct{ path string }

func (e *unsupportedLanguageErr) Error() string { return "unsupported language for " + e.path }
func errUnsupported(path string) error          { return &unsupportedLanguageErr{path: path} }

type parseFailedErr struct{ path string }

func (e *parseFailedErr) Error() string { return "parse failed for " + e.path }
func errParseFailed(path string) error  { return &parseFailedErr{path: path} }

// Package grammar owns the set of supported languages: their
// file-extension associations and a lazily populated cache of loaded
// tree-sitter grammars. Adapted from the teacher's
// internal/parser/parser_language_setup.go lazy-init map, split into its
// own package because the spec names the grammar registry as a
// component distinct from the parser manager.
package grammar

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Grammar is a loaded tree-sitter language plus the extensions it serves.
type Grammar struct {
	Name       string
	Extensions []string
	loader     func() *tree_sitter.Language
}

// Registry maintains the supported-language set, lazily loading each
// grammar's *tree_sitter.Language only on first use — grammars a workspace
// never needs are never linked against at runtime cost.
type Registry struct {
	mu         sync.RWMutex
	byExt      map[string]*Grammar
	byName     map[string]*Grammar
	loaded     map[string]*tree_sitter.Language
	failed     map[string]error
}

// NewRegistry builds the registry with every grammar the build was
// configured with. Initialization never fails for the registry as a
// whole — an individual grammar's failure is recorded and the grammar is
// marked unavailable, per the parser manager's initialize() contract.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:  make(map[string]*Grammar),
		byName: make(map[string]*Grammar),
		loaded: make(map[string]*tree_sitter.Language),
		failed: make(map[string]error),
	}
	for _, g := range builtinGrammars() {
		g := g
		r.byName[g.Name] = g
		for _, ext := range g.Extensions {
			r.byExt[ext] = g
		}
	}
	return r
}

func builtinGrammars() []*Grammar {
	return []*Grammar{
		{Name: "go", Extensions: []string{".go"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_go.Language())
		}},
		{Name: "javascript", Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
		}},
		{Name: "typescript", Extensions: []string{".ts"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
		}},
		{Name: "tsx", Extensions: []string{".tsx"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
		}},
		{Name: "python", Extensions: []string{".py"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_python.Language())
		}},
		{Name: "java", Extensions: []string{".java"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_java.Language())
		}},
		{Name: "csharp", Extensions: []string{".cs"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_csharp.Language())
		}},
		{Name: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".h"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
		}},
		{Name: "php", Extensions: []string{".php"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
		}},
		{Name: "rust", Extensions: []string{".rs"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_rust.Language())
		}},
		{Name: "zig", Extensions: []string{".zig"}, loader: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_zig.Language())
		}},
	}
}

// Initialize eagerly loads every registered grammar, recording failures
// instead of propagating them. Call once at startup; Load() below is
// still safe to call lazily afterward, but a grammar that failed here
// stays unavailable: Load returns the recorded failure without retrying.
func (r *Registry) Initialize() {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		_, _ = r.Load(name)
	}
}

// Load returns the tree-sitter language for name, loading it on first
// use under a single-writer lock (the registry's grammar cache is
// read-mostly).
func (r *Registry) Load(name string) (*tree_sitter.Language, error) {
	r.mu.RLock()
	if lang, ok := r.loaded[name]; ok {
		r.mu.RUnlock()
		return lang, nil
	}
	if err, ok := r.failed[name]; ok {
		r.mu.RUnlock()
		return nil, err
	}
	g, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownLanguageError{Name: name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lang, ok := r.loaded[name]; ok {
		return lang, nil
	}
	lang := g.loader()
	if lang == nil {
		err := &LoadError{Name: name}
		r.failed[name] = err
		return nil, err
	}
	r.loaded[name] = lang
	return lang, nil
}

// LanguageForExtension maps a file extension (including the leading dot)
// to a registered language name, or "" if unsupported.
func (r *Registry) LanguageForExtension(ext string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.byExt[ext]; ok {
		return g.Name
	}
	return ""
}

// SupportedExtensions returns the set of extensions the registry
// recognizes, regardless of whether the backing grammar has loaded yet.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

// SupportedLanguages returns every registered language name.
func (r *Registry) SupportedLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// IsExtensionSupported reports whether ext has a registered grammar.
func (r *Registry) IsExtensionSupported(ext string) bool {
	return r.LanguageForExtension(ext) != ""
}

// Status reports, for health_check, which grammars loaded successfully
// and which failed.
func (r *Registry) Status() (loaded []string, failed map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.loaded {
		loaded = append(loaded, name)
	}
	failed = make(map[string]string, len(r.failed))
	for name, err := range r.failed {
		failed[name] = err.Error()
	}
	return loaded, failed
}

// UnknownLanguageError is returned when a language name has no
// registered grammar at all.
type UnknownLanguageError struct{ Name string }

func (e *UnknownLanguageError) Error() string { return "grammar: unknown language " + e.Name }

// LoadError is returned when a registered grammar's loader fails.
type LoadError struct{ Name string }

func (e *LoadError) Error() string { return "grammar: failed to load " + e.Name }

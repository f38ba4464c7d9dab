// Package extractor implements the language-agnostic extractor contract:
// extract_symbols, extract_relationships, infer_types. Each language
// implements the Extractor interface once; shared behavior (position
// conversion, parent linkage, visibility inference) is provided by
// composition through the Base helper type rather than a deep
// inheritance hierarchy, per the design notes on modeling extractors as
// an interface implemented per language.
package extractor

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/anortham/miller/internal/types"
)

// Tree bundles what an extractor needs from the parser manager's output:
// the parse tree, the raw file bytes it was parsed from, and the file's
// path and language.
type Tree struct {
	Root     *tree_sitter.Node
	Content  []byte
	Path     string
	Language string
}

// Extractor is the uniform per-language contract. Every implementation
// must satisfy the six guarantees named in the component design: name-
// anchored positions, stable ids, parent linkage, visibility inference,
// relationship emission, and best-effort resilience to per-node errors.
type Extractor interface {
	// ExtractSymbols walks tree and returns every symbol it finds. A
	// node-level failure is recorded as a diagnostic and the node is
	// skipped — extraction never aborts because of one bad node.
	ExtractSymbols(tree *Tree) ([]types.Symbol, []types.Diagnostic)

	// ExtractRelationships walks tree again against the already-extracted
	// symbols and returns the directed edges between them.
	ExtractRelationships(tree *Tree, symbols []types.Symbol) ([]types.Relationship, []types.Diagnostic)

	// InferTypes is signature-level only: it parses the declared type out
	// of each symbol's signature string and never inspects the tree.
	// Symbols without a recoverable declared type map to "inferred".
	InferTypes(symbols []types.Symbol) map[string]string
}

// Registry maps a language name (as returned by the grammar registry) to
// its extractor.
type Registry struct {
	byLanguage map[string]Extractor
}

// NewRegistry builds the registry with every extractor this build ships.
func NewRegistry() *Registry {
	r := &Registry{byLanguage: make(map[string]Extractor)}
	r.Register("go", NewGoExtractor())
	r.Register("javascript", NewJavaScriptExtractor("javascript"))
	r.Register("typescript", NewJavaScriptExtractor("typescript"))
	r.Register("tsx", NewJavaScriptExtractor("tsx"))
	r.Register("python", NewPythonExtractor())
	return r
}

// Register adds or replaces the extractor for a language.
func (r *Registry) Register(language string, e Extractor) {
	r.byLanguage[language] = e
}

// For returns the extractor registered for language, or nil if no
// extractor body exists yet — the grammar may still parse the file, but
// no symbols/relationships will be produced for it. Callers should treat
// a nil Extractor as "parse-only" support, not an error.
func (r *Registry) For(language string) Extractor {
	return r.byLanguage[language]
}

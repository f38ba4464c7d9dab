package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/anortham/miller/internal/types"
)

// jsQuery is grounded on the teacher's setupJavaScript()/setupTypeScript()
// queries, merged into one shape since TSX is a strict superset of JS for
// the constructs this extractor cares about.
const jsQuery = `
(function_declaration name: (identifier) @function.name) @function
(variable_declarator
    name: (identifier) @function.name
    value: [(arrow_function) (function_expression)]) @function
(method_definition name: (property_identifier) @method.name) @method
(class_declaration name: (identifier) @class.name) @class
(class_declaration name: (type_identifier) @class.name) @class
(interface_declaration name: (type_identifier) @interface.name) @interface
(type_alias_declaration name: (type_identifier) @type_alias.name) @type_alias
(enum_declaration name: (identifier) @enum.name) @enum
(variable_declarator
    name: (identifier) @variable.name) @variable
(import_statement source: (string) @import.path) @import
(call_expression function: (identifier) @call.name) @call
(call_expression function: (member_expression property: (property_identifier) @call.name)) @call
`

// JavaScriptExtractor implements the uniform extractor contract for
// JavaScript, TypeScript, and TSX — one extractor body parameterized by
// dialect, since the three grammars share the query shape above almost
// entirely; only the compiled *tree_sitter.Language differs.
type JavaScriptExtractor struct {
	Base
	dialect string
	query   *tree_sitter.Query
}

// NewJavaScriptExtractor compiles jsQuery against the grammar matching
// dialect ("javascript", "typescript", or "tsx").
func NewJavaScriptExtractor(dialect string) *JavaScriptExtractor {
	var lang *tree_sitter.Language
	switch dialect {
	case "typescript":
		lang = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "tsx":
		lang = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		lang = tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	}
	q, _ := tree_sitter.NewQuery(lang, jsQuery)
	return &JavaScriptExtractor{dialect: dialect, query: q}
}

func (j *JavaScriptExtractor) ExtractSymbols(tree *Tree) ([]types.Symbol, []types.Diagnostic) {
	if j.query == nil {
		return nil, []types.Diagnostic{{FilePath: tree.Path, Severity: "error", Message: j.dialect + " query failed to compile", Stage: "extract"}}
	}

	symbols := []types.Symbol{j.ModuleSymbol(tree.Path, j.dialect)}
	var diags []types.Diagnostic

	WalkQuery(j.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "extractor panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "import.path"); ok {
			path := strings.Trim(j.NodeText(&n, tree.Content), `"'`)
			pos := j.PositionOf(&n)
			symbols = append(symbols, types.Symbol{
				ID:         types.FingerprintSymbol(tree.Path, path, pos.StartByte, types.KindModule),
				Name:       path,
				Kind:       types.KindModule,
				Language:   j.dialect,
				FilePath:   tree.Path,
				Position:   pos,
				Visibility: types.VisibilityPublic,
				Metadata:   map[string]string{"import_path": path},
			})
			return
		}

		main, label, ok := classifyJSCapture(captures)
		if !ok {
			return
		}
		nameNode, ok := FindCapture(captures, label+".name")
		if !ok {
			return
		}
		name := j.NodeText(&nameNode, tree.Content)
		symbols = append(symbols, j.buildSymbol(tree, &main, &nameNode, name, kindFromJSLabel(label)))
	})

	j.AssignParents(symbols)
	return symbols, diags
}

func (j *JavaScriptExtractor) buildSymbol(tree *Tree, declNode, nameNode *tree_sitter.Node, name string, kind types.SymbolKind) types.Symbol {
	pos := j.PositionOf(nameNode)
	exported := hasExportAncestor(declNode)
	vis := j.InferVisibility(name, exported, true)
	doc := j.LeadingDocComment(declNode, tree.Content, map[string]bool{"comment": true})
	sig := j.NodeText(declNode, tree.Content)
	if len(sig) > 240 {
		sig = sig[:240]
	}
	return types.Symbol{
		ID:         types.FingerprintSymbol(tree.Path, name, pos.StartByte, kind),
		Name:       name,
		Kind:       kind,
		Language:   j.dialect,
		FilePath:   tree.Path,
		Position:   pos,
		Signature:  sig,
		DocComment: doc,
		Visibility: vis,
	}
}

func hasExportAncestor(n *tree_sitter.Node) bool {
	cur := n.Parent()
	for i := 0; cur != nil && i < 3; i++ {
		if cur.Kind() == "export_statement" {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

func (j *JavaScriptExtractor) ExtractRelationships(tree *Tree, symbols []types.Symbol) ([]types.Relationship, []types.Diagnostic) {
	byName := make(map[string][]types.Symbol, len(symbols))
	var module *types.Symbol
	for i, s := range symbols {
		byName[s.Name] = append(byName[s.Name], s)
		if s.Kind == types.KindModule && s.FilePath == tree.Path && s.Name == tree.Path {
			module = &symbols[i]
		}
	}

	enclosing := func(byteOffset int) *types.Symbol {
		var best *types.Symbol
		for i := range symbols {
			s := &symbols[i]
			if s.Position.StartByte <= byteOffset && byteOffset <= s.Position.EndByte {
				if best == nil || (s.Position.EndByte-s.Position.StartByte) < (best.Position.EndByte-best.Position.StartByte) {
					best = s
				}
			}
		}
		return best
	}

	var rels []types.Relationship
	var diags []types.Diagnostic

	WalkQuery(j.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "relationship extraction panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "call.name"); ok {
			callee := j.NodeText(&n, tree.Content)
			from := enclosing(int(n.StartByte()))
			if from != nil {
				if targets := byName[callee]; len(targets) > 0 {
					pos := j.PositionOf(&n)
					rels = append(rels, types.Relationship{
						ID:           types.FingerprintRelationship(from.ID, targets[0].ID, types.RelCalls, tree.Path, pos.StartByte),
						FromSymbolID: from.ID,
						ToSymbolID:   targets[0].ID,
						Kind:         types.RelCalls,
						FilePath:     tree.Path,
						Position:     pos,
					})
				}
			}
		}

		if n, ok := FindCapture(captures, "import.path"); ok && module != nil {
			path := strings.Trim(j.NodeText(&n, tree.Content), `"'`)
			if targets := byName[path]; len(targets) > 0 {
				pos := j.PositionOf(&n)
				rels = append(rels, types.Relationship{
					ID:           types.FingerprintRelationship(module.ID, targets[0].ID, types.RelImports, tree.Path, pos.StartByte),
					FromSymbolID: module.ID,
					ToSymbolID:   targets[0].ID,
					Kind:         types.RelImports,
					FilePath:     tree.Path,
					Position:     pos,
				})
			}
		}

		if n, ok := FindCapture(captures, "class.name"); ok {
			_ = n // extends/implements for classes are handled via heritage clauses, captured below
		}
	})

	rels = append(rels, j.extractHeritage(tree, byName)...)
	return rels, diags
}

// extractHeritage walks class declarations directly (rather than through
// the main query) to find `extends`/`implements` clauses, since those
// live as a class_heritage child rather than a top-level capture.
func (j *JavaScriptExtractor) extractHeritage(tree *Tree, byName map[string][]types.Symbol) []types.Relationship {
	var rels []types.Relationship
	var walk func(n tree_sitter.Node)
	walk = func(n tree_sitter.Node) {
		if n.Kind() == "class_declaration" {
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil {
				className := j.NodeText(nameNode, tree.Content)
				if fromList := byName[className]; len(fromList) > 0 {
					from := fromList[0]
					count := int(n.NamedChildCount())
					for i := 0; i < count; i++ {
						child := n.NamedChild(uint(i))
						if child == nil || child.Kind() != "class_heritage" {
							continue
						}
						heritage := j.NodeText(child, tree.Content)
						kind := types.RelImplements
						if strings.HasPrefix(strings.TrimSpace(heritage), "extends") {
							kind = types.RelExtends
						}
						for _, targetName := range extractIdentifiers(heritage) {
							if targets := byName[targetName]; len(targets) > 0 {
								pos := j.PositionOf(child)
								rels = append(rels, types.Relationship{
									ID:           types.FingerprintRelationship(from.ID, targets[0].ID, kind, tree.Path, pos.StartByte),
									FromSymbolID: from.ID,
									ToSymbolID:   targets[0].ID,
									Kind:         kind,
									FilePath:     tree.Path,
									Position:     pos,
								})
							}
						}
					}
				}
			}
		}
		childCount := int(n.NamedChildCount())
		for i := 0; i < childCount; i++ {
			c := n.NamedChild(uint(i))
			if c != nil {
				walk(*c)
			}
		}
	}
	walk(*tree.Root)
	return rels
}

func extractIdentifiers(heritage string) []string {
	heritage = strings.TrimPrefix(strings.TrimSpace(heritage), "extends")
	heritage = strings.TrimPrefix(strings.TrimSpace(heritage), "implements")
	var out []string
	for _, part := range strings.Split(heritage, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			if sp := strings.IndexAny(part, " ({<"); sp != -1 {
				part = part[:sp]
			}
			out = append(out, part)
		}
	}
	return out
}

func (j *JavaScriptExtractor) InferTypes(symbols []types.Symbol) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		if t := declaredTSType(s.Signature); t != "" {
			out[s.ID] = t
		} else {
			out[s.ID] = "inferred"
		}
	}
	return out
}

// declaredTSType reads a trailing ": Type" annotation from a signature
// string — signature-level only, same contract as the Go extractor.
func declaredTSType(sig string) string {
	idx := strings.LastIndex(sig, "):")
	if idx == -1 {
		return ""
	}
	rest := strings.TrimSpace(sig[idx+2:])
	if brace := strings.IndexAny(rest, "{=;"); brace != -1 {
		rest = strings.TrimSpace(rest[:brace])
	}
	return rest
}

func classifyJSCapture(captures []Capture) (tree_sitter.Node, string, bool) {
	for _, label := range []string{"function", "method", "class", "interface", "type_alias", "enum", "variable"} {
		if n, ok := FindCapture(captures, label); ok {
			return n, label, true
		}
	}
	return tree_sitter.Node{}, "", false
}

func kindFromJSLabel(label string) types.SymbolKind {
	switch label {
	case "function":
		return types.KindFunction
	case "method":
		return types.KindMethod
	case "class":
		return types.KindClass
	case "interface":
		return types.KindInterface
	case "type_alias":
		return types.KindTypeAlias
	case "enum":
		return types.KindEnum
	case "variable":
		return types.KindVariable
	default:
		return types.KindVariable
	}
}

package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/anortham/miller/internal/types"
)

// goQuery captures the declaration shapes the Go extractor understands.
// Grounded on the teacher's setupGo() query in
// internal/parser/parser_language_setup.go, extended with struct/
// interface/const/var/call captures the teacher's single-purpose query
// didn't need.
const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
    name: (field_identifier) @method.name) @method
(type_spec name: (type_identifier) @class.name type: (struct_type)) @class
(type_spec name: (type_identifier) @interface.name type: (interface_type)) @interface
(type_spec name: (type_identifier) @type_alias.name) @type_alias
(const_spec name: (identifier) @constant.name) @constant
(var_spec name: (identifier) @variable.name) @variable
(import_spec path: (interpreted_string_literal) @import.path) @import
(call_expression function: (identifier) @call.name) @call
(call_expression function: (selector_expression field: (field_identifier) @call.name)) @call
`

// GoExtractor implements the uniform extractor contract for Go.
type GoExtractor struct {
	Base
	query *tree_sitter.Query
}

// NewGoExtractor compiles the Go query once at registration time.
func NewGoExtractor() *GoExtractor {
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
	q, _ := tree_sitter.NewQuery(lang, goQuery)
	return &GoExtractor{query: q}
}

func (g *GoExtractor) ExtractSymbols(tree *Tree) ([]types.Symbol, []types.Diagnostic) {
	if g.query == nil {
		return nil, []types.Diagnostic{{FilePath: tree.Path, Severity: "error", Message: "go query failed to compile", Stage: "extract"}}
	}

	symbols := []types.Symbol{g.ModuleSymbol(tree.Path, "go")}
	var diags []types.Diagnostic

	WalkQuery(g.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "extractor panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "import.path"); ok {
			path := strings.Trim(g.NodeText(&n, tree.Content), `"`)
			pos := g.PositionOf(&n)
			symbols = append(symbols, types.Symbol{
				ID:         types.FingerprintSymbol(tree.Path, path, pos.StartByte, types.KindModule),
				Name:       path,
				Kind:       types.KindModule,
				Language:   "go",
				FilePath:   tree.Path,
				Position:   pos,
				Visibility: types.VisibilityPublic,
				Metadata:   map[string]string{"import_path": path},
			})
			return
		}

		main, kind, ok := classifyGoCapture(captures)
		if !ok {
			return
		}
		nameNode, ok := FindCapture(captures, kind+".name")
		if !ok {
			return
		}
		name := g.NodeText(&nameNode, tree.Content)
		sym := g.buildGoSymbol(tree, &main, &nameNode, name, kindFromCaptureLabel(kind))
		symbols = append(symbols, sym)
	})

	g.AssignParents(symbols)
	return symbols, diags
}

func (g *GoExtractor) buildGoSymbol(tree *Tree, declNode, nameNode *tree_sitter.Node, name string, kind types.SymbolKind) types.Symbol {
	pos := g.PositionOf(nameNode)
	vis := types.VisibilityPrivate
	if startsUpper(name) {
		vis = types.VisibilityPublic
	}
	doc := g.LeadingDocComment(declNode, tree.Content, map[string]bool{"comment": true})
	sig := g.NodeText(declNode, tree.Content)
	if len(sig) > 240 {
		sig = sig[:240]
	}
	id := types.FingerprintSymbol(tree.Path, name, pos.StartByte, kind)
	return types.Symbol{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Language:   "go",
		FilePath:   tree.Path,
		Position:   pos,
		Signature:  sig,
		DocComment: doc,
		Visibility: vis,
	}
}

func (g *GoExtractor) ExtractRelationships(tree *Tree, symbols []types.Symbol) ([]types.Relationship, []types.Diagnostic) {
	byName := make(map[string][]types.Symbol, len(symbols))
	var module *types.Symbol
	for i, s := range symbols {
		byName[s.Name] = append(byName[s.Name], s)
		if s.Kind == types.KindModule && s.FilePath == tree.Path && s.Name == tree.Path {
			module = &symbols[i]
		}
	}

	var rels []types.Relationship
	var diags []types.Diagnostic

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

	WalkQuery(g.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "relationship extraction panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "call.name"); ok {
			callee := g.NodeText(&n, tree.Content)
			from := enclosing(int(n.StartByte()))
			targets := byName[callee]
			if from != nil && len(targets) > 0 {
				pos := g.PositionOf(&n)
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

		if n, ok := FindCapture(captures, "import.path"); ok && module != nil {
			pos := g.PositionOf(&n)
			path := strings.Trim(g.NodeText(&n, tree.Content), `"`)
			if targets := byName[path]; len(targets) > 0 {
				target := targets[0]
				rels = append(rels, types.Relationship{
					ID:           types.FingerprintRelationship(module.ID, target.ID, types.RelImports, tree.Path, pos.StartByte),
					FromSymbolID: module.ID,
					ToSymbolID:   target.ID,
					Kind:         types.RelImports,
					FilePath:     tree.Path,
					Position:     pos,
				})
			}
		}
	})

	return rels, diags
}

func (g *GoExtractor) InferTypes(symbols []types.Symbol) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		if t := declaredGoType(s.Signature); t != "" {
			out[s.ID] = t
		} else {
			out[s.ID] = "inferred"
		}
	}
	return out
}

// declaredGoType extracts the "Type {" style hint that follows the first
// ") " in a signature string, cut at the opening brace; text starting
// with "(" yields "". It is intentionally shallow: signature-level
// inference only, never re-parsing the tree.
func declaredGoType(sig string) string {
	if idx := strings.Index(sig, ") "); idx != -1 && idx+2 < len(sig) {
		rest := strings.TrimSpace(sig[idx+2:])
		if brace := strings.IndexByte(rest, '{'); brace != -1 {
			rest = strings.TrimSpace(rest[:brace])
		}
		if rest != "" && !strings.HasPrefix(rest, "(") {
			return rest
		}
	}
	return ""
}

func startsUpper(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func classifyGoCapture(captures []Capture) (tree_sitter.Node, string, bool) {
	for _, label := range []string{"function", "method", "class", "interface", "type_alias", "constant", "variable"} {
		if n, ok := FindCapture(captures, label); ok {
			return n, label, true
		}
	}
	return tree_sitter.Node{}, "", false
}

func kindFromCaptureLabel(label string) types.SymbolKind {
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
	case "constant":
		return types.KindConstant
	case "variable":
		return types.KindVariable
	default:
		return types.KindVariable
	}
}

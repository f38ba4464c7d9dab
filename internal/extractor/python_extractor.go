package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/anortham/miller/internal/types"
)

// pythonQuery is grounded on the teacher's setupPython() query, extended
// with class/assignment/import captures.
const pythonQuery = `
(function_definition name: (identifier) @function.name) @function
(class_definition name: (identifier) @class.name) @class
(class_definition superclasses: (argument_list) @class.bases) @class
(assignment left: (identifier) @variable.name) @variable
(import_statement name: (dotted_name) @import.path) @import
(import_from_statement module_name: (dotted_name) @import.path) @import
(call function: (identifier) @call.name) @call
(call function: (attribute attribute: (identifier) @call.name)) @call
`

// PythonExtractor implements the uniform extractor contract for Python.
// Methods are functions nested inside a class body; there is no separate
// grammar node for "method", so a function_definition with a
// class_definition ancestor is tagged as a method and parented to the
// nearest enclosing class.
type PythonExtractor struct {
	Base
	query *tree_sitter.Query
}

func NewPythonExtractor() *PythonExtractor {
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	q, _ := tree_sitter.NewQuery(lang, pythonQuery)
	return &PythonExtractor{query: q}
}

func (p *PythonExtractor) ExtractSymbols(tree *Tree) ([]types.Symbol, []types.Diagnostic) {
	if p.query == nil {
		return nil, []types.Diagnostic{{FilePath: tree.Path, Severity: "error", Message: "python query failed to compile", Stage: "extract"}}
	}

	symbols := []types.Symbol{p.ModuleSymbol(tree.Path, "python")}
	var diags []types.Diagnostic

	WalkQuery(p.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "extractor panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "import.path"); ok {
			path := p.NodeText(&n, tree.Content)
			pos := p.PositionOf(&n)
			symbols = append(symbols, types.Symbol{
				ID:         types.FingerprintSymbol(tree.Path, path, pos.StartByte, types.KindModule),
				Name:       path,
				Kind:       types.KindModule,
				Language:   "python",
				FilePath:   tree.Path,
				Position:   pos,
				Visibility: types.VisibilityPublic,
				Metadata:   map[string]string{"import_path": path},
			})
			return
		}

		main, label, ok := classifyPythonCapture(captures)
		if !ok {
			return
		}
		nameNode, ok := FindCapture(captures, label+".name")
		if !ok {
			return
		}
		name := p.NodeText(&nameNode, tree.Content)
		kind := kindFromPythonLabel(label)
		if label == "function" && hasClassAncestor(&main) {
			kind = types.KindMethod
		}
		sym := p.buildSymbol(tree, &main, &nameNode, name, kind)
		if kind == types.KindMethod {
			for cur := main.Parent(); cur != nil; cur = cur.Parent() {
				if cur.Kind() != "class_definition" {
					continue
				}
				if cn := cur.ChildByFieldName("name"); cn != nil {
					sym.ParentID = types.FingerprintSymbol(tree.Path, p.NodeText(cn, tree.Content), int(cn.StartByte()), types.KindClass)
				}
				break
			}
		}
		symbols = append(symbols, sym)
	})

	p.AssignParents(symbols)
	return symbols, diags
}

func hasClassAncestor(n *tree_sitter.Node) bool {
	cur := n.Parent()
	for cur != nil {
		if cur.Kind() == "class_definition" {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

func (p *PythonExtractor) buildSymbol(tree *Tree, declNode, nameNode *tree_sitter.Node, name string, kind types.SymbolKind) types.Symbol {
	pos := p.PositionOf(nameNode)
	vis := p.InferVisibility(name, false, true)
	doc := leadingPythonDocstring(declNode, tree.Content)
	sig := p.NodeText(declNode, tree.Content)
	if idx := strings.IndexByte(sig, ':'); idx != -1 && kind != types.KindVariable {
		if nl := strings.IndexByte(sig, '\n'); nl == -1 || idx < nl {
			sig = sig[:idx+1]
		}
	}
	if len(sig) > 240 {
		sig = sig[:240]
	}
	return types.Symbol{
		ID:         types.FingerprintSymbol(tree.Path, name, pos.StartByte, kind),
		Name:       name,
		Kind:       kind,
		Language:   "python",
		FilePath:   tree.Path,
		Position:   pos,
		Signature:  sig,
		DocComment: doc,
		Visibility: vis,
	}
}

// leadingPythonDocstring looks for a string-literal expression statement
// as the first statement of a function/class body rather than a
// preceding-comment chain, since Python's doc convention is a docstring
// inside the body, not comments above the def.
func leadingPythonDocstring(declNode *tree_sitter.Node, content []byte) string {
	body := declNode.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	if first.NamedChildCount() == 0 {
		return ""
	}
	strNode := first.NamedChild(0)
	if strNode == nil || strNode.Kind() != "string" {
		return ""
	}
	text := string(content[strNode.StartByte():strNode.EndByte()])
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

func (p *PythonExtractor) ExtractRelationships(tree *Tree, symbols []types.Symbol) ([]types.Relationship, []types.Diagnostic) {
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

	WalkQuery(p.query, *tree.Root, tree.Content, func(captures []Capture) {
		defer func() {
			if r := recover(); r != nil {
				diags = append(diags, types.Diagnostic{FilePath: tree.Path, Severity: "warning", Message: "relationship extraction panic recovered", Stage: "extract"})
			}
		}()

		if n, ok := FindCapture(captures, "call.name"); ok {
			callee := p.NodeText(&n, tree.Content)
			from := enclosing(int(n.StartByte()))
			if from != nil {
				if targets := byName[callee]; len(targets) > 0 {
					pos := p.PositionOf(&n)
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
			path := p.NodeText(&n, tree.Content)
			if targets := byName[path]; len(targets) > 0 {
				pos := p.PositionOf(&n)
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

		if n, ok := FindCapture(captures, "class.bases"); ok {
			bases := p.NodeText(&n, tree.Content)
			bases = strings.TrimPrefix(bases, "(")
			bases = strings.TrimSuffix(bases, ")")
			classNode, hasClass := FindCapture(captures, "class")
			if !hasClass {
				return
			}
			classNameNode := classNode.ChildByFieldName("name")
			if classNameNode == nil {
				return
			}
			className := p.NodeText(classNameNode, tree.Content)
			fromList := byName[className]
			if len(fromList) == 0 {
				return
			}
			from := fromList[0]
			pos := p.PositionOf(&n)
			for _, base := range strings.Split(bases, ",") {
				base = strings.TrimSpace(base)
				if base == "" {
					continue
				}
				if targets := byName[base]; len(targets) > 0 {
					rels = append(rels, types.Relationship{
						ID:           types.FingerprintRelationship(from.ID, targets[0].ID, types.RelExtends, tree.Path, pos.StartByte),
						FromSymbolID: from.ID,
						ToSymbolID:   targets[0].ID,
						Kind:         types.RelExtends,
						FilePath:     tree.Path,
						Position:     pos,
					})
				}
			}
		}
	})

	return rels, diags
}

func (p *PythonExtractor) InferTypes(symbols []types.Symbol) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		if t := declaredPythonType(s.Signature); t != "" {
			out[s.ID] = t
		} else {
			out[s.ID] = "inferred"
		}
	}
	return out
}

// declaredPythonType reads a "-> Type:" return annotation from a def
// signature string, if present.
func declaredPythonType(sig string) string {
	idx := strings.Index(sig, "->")
	if idx == -1 {
		return ""
	}
	rest := strings.TrimSpace(sig[idx+2:])
	rest = strings.TrimSuffix(rest, ":")
	return strings.TrimSpace(rest)
}

func classifyPythonCapture(captures []Capture) (tree_sitter.Node, string, bool) {
	for _, label := range []string{"function", "class", "variable"} {
		if n, ok := FindCapture(captures, label); ok {
			return n, label, true
		}
	}
	return tree_sitter.Node{}, "", false
}

func kindFromPythonLabel(label string) types.SymbolKind {
	switch label {
	case "function":
		return types.KindFunction
	case "class":
		return types.KindClass
	case "variable":
		return types.KindVariable
	default:
		return types.KindVariable
	}
}

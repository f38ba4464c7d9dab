package extractor

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/anortham/miller/internal/types"
)

// Base provides the utilities every per-language extractor composes
// rather than inherits: node-to-Position conversion, byte-range parent
// linkage, and syntactic-marker visibility inference. A language
// extractor embeds *Base and calls these directly; nothing here depends
// on any specific grammar.
type Base struct{}

// PositionOf converts a tree-sitter node's byte/point range into the
// shared Position type. The caller is responsible for passing the name
// node (not the declaration node) when the symbol's position must span
// only its identifier.
func (Base) PositionOf(n *tree_sitter.Node) types.Position {
	start := n.StartPosition()
	end := n.EndPosition()
	return types.Position{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
	}
}

// NodeText slices content to a node's byte range.
func (Base) NodeText(n *tree_sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

// InferVisibility applies the syntactic-marker rules named in the
// extractor contract: an explicit pub/export/public keyword wins; absent
// that, a leading-underscore convention (for languages that use it)
// marks the symbol private; everything else defaults to public.
func (Base) InferVisibility(name string, hasExportKeyword bool, usesUnderscoreConvention bool) types.Visibility {
	if hasExportKeyword {
		return types.VisibilityPublic
	}
	if usesUnderscoreConvention && strings.HasPrefix(name, "_") {
		return types.VisibilityPrivate
	}
	return types.VisibilityPublic
}

// AssignParents fills in ParentID for every symbol in syms by finding,
// for each symbol, the smallest enclosing byte range among the other
// symbols in the same file — the data-model invariant that a parent's
// range must strictly contain the child's range.
func (Base) AssignParents(syms []types.Symbol) {
	// Sort by range width ascending so when we scan candidates for a
	// symbol we can stop at the first (tightest) strictly-containing
	// range without a full O(n^2) scan in the common case.
	byWidth := make([]int, len(syms))
	for i, s := range syms {
		byWidth[i] = s.Position.EndByte - s.Position.StartByte
	}

	order := make([]int, len(syms))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return byWidth[order[a]] < byWidth[order[b]] })

	for _, idx := range order {
		child := syms[idx]
		bestWidth := -1
		bestParent := -1
		for cand := range syms {
			if cand == idx {
				continue
			}
			if syms[cand].FilePath != child.FilePath {
				continue
			}
			if !strictlyContains(syms[cand].Position, child.Position) {
				continue
			}
			width := syms[cand].Position.EndByte - syms[cand].Position.StartByte
			if bestParent == -1 || width < bestWidth {
				bestParent = cand
				bestWidth = width
			}
		}
		if bestParent != -1 {
			syms[idx].ParentID = syms[bestParent].ID
		}
	}
}

func strictlyContains(outer, inner types.Position) bool {
	if outer.StartByte == inner.StartByte && outer.EndByte == inner.EndByte {
		return false
	}
	return outer.StartByte <= inner.StartByte && outer.EndByte >= inner.EndByte
}

// ModuleSymbol synthesizes the file-level symbol every extractor emits
// once per file so that file-scoped relationships (imports, top-level
// uses) have a valid, existing from_symbol_id to anchor to — the data
// model has no notion of a relationship whose endpoint isn't a symbol.
func (Base) ModuleSymbol(path, language string) types.Symbol {
	id := types.FingerprintSymbol(path, path, 0, types.KindModule)
	return types.Symbol{
		ID:         id,
		Name:       path,
		Kind:       types.KindModule,
		Language:   language,
		FilePath:   path,
		Position:   types.Position{StartLine: 1, EndLine: 1},
		Visibility: types.VisibilityPublic,
	}
}

// LeadingDocComment walks backward over n's preceding siblings collecting
// contiguous comment nodes (stopping at the first non-comment, non-blank
// sibling) and joins them as the symbol's doc comment.
func (Base) LeadingDocComment(n *tree_sitter.Node, content []byte, commentKinds map[string]bool) string {
	var lines []string
	cur := n.PrevSibling()
	for cur != nil && commentKinds[cur.Kind()] {
		lines = append([]string{strings.TrimSpace(string(content[cur.StartByte():cur.EndByte()]))}, lines...)
		cur = cur.PrevSibling()
	}
	return strings.Join(lines, "\n")
}

package extractor

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Capture pairs a query capture's name with its matched node.
type Capture struct {
	Name string
	Node tree_sitter.Node
}

// WalkQuery runs query over root and invokes fn once per match with that
// match's captures. Errors from an individual match (e.g. a malformed
// node) are the caller's responsibility to recover from — WalkQuery
// itself never aborts partway through a tree.
func WalkQuery(query *tree_sitter.Query, root tree_sitter.Node, content []byte, fn func(captures []Capture)) {
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	names := query.CaptureNames()
	matches := qc.Matches(query, root, content)
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		captures := make([]Capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			captures = append(captures, Capture{Name: names[c.Index], Node: c.Node})
		}
		fn(captures)
	}
}

// FindCapture returns the first capture named name, if any.
func FindCapture(captures []Capture, name string) (tree_sitter.Node, bool) {
	for _, c := range captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return tree_sitter.Node{}, false
}

// Package syntax provides the immutable syntax tree view consumed by the
// pattern compiler and the matcher, and a tree-sitter backed provider that
// builds it from source text.
//
// A Tree owns its source buffer and every Node in it. Nodes carry a kind tag,
// a half-open byte span into the source and their ordered children; their
// text is sliced from the source on demand.
package syntax

import (
	"strings"
	"sync"
)

// Span is a half-open byte range [Start, End) into the source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// Point is a 1-based line/column position.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is one node of a syntax tree.
//
// Fields:
//
//	Kind: grammar node type (e.g. "enhanced_for_statement", "identifier", "(").
//	Span: byte range in the owning tree's source.
//	Children: ordered children, anonymous tokens included.
//	Named: false for anonymous tokens such as punctuation and keywords.
//	Extra: true for nodes the grammar allows anywhere (comments).
//	Missing: true for zero-width tokens inserted by error recovery.
type Node struct {
	Kind     string
	Span     Span
	Children []*Node
	Named    bool
	Extra    bool
	Missing  bool

	tree *Tree
}

// Text returns the source slice covered by the node.
func (n *Node) Text() string {
	if n == nil || n.tree == nil {
		return ""
	}

	return string(n.tree.Source[n.Span.Start:n.Span.End])
}

// Tree returns the tree that owns the node.
func (n *Node) Tree() *Tree {
	return n.tree
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// SignificantChildren returns the children that take part in structural
// matching: every child except extras.
func (n *Node) SignificantChildren() []*Node {
	for _, child := range n.Children {
		if child.Extra {
			return filterExtras(n.Children)
		}
	}

	return n.Children
}

func filterExtras(children []*Node) []*Node {
	out := make([]*Node, 0, len(children))

	for _, child := range children {
		if !child.Extra {
			out = append(out, child)
		}
	}

	return out
}

// Tree is a parsed source file.
type Tree struct {
	Language string
	Source   []byte
	Root     *Node

	linesOnce  sync.Once
	lineStarts []int
}

// NewTree adopts root and all of its descendants into a new tree over source.
// It is used by the tree-sitter provider and by callers building trees by hand.
func NewTree(language string, source []byte, root *Node) *Tree {
	tree := &Tree{
		Language: language,
		Source:   source,
		Root:     root,
	}

	stack := []*Node{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		current.tree = tree

		stack = append(stack, current.Children...)
	}

	return tree
}

// Slice returns the source text of [start, end).
func (t *Tree) Slice(start, end int) string {
	return string(t.Source[start:end])
}

// Position converts a byte offset to a 1-based line/column point.
// Columns count bytes.
func (t *Tree) Position(offset int) Point {
	t.linesOnce.Do(func() {
		t.lineStarts = computeLineStarts(t.Source)
	})

	line := searchLine(t.lineStarts, offset)

	return Point{Line: line + 1, Column: offset - t.lineStarts[line] + 1}
}

func computeLineStarts(source []byte) []int {
	starts := []int{0}

	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}

	return starts
}

// searchLine returns the index of the last line start <= offset.
func searchLine(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1

	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return lo
}

// Walk visits the subtree rooted at n in pre-order, left to right. When visit
// returns false the node's children are skipped.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}

	stack := []*Node{n}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(current) {
			continue
		}

		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
	}
}

// Find returns the first node in pre-order for which pred holds.
func Find(n *Node, pred func(*Node) bool) *Node {
	var found *Node

	Walk(n, func(current *Node) bool {
		if found != nil {
			return false
		}

		if pred(current) {
			found = current

			return false
		}

		return true
	})

	return found
}

// NewNode builds a named node; used with NewTree to assemble trees by hand.
func NewNode(kind string, start, end int, children ...*Node) *Node {
	return &Node{
		Kind:     kind,
		Span:     Span{Start: start, End: end},
		Children: children,
		Named:    true,
	}
}

// NewToken builds an anonymous token node such as "(" or "for".
func NewToken(kind string, start int) *Node {
	return &Node{
		Kind: kind,
		Span: Span{Start: start, End: start + len(kind)},
	}
}

// Dump renders the subtree as an indented S-expression, for debugging and tests.
func Dump(n *Node) string {
	var sb strings.Builder

	dump(&sb, n, 0)

	return sb.String()
}

func dump(sb *strings.Builder, n *Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString("(")
	sb.WriteString(n.Kind)

	if n.IsLeaf() && n.Named {
		sb.WriteString(" ")
		sb.WriteString(n.Text())
	}

	for _, child := range n.Children {
		if !child.Named {
			continue
		}

		sb.WriteString("\n")
		dump(sb, child, depth+1)
	}

	sb.WriteString(")")
}

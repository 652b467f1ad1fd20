// Package interval provides an augmented interval tree over half-open byte
// spans. It answers the two questions the rewrite engine asks of claimed
// regions: which claims overlap a span, and whether a span is entirely inside
// a single claim. Insert is O(log N); overlap queries are O(log N + k).
//
// The tree is a red-black tree ordered by (Start, End) where each node stores
// the maximum End in its subtree, enabling subtree pruning during queries.
package interval

// Span is a half-open range [Start, End) carrying an opaque Value
// (a rule index, a patch index, ...).
type Span struct {
	Start int
	End   int
	Value int
}

// Overlaps reports whether two half-open spans share at least one byte.
// Zero-width spans overlap nothing.
func (s Span) Overlaps(start, end int) bool {
	return s.Start < end && start < s.End
}

// Contains reports whether [start, end) lies inside s.
func (s Span) Contains(start, end int) bool {
	return s.Start <= start && end <= s.End
}

// Tree is an insert-only augmented interval tree.
type Tree struct {
	root *node
	size int
}

type node struct {
	span        Span
	maxEnd      int
	left, right *node
	parent      *node
	color       color
}

type color bool

const (
	red   color = false
	black color = true
)

// New creates an empty tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of spans in the tree.
func (t *Tree) Len() int {
	return t.size
}

// Clear removes all spans from the tree.
func (t *Tree) Clear() {
	t.root = nil
	t.size = 0
}

// Insert adds [start, end) with the given value.
func (t *Tree) Insert(start, end, value int) {
	n := &node{
		span:   Span{Start: start, End: end, Value: value},
		maxEnd: end,
		color:  red,
	}

	t.bstInsert(n)
	t.insertFixup(n)
	t.size++
}

// QueryOverlap returns all spans sharing at least one byte with [start, end),
// ordered by Start.
func (t *Tree) QueryOverlap(start, end int) []Span {
	if t.root == nil || start >= end {
		return nil
	}

	var results []Span

	collectOverlap(t.root, start, end, &results)

	return results
}

// Covers reports whether some single span in the tree contains [start, end).
func (t *Tree) Covers(start, end int) bool {
	for _, s := range t.QueryOverlap(start, end) {
		if s.Contains(start, end) {
			return true
		}
	}

	return false
}

// Intersects reports whether any span in the tree overlaps [start, end).
func (t *Tree) Intersects(start, end int) bool {
	if start >= end {
		return false
	}

	return anyOverlap(t.root, start, end)
}

func (t *Tree) bstInsert(n *node) {
	if t.root == nil {
		t.root = n

		return
	}

	current := t.root

	for {
		if n.span.End > current.maxEnd {
			current.maxEnd = n.span.End
		}

		if compareSpans(n.span, current.span) < 0 {
			if current.left == nil {
				current.left = n
				n.parent = current

				return
			}

			current = current.left
		} else {
			if current.right == nil {
				current.right = n
				n.parent = current

				return
			}

			current = current.right
		}
	}
}

func (t *Tree) insertFixup(n *node) {
	for n != t.root && nodeColor(n.parent) == red {
		parent := n.parent

		grandparent := parent.parent
		if grandparent == nil {
			break
		}

		n = t.insertFixupCase(n, parent, grandparent, parent == grandparent.left)
	}

	t.root.color = black
}

// insertFixupCase handles one side of the insert fixup.
// When leftCase is true, parent is grandparent.left.
func (t *Tree) insertFixupCase(n, parent, grandparent *node, leftCase bool) *node {
	uncle := childOf(grandparent, !leftCase)

	if nodeColor(uncle) == red {
		parent.color = black
		uncle.color = black
		grandparent.color = red

		return grandparent
	}

	if n == childOf(parent, !leftCase) {
		t.rotate(parent, leftCase)
		n, parent = parent, n
	}

	parent.color = black
	grandparent.color = red
	t.rotate(grandparent, !leftCase)

	return n
}

// rotate rotates left at n when left is true, right otherwise, keeping maxEnd current.
func (t *Tree) rotate(n *node, left bool) {
	var pivot *node

	if left {
		pivot = n.right
		n.right = pivot.left

		if pivot.left != nil {
			pivot.left.parent = n
		}

		pivot.left = n
	} else {
		pivot = n.left
		n.left = pivot.right

		if pivot.right != nil {
			pivot.right.parent = n
		}

		pivot.right = n
	}

	pivot.parent = n.parent

	switch {
	case n.parent == nil:
		t.root = pivot
	case n == n.parent.left:
		n.parent.left = pivot
	default:
		n.parent.right = pivot
	}

	n.parent = pivot

	recalcMaxEnd(n)
	recalcMaxEnd(pivot)
}

func collectOverlap(n *node, start, end int, results *[]Span) {
	if n == nil || n.maxEnd <= start {
		return
	}

	collectOverlap(n.left, start, end, results)

	if n.span.Overlaps(start, end) {
		*results = append(*results, n.span)
	}

	if n.span.Start >= end {
		return
	}

	collectOverlap(n.right, start, end, results)
}

func anyOverlap(n *node, start, end int) bool {
	if n == nil || n.maxEnd <= start {
		return false
	}

	if n.span.Overlaps(start, end) {
		return true
	}

	if anyOverlap(n.left, start, end) {
		return true
	}

	if n.span.Start >= end {
		return false
	}

	return anyOverlap(n.right, start, end)
}

func compareSpans(a, b Span) int {
	switch {
	case a.Start != b.Start:
		if a.Start < b.Start {
			return -1
		}

		return 1
	case a.End != b.End:
		if a.End < b.End {
			return -1
		}

		return 1
	default:
		return 0
	}
}

func nodeColor(n *node) color {
	if n == nil {
		return black
	}

	return n.color
}

func childOf(n *node, left bool) *node {
	if n == nil {
		return nil
	}

	if left {
		return n.left
	}

	return n.right
}

func recalcMaxEnd(n *node) {
	if n == nil {
		return
	}

	m := n.span.End

	if n.left != nil && n.left.maxEnd > m {
		m = n.left.maxEnd
	}

	if n.right != nil && n.right.maxEnd > m {
		m = n.right.maxEnd
	}

	n.maxEnd = m
}

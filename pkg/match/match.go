// Package match unifies a compiled pattern tree against a candidate syntax
// node and reports the captures it binds.
//
// Matching is deterministic and takes the first solution: alternation members
// are tried in declaration order, and a sibling list holds at most one
// sequence capture, so its length follows from the number of fixed elements.
package match

import (
	"slices"

	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Match reports whether root matches candidate and, if so, what it binds.
func Match(root pattern.Node, candidate *syntax.Node) (*Bindings, bool) {
	b := NewBindings()

	if !b.match(root, candidate) {
		return nil, false
	}

	return b, true
}

func (b *Bindings) match(p pattern.Node, n *syntax.Node) bool {
	switch node := p.(type) {
	case *pattern.Any:
		return true
	case *pattern.Capture:
		return b.bind(node.Name, node.Arity, []*syntax.Node{n})
	case *pattern.Literal:
		return b.matchLiteral(node, n)
	case *pattern.Alternation:
		for _, member := range node.Members {
			checkpoint := b.mark()

			if b.match(member, n) {
				return true
			}

			b.rollback(checkpoint)
		}

		return false
	default:
		return false
	}
}

func (b *Bindings) matchLiteral(p *pattern.Literal, n *syntax.Node) bool {
	if p.Kind != n.Kind {
		return false
	}

	if p.Wildcard {
		return true
	}

	if len(p.Children) == 0 {
		return p.Text == n.Text()
	}

	return b.matchSiblings(p.Children, n.SignificantChildren())
}

// matchSiblings pairs pattern elements with candidates left to right. Fixed
// elements take one candidate each; the sequence capture, if any, takes what
// the fixed elements after it leave over.
func (b *Bindings) matchSiblings(ps []pattern.Node, cs []*syntax.Node) bool {
	seq := slices.IndexFunc(ps, pattern.IsSequence)

	if seq < 0 {
		if len(ps) != len(cs) {
			return false
		}

		for i, p := range ps {
			if !b.match(p, cs[i]) {
				return false
			}
		}

		return true
	}

	fixed := len(ps) - 1
	if len(cs) < fixed {
		return false
	}

	take := len(cs) - fixed
	idx := 0

	for j, p := range ps {
		if j == seq {
			capture, _ := p.(*pattern.Capture)

			if !b.bind(capture.Name, pattern.Sequence, slices.Clone(cs[idx:idx+take])) {
				return false
			}

			idx += take

			continue
		}

		if !b.match(p, cs[idx]) {
			return false
		}

		idx++
	}

	return true
}

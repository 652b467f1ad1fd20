package rule

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/codemod/pkg/alg/interval"
	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/patch"
	"github.com/Sumatoshi-tech/codemod/pkg/rewrite"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

var errNoPattern = errors.New("rule has no pattern")

// Engine applies an ordered rule set. It holds no per-tree state and is safe
// for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine validates the rules and returns an engine for them. A template
// referencing a capture its pattern does not always bind is rejected here,
// before any tree is seen.
func NewEngine(rules []Rule) (*Engine, error) {
	for i, r := range rules {
		if r.Pattern == nil {
			return nil, &CompileError{Index: i, ID: r.ID, Err: errNoPattern}
		}

		if r.Template == nil {
			continue
		}

		err := r.Template.Check(r.Pattern)
		if err != nil {
			return nil, &CompileError{Index: i, ID: r.ID, Err: err}
		}
	}

	return &Engine{rules: rules}, nil
}

// Rules returns the engine's rules in declaration order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Apply returns every accepted match, ordered by rule index and then by
// pre-order position. The spans of the returned matches are pairwise disjoint.
func (e *Engine) Apply(tree *syntax.Tree) []Match {
	if tree == nil || tree.Root == nil {
		return nil
	}

	claims := interval.New()

	var matches []Match

	for idx := range e.rules {
		matches = e.scan(tree.Root, idx, claims, matches)
	}

	return matches
}

func (e *Engine) scan(root *syntax.Node, idx int, claims *interval.Tree, matches []Match) []Match {
	r := &e.rules[idx]
	stack := []*syntax.Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		start, end := n.Span.Start, n.Span.End
		if start >= end || claims.Covers(start, end) {
			continue
		}

		if !claims.Intersects(start, end) {
			bindings, ok := match.Match(r.Pattern.Root, n)
			if ok && (r.Guard == nil || r.Guard(bindings)) {
				claims.Insert(start, end, idx)

				matches = append(matches, Match{
					Root:      n,
					Bindings:  bindings,
					RuleIndex: idx,
					RuleID:    r.ID,
				})

				continue
			}
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}

	return matches
}

// Rewrite applies the rules and renders a patch for every match of a rule
// that has a template. Matches of report-only rules are returned without a
// patch.
func (e *Engine) Rewrite(tree *syntax.Tree) ([]patch.Patch, []Match, error) {
	matches := e.Apply(tree)
	patches := make([]patch.Patch, 0, len(matches))

	for _, m := range matches {
		r := e.rules[m.RuleIndex]
		if r.Template == nil {
			continue
		}

		p, err := rewrite.NewPatch(r.Template, m.Root, m.Bindings, r.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q at offset %d: %w", r.ID, m.Root.Span.Start, err)
		}

		patches = append(patches, p)
	}

	return patches, matches, nil
}

// Fix rewrites source in one pass and returns the new text together with the
// matches that produced it.
func (e *Engine) Fix(tree *syntax.Tree) ([]byte, []Match, error) {
	patches, matches, err := e.Rewrite(tree)
	if err != nil {
		return nil, nil, err
	}

	if len(patches) == 0 {
		return tree.Source, matches, nil
	}

	out, err := patch.Apply(tree.Source, patches)
	if err != nil {
		return nil, nil, fmt.Errorf("apply patches: %w", err)
	}

	return out, matches, nil
}

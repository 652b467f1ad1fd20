// Package rule runs an ordered set of rewrite rules over a syntax tree.
//
// Rules are applied one at a time in declaration order. Each rule scans the
// tree in pre-order; a node it matches is claimed together with its whole
// subtree, so matches never overlap. A span claimed by an earlier rule is
// never attempted by a later one, and an ancestor that merely overlaps a
// claim is skipped as a candidate while its unclaimed descendants are still
// visited.
package rule

import (
	"fmt"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/rewrite"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Guard is an extra predicate over the bindings of a structural match. A
// false result leaves the candidate unclaimed.
type Guard func(*match.Bindings) bool

// Rule pairs a pattern with an optional replacement template. A rule without
// a template only reports matches.
type Rule struct {
	ID       string
	Pattern  *pattern.Pattern
	Template *rewrite.Template
	Guard    Guard
	Message  string
}

// Match is one accepted match of one rule.
type Match struct {
	Root      *syntax.Node
	Bindings  *match.Bindings
	RuleIndex int
	RuleID    string
}

// Span returns the byte range of the matched node.
func (m Match) Span() syntax.Span {
	return m.Root.Span
}

// CompileError ties a rule authoring error to the rule that caused it.
type CompileError struct {
	Index int
	ID    string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

package rewrite

import (
	"errors"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/patch"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

var errDetachedNode = errors.New("rewrite: match root does not belong to a tree")

// NewPatch renders t for a match rooted at root and returns the patch that
// replaces the root's span.
func NewPatch(t *Template, root *syntax.Node, bindings *match.Bindings, ruleID string) (patch.Patch, error) {
	tree := root.Tree()
	if tree == nil {
		return patch.Patch{}, errDetachedNode
	}

	text, err := t.Render(bindings, LineIndent(tree.Source, root.Span.Start))
	if err != nil {
		return patch.Patch{}, err
	}

	return patch.Patch{
		Start:       root.Span.Start,
		End:         root.Span.End,
		Replacement: text,
		RuleID:      ruleID,
	}, nil
}

// LineIndent returns the leading spaces and tabs of the line containing offset.
func LineIndent(source []byte, offset int) string {
	start := offset
	for start > 0 && source[start-1] != '\n' {
		start--
	}

	end := start
	for end < len(source) && (source[end] == ' ' || source[end] == '\t') {
		end++
	}

	return string(source[start:end])
}

package pattern

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

const (
	reasonNoSpanningNode = "no single node spans the whole pattern"
	reasonEmpty          = "empty pattern"
)

// Compiler turns pattern strings into pattern trees. It is safe for
// concurrent use.
type Compiler struct {
	parser *syntax.Parser
}

// NewCompiler creates a Compiler that parses with parser; a nil parser gets
// a private one.
func NewCompiler(parser *syntax.Parser) *Compiler {
	if parser == nil {
		parser = syntax.NewParser()
	}

	return &Compiler{parser: parser}
}

// Compile parses source under the dialect of language. The pattern root is
// the deepest node whose span is exactly the trimmed pattern.
func (c *Compiler) Compile(ctx context.Context, source, language string) (*Pattern, error) {
	text, lead := trimPattern(source)

	root, err := c.compile(ctx, text, language, func(tree *syntax.Tree, base int) *syntax.Node {
		return deepestExact(tree.Root, base, base+len(text))
	})
	if err != nil {
		return nil, shiftOffset(err, lead)
	}

	return &Pattern{
		Source:   source,
		Language: language,
		Root:     root,
		Captures: collectCaptures(root),
	}, nil
}

// CompileSelector parses contextSource as a complete snippet and compiles the
// first node of kind selector inside it. It serves patterns that do not parse
// on their own, such as a class field without its class.
func (c *Compiler) CompileSelector(ctx context.Context, contextSource, selector, language string) (*Pattern, error) {
	text, lead := trimPattern(contextSource)

	root, err := c.compile(ctx, text, language, func(tree *syntax.Tree, base int) *syntax.Node {
		return firstOfKind(tree.Root, selector, base, base+len(text))
	})
	if err != nil {
		return nil, shiftOffset(err, lead)
	}

	return &Pattern{
		Source:   contextSource,
		Language: language,
		Root:     root,
		Captures: collectCaptures(root),
	}, nil
}

// Kind returns a pattern matching every node of the given kind, whatever its
// children.
func Kind(kind, language string) *Pattern {
	return &Pattern{
		Source:   kind,
		Language: language,
		Root:     &Literal{Kind: kind, Wildcard: true},
	}
}

// Alternate returns a pattern matching whatever the first matching member
// matches. A single member is returned unchanged.
func Alternate(patterns ...*Pattern) *Pattern {
	if len(patterns) == 1 {
		return patterns[0]
	}

	members := make([]Node, 0, len(patterns))
	sources := make([]string, 0, len(patterns))

	var language string

	for _, p := range patterns {
		members = append(members, p.Root)
		sources = append(sources, p.Source)
		language = p.Language
	}

	root := &Alternation{Members: members}

	return &Pattern{
		Source:   strings.Join(sources, " | "),
		Language: language,
		Root:     root,
		Captures: collectCaptures(root),
	}
}

type pickFunc func(tree *syntax.Tree, base int) *syntax.Node

func (c *Compiler) compile(ctx context.Context, text, language string, pick pickFunc) (Node, error) {
	dialect, ok := LookupDialect(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, language)
	}

	if text == "" {
		return nil, &SyntaxError{Dialect: language, Reason: reasonEmpty}
	}

	tokens := ScanMetavariables(text)

	err := checkArity(tokens)
	if err != nil {
		return nil, err
	}

	prepared := dialect.prepare(text, tokens)

	var failure *SyntaxError

	for _, wrap := range dialect.Contexts {
		tree, parseErr := c.parser.Parse(ctx, dialect.Language, []byte(wrap.Prefix+prepared+wrap.Suffix))
		if parseErr != nil {
			return nil, fmt.Errorf("pattern: %w", parseErr)
		}

		base := len(wrap.Prefix)

		candidate := &SyntaxError{Pattern: text, Dialect: language}

		if bad := syntax.FirstError(tree.Root); bad != nil {
			candidate.Offset = clamp(bad.Span.Start-base, 0, len(text))
			candidate.Reason = fmt.Sprintf("unexpected %s", describe(bad))
		} else if node := pick(tree, base); node != nil {
			b := &builder{
				text:       text,
				base:       base,
				terminator: dialect.Terminator,
				tokens:     indexTokens(tokens),
			}

			return b.root(node)
		} else {
			candidate.Reason = reasonNoSpanningNode
		}

		if failure == nil || candidate.Offset > failure.Offset {
			failure = candidate
		}
	}

	return nil, failure
}

// builder converts a parsed pattern subtree into pattern nodes.
type builder struct {
	text       string
	base       int
	terminator string
	tokens     map[int]Token
}

func (b *builder) root(n *syntax.Node) (Node, error) {
	if tok, ok := b.tokenFor(n); ok && tok.Arity == Sequence {
		return nil, &MetavariableError{
			Name:   tok.Name,
			Offset: tok.Start,
			Reason: "a sequence metavariable cannot be the whole pattern",
		}
	}

	return b.build(n)
}

func (b *builder) build(n *syntax.Node) (Node, error) {
	if tok, ok := b.tokenFor(n); ok {
		return captureFor(tok), nil
	}

	kids := n.SignificantChildren()
	if len(kids) == 0 {
		return &Literal{Kind: n.Kind, Text: b.slice(n)}, nil
	}

	children := make([]Node, 0, len(kids))
	sequences := 0

	for _, kid := range kids {
		child, err := b.build(kid)
		if err != nil {
			return nil, err
		}

		if IsSequence(child) {
			sequences++

			if sequences > 1 {
				capture, _ := child.(*Capture)

				return nil, &MetavariableError{
					Name:   capture.Name,
					Offset: kid.Span.Start - b.base,
					Reason: "more than one sequence metavariable in the same sibling list",
				}
			}
		}

		children = append(children, child)
	}

	return &Literal{Kind: n.Kind, Children: children}, nil
}

// tokenFor reports the metavariable token n consists of, optionally
// followed by the statement terminator.
func (b *builder) tokenFor(n *syntax.Node) (Token, bool) {
	start := n.Span.Start - b.base
	end := n.Span.End - b.base

	tok, ok := b.tokens[start]
	if !ok {
		return Token{}, false
	}

	if tok.End == end {
		return tok, true
	}

	if b.terminator != "" && end == tok.End+len(b.terminator) && b.text[tok.End:end] == b.terminator {
		return tok, true
	}

	return Token{}, false
}

func (b *builder) slice(n *syntax.Node) string {
	return b.text[n.Span.Start-b.base : n.Span.End-b.base]
}

func captureFor(tok Token) Node {
	switch {
	case tok.Arity == Single && tok.Anonymous():
		return &Any{}
	case tok.Anonymous():
		return &Capture{Arity: Sequence}
	default:
		return &Capture{Name: tok.Name, Arity: tok.Arity}
	}
}

func indexTokens(tokens []Token) map[int]Token {
	out := make(map[int]Token, len(tokens))
	for _, tok := range tokens {
		out[tok.Start] = tok
	}

	return out
}

// checkArity rejects a name used both as $NAME and $$$NAME.
func checkArity(tokens []Token) error {
	arity := make(map[string]Arity, len(tokens))

	for _, tok := range tokens {
		if tok.Anonymous() {
			continue
		}

		prev, seen := arity[tok.Name]
		if !seen {
			arity[tok.Name] = tok.Arity

			continue
		}

		if prev != tok.Arity {
			return &MetavariableError{
				Name:   tok.Name,
				Offset: tok.Start,
				Reason: fmt.Sprintf("used as %s after being used as %s", tok.Arity, prev),
			}
		}
	}

	return nil
}

// deepestExact returns the deepest non-extra node spanning exactly [start, end).
func deepestExact(root *syntax.Node, start, end int) *syntax.Node {
	var found *syntax.Node

	syntax.Walk(root, func(n *syntax.Node) bool {
		if n.Span.Start > start || n.Span.End < end {
			return false
		}

		if !n.Extra && n.Span.Start == start && n.Span.End == end {
			found = n
		}

		return true
	})

	return found
}

// firstOfKind returns the first named node of kind inside [start, end).
func firstOfKind(root *syntax.Node, kind string, start, end int) *syntax.Node {
	return syntax.Find(root, func(n *syntax.Node) bool {
		return n.Named && n.Kind == kind && n.Span.Start >= start && n.Span.End <= end
	})
}

func describe(n *syntax.Node) string {
	if n.Missing {
		return fmt.Sprintf("missing %q", n.Kind)
	}

	text := n.Text()
	if len(text) > 20 {
		text = text[:20] + "..."
	}

	return fmt.Sprintf("%q", text)
}

func trimPattern(source string) (string, int) {
	lead := len(source) - len(strings.TrimLeftFunc(source, unicode.IsSpace))

	return strings.TrimSpace(source), lead
}

// shiftOffset moves error offsets from the trimmed pattern back to the source.
func shiftOffset(err error, lead int) error {
	if lead == 0 {
		return err
	}

	var (
		syntaxErr *SyntaxError
		metaErr   *MetavariableError
	)

	switch {
	case errors.As(err, &syntaxErr):
		syntaxErr.Offset += lead
	case errors.As(err, &metaErr):
		metaErr.Offset += lead
	}

	return err
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

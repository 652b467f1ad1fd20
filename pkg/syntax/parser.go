package syntax

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// KindError is the node kind tree-sitter uses for unparsable regions.
const KindError = "ERROR"

// Sentinel errors for provider operations.
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	errNoRootNode          = errors.New("syntax: no root node")
	errPoolType            = errors.New("syntax: unexpected parser pool type")
)

// Parser turns source text into syntax trees. It keeps a pool of tree-sitter
// parsers per language and is safe for concurrent use.
type Parser struct {
	pools sync.Map // language name -> *sync.Pool of *sitter.Parser.
}

// NewParser creates a Parser for all registered languages.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses source as the named language. The returned tree references
// source directly; callers must not mutate it afterwards.
func (p *Parser) Parse(ctx context.Context, language string, source []byte) (*Tree, error) {
	pool, err := p.pool(language)
	if err != nil {
		return nil, err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tsTree, err := tsParser.ParseString(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("syntax: failed to parse %s: %w", language, err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	return NewTree(language, source, convert(root)), nil
}

func (p *Parser) pool(language string) (*sync.Pool, error) {
	if cached, ok := p.pools.Load(language); ok {
		pool, castOK := cached.(*sync.Pool)
		if castOK {
			return pool, nil
		}
	}

	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	actual, _ := p.pools.LoadOrStore(language, pool)

	stored, ok := actual.(*sync.Pool)
	if !ok {
		return nil, errPoolType
	}

	return stored, nil
}

// convert copies a tree-sitter subtree into Nodes so the C tree can be released.
func convert(tsNode sitter.Node) *Node {
	out := &Node{
		Kind:    tsNode.Type(),
		Span:    Span{Start: int(tsNode.StartByte()), End: int(tsNode.EndByte())},
		Named:   tsNode.IsNamed(),
		Extra:   tsNode.IsExtra(),
		Missing: tsNode.IsMissing(),
	}

	count := tsNode.ChildCount()
	if count == 0 {
		return out
	}

	out.Children = make([]*Node, 0, count)

	for idx := range count {
		child := tsNode.Child(idx)
		if child.IsNull() {
			continue
		}

		out.Children = append(out.Children, convert(child))
	}

	return out
}

// FirstError returns the first ERROR or missing node in pre-order, or nil when
// the subtree parsed cleanly.
func FirstError(n *Node) *Node {
	return Find(n, func(current *Node) bool {
		return current.Kind == KindError || current.Missing
	})
}

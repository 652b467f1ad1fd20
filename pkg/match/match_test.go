package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

const javaSource = `class A {
    void m(List<String> items, List<String> result) {
        for (String item : items) {
            if (item.startsWith("a")) {
                result.add(item.toUpperCase());
            }
        }
        for (String word : items) {
            // copy
            result.add(word);
            count++;
        }
        check(x == x, x == y);
        foo(a, b, c);
        foo();
        foo(/* only */ a);
        bar(a + 2);
    }
}
`

func parseJava(t *testing.T) *syntax.Tree {
	t.Helper()

	tree, err := syntax.NewParser().Parse(context.Background(), syntax.LangJava, []byte(javaSource))
	require.NoError(t, err)
	require.Nil(t, syntax.FirstError(tree.Root))

	return tree
}

func compile(t *testing.T, source string) pattern.Node {
	t.Helper()

	p, err := pattern.NewCompiler(nil).Compile(context.Background(), source, syntax.LangJava)
	require.NoError(t, err)

	return p.Root
}

func nodesOfKind(tree *syntax.Tree, kind string) []*syntax.Node {
	var out []*syntax.Node

	syntax.Walk(tree.Root, func(n *syntax.Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}

		return true
	})

	return out
}

func nodeWithText(t *testing.T, tree *syntax.Tree, kind, text string) *syntax.Node {
	t.Helper()

	found := syntax.Find(tree.Root, func(n *syntax.Node) bool {
		return n.Kind == kind && n.Text() == text
	})
	require.NotNil(t, found, "%s %q", kind, text)

	return found
}

func TestMatch_FilterLoop(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	loops := nodesOfKind(tree, "enhanced_for_statement")
	require.Len(t, loops, 2)

	root := compile(t, "for ($T $ITEM : $SRC) { if ($COND) { $TARGET.add($EXPR); } }")

	bindings, ok := Match(root, loops[0])
	require.True(t, ok)

	assert.Equal(t, []string{"T", "ITEM", "SRC", "COND", "TARGET", "EXPR"}, bindings.Names())
	assert.Equal(t, map[string]string{
		"T":      "String",
		"ITEM":   "item",
		"SRC":    "items",
		"COND":   `item.startsWith("a")`,
		"TARGET": "result",
		"EXPR":   "item.toUpperCase()",
	}, bindings.Texts())

	_, ok = Match(root, loops[1])
	assert.False(t, ok)
}

func TestMatch_MapLoopRejectsFilterLoop(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	loops := nodesOfKind(tree, "enhanced_for_statement")

	_, ok := Match(compile(t, "for ($T $ITEM : $SRC) { $TARGET.add($EXPR); }"), loops[0])
	assert.False(t, ok)
}

func TestMatch_SequenceStatements(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	loops := nodesOfKind(tree, "enhanced_for_statement")

	bindings, ok := Match(compile(t, "for ($T $ITEM : $SRC) { $$$BODY; }"), loops[1])
	require.True(t, ok)

	body, ok := bindings.Get("BODY")
	require.True(t, ok)
	assert.Equal(t, pattern.Sequence, body.Arity)
	require.Len(t, body.Nodes, 2)
	assert.Equal(t, "result.add(word);", body.Nodes[0].Text())
	assert.Equal(t, "count++;", body.Nodes[1].Text())

	text, ok := bindings.Text("BODY")
	require.True(t, ok)
	assert.Equal(t, "result.add(word);\n            count++;", text)
}

func TestMatch_ConsistentCaptures(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	root := compile(t, "$A == $A")

	_, ok := Match(root, nodeWithText(t, tree, "binary_expression", "x == x"))
	assert.True(t, ok)

	_, ok = Match(root, nodeWithText(t, tree, "binary_expression", "x == y"))
	assert.False(t, ok)
}

func TestMatch_SequenceArguments(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	root := compile(t, "foo($$$ARGS)")

	bindings, ok := Match(root, nodeWithText(t, tree, "method_invocation", "foo(a, b, c)"))
	require.True(t, ok)

	text, _ := bindings.Text("ARGS")
	assert.Equal(t, "a, b, c", text)

	bindings, ok = Match(root, nodeWithText(t, tree, "method_invocation", "foo()"))
	require.True(t, ok)

	args, ok := bindings.Get("ARGS")
	require.True(t, ok)
	assert.Empty(t, args.Nodes)
	assert.Empty(t, args.Text())

	_, ok = args.Span()
	assert.False(t, ok)
}

func TestMatch_SequenceAfterFixed(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)

	bindings, ok := Match(compile(t, "foo($FIRST, $$$REST)"), nodeWithText(t, tree, "method_invocation", "foo(a, b, c)"))
	require.True(t, ok)

	first, _ := bindings.Text("FIRST")
	rest, _ := bindings.Text("REST")
	assert.Equal(t, "a", first)
	assert.Equal(t, "b, c", rest)
}

func TestMatch_CandidateCommentsIgnored(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)

	bindings, ok := Match(compile(t, "foo($X)"), nodeWithText(t, tree, "method_invocation", "foo(/* only */ a)"))
	require.True(t, ok)

	text, _ := bindings.Text("X")
	assert.Equal(t, "a", text)
}

func TestMatch_LeafTextMismatch(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)

	_, ok := Match(compile(t, "bar($$$)"), nodeWithText(t, tree, "method_invocation", "foo()"))
	assert.False(t, ok)
}

func TestMatch_AlternationRollback(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	root := &pattern.Alternation{Members: []pattern.Node{
		compile(t, "$X + 1"),
		compile(t, "$Y + $Z"),
	}}

	bindings, ok := Match(root, nodeWithText(t, tree, "binary_expression", "a + 2"))
	require.True(t, ok)

	assert.Equal(t, []string{"Y", "Z"}, bindings.Names())

	_, ok = bindings.Get("X")
	assert.False(t, ok)
}

func TestMatch_Wildcard(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)
	root := pattern.Kind("enhanced_for_statement", syntax.LangJava).Root

	for _, loop := range nodesOfKind(tree, "enhanced_for_statement") {
		bindings, ok := Match(root, loop)
		require.True(t, ok)
		assert.Zero(t, bindings.Len())
	}

	_, ok := Match(root, tree.Root)
	assert.False(t, ok)
}

func TestMatch_Any(t *testing.T) {
	t.Parallel()

	tree := parseJava(t)

	_, ok := Match(compile(t, "bar($_)"), nodeWithText(t, tree, "method_invocation", "bar(a + 2)"))
	assert.True(t, ok)
}

// Hand-built trees exercise the sibling algorithm without a grammar.
func TestMatchSiblings_FewerCandidatesThanFixed(t *testing.T) {
	t.Parallel()

	source := []byte("[a]")
	list := syntax.NewNode("list", 0, 3,
		syntax.NewToken("[", 0),
		syntax.NewNode("id", 1, 2),
		syntax.NewToken("]", 2),
	)
	syntax.NewTree("test", source, list)

	p := &pattern.Literal{Kind: "list", Children: []pattern.Node{
		&pattern.Literal{Kind: "[", Text: "["},
		&pattern.Capture{Name: "A", Arity: pattern.Single},
		&pattern.Capture{Name: "B", Arity: pattern.Single},
		&pattern.Capture{Name: "REST", Arity: pattern.Sequence},
		&pattern.Literal{Kind: "]", Text: "]"},
	}}

	_, ok := Match(p, list)
	assert.False(t, ok)
}

func TestMatchSiblings_SequenceInMiddle(t *testing.T) {
	t.Parallel()

	source := []byte("[a b c d]")
	list := syntax.NewNode("list", 0, 9,
		syntax.NewToken("[", 0),
		syntax.NewNode("id", 1, 2),
		syntax.NewNode("id", 3, 4),
		syntax.NewNode("id", 5, 6),
		syntax.NewNode("id", 7, 8),
		syntax.NewToken("]", 8),
	)
	syntax.NewTree("test", source, list)

	p := &pattern.Literal{Kind: "list", Children: []pattern.Node{
		&pattern.Literal{Kind: "[", Text: "["},
		&pattern.Capture{Name: "FIRST", Arity: pattern.Single},
		&pattern.Capture{Name: "MID", Arity: pattern.Sequence},
		&pattern.Capture{Name: "LAST", Arity: pattern.Single},
		&pattern.Literal{Kind: "]", Text: "]"},
	}}

	bindings, ok := Match(p, list)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"FIRST": "a", "MID": "b c", "LAST": "d"}, bindings.Texts())

	mid, _ := bindings.Get("MID")
	span, ok := mid.Span()
	require.True(t, ok)
	assert.Equal(t, syntax.Span{Start: 3, End: 6}, span)
}

func TestMatchSiblings_LengthMismatch(t *testing.T) {
	t.Parallel()

	source := []byte("[a b]")
	list := syntax.NewNode("list", 0, 5,
		syntax.NewToken("[", 0),
		syntax.NewNode("id", 1, 2),
		syntax.NewNode("id", 3, 4),
		syntax.NewToken("]", 4),
	)
	syntax.NewTree("test", source, list)

	p := &pattern.Literal{Kind: "list", Children: []pattern.Node{
		&pattern.Literal{Kind: "[", Text: "["},
		&pattern.Any{},
		&pattern.Literal{Kind: "]", Text: "]"},
	}}

	_, ok := Match(p, list)
	assert.False(t, ok)
}

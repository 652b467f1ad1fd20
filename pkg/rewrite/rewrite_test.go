package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/patch"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

const (
	loopPattern  = "for ($T $ITEM : $SRC) { $TARGET.add($EXPR); }"
	loopTemplate = "$SRC.stream().map($ITEM -> $EXPR).forEach($ITEM -> $TARGET.add($ITEM));"
	javaSource   = `class A {
    void m() {
        for (String s : names) {
            lengths.add(s.length());
        }
        call(a, b, c);
    }
}
`
)

func compileJava(t *testing.T, source string) *pattern.Pattern {
	t.Helper()

	p, err := pattern.NewCompiler(nil).Compile(context.Background(), source, syntax.LangJava)
	require.NoError(t, err)

	return p
}

func matchFirst(t *testing.T, p *pattern.Pattern, kind string) (*syntax.Node, *match.Bindings) {
	t.Helper()

	tree, err := syntax.NewParser().Parse(context.Background(), syntax.LangJava, []byte(javaSource))
	require.NoError(t, err)

	var bindings *match.Bindings

	node := syntax.Find(tree.Root, func(n *syntax.Node) bool {
		if n.Kind != kind {
			return false
		}

		b, ok := match.Match(p.Root, n)
		bindings = b

		return ok
	})
	require.NotNil(t, node)

	return node, bindings
}

func TestParseTemplate_References(t *testing.T) {
	t.Parallel()

	tmpl := ParseTemplate(loopTemplate)

	assert.Equal(t, []string{"SRC", "ITEM", "EXPR", "TARGET"}, tmpl.References())
	assert.Equal(t, loopTemplate, tmpl.Source)
}

func TestParseTemplate_AnonymousStaysLiteral(t *testing.T) {
	t.Parallel()

	tmpl := ParseTemplate("keep($_, $$$)")

	assert.Empty(t, tmpl.References())

	out, err := tmpl.Render(match.NewBindings(), "")
	require.NoError(t, err)
	assert.Equal(t, "keep($_, $$$)", out)
}

func TestTemplate_Check(t *testing.T) {
	t.Parallel()

	p := compileJava(t, loopPattern)

	require.NoError(t, ParseTemplate(loopTemplate).Check(p))

	err := ParseTemplate("$SRC.forEach($COND)").Check(p)

	var unbound *UnboundCaptureError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "COND", unbound.Name)
	assert.Equal(t, 13, unbound.Offset)
}

func TestTemplate_Render(t *testing.T) {
	t.Parallel()

	p := compileJava(t, loopPattern)
	_, bindings := matchFirst(t, p, "enhanced_for_statement")

	out, err := ParseTemplate(loopTemplate).Render(bindings, "    ")
	require.NoError(t, err)
	assert.Equal(t, "names.stream().map(s -> s.length()).forEach(s -> lengths.add(s));", out)
}

func TestTemplate_RenderSequence(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "call($FIRST, $$$REST)")
	_, bindings := matchFirst(t, p, "method_invocation")

	out, err := ParseTemplate("call($$$REST, $FIRST)").Render(bindings, "")
	require.NoError(t, err)
	assert.Equal(t, "call(b, c, a)", out)
}

func TestTemplate_RenderUnbound(t *testing.T) {
	t.Parallel()

	_, err := ParseTemplate("$MISSING").Render(match.NewBindings(), "")

	var unbound *UnboundCaptureError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "MISSING", unbound.Name)
}

func TestTemplate_RenderIndentsTemplateNewlinesOnly(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "for ($T $ITEM : $SRC) { $$$BODY; }")
	_, bindings := matchFirst(t, p, "enhanced_for_statement")

	out, err := ParseTemplate("$SRC.forEach($ITEM -> {\n    $$$BODY\n});").Render(bindings, "        ")
	require.NoError(t, err)
	assert.Equal(t, "names.forEach(s -> {\n            lengths.add(s.length());\n        });", out)
}

func TestNewPatch(t *testing.T) {
	t.Parallel()

	p := compileJava(t, loopPattern)
	root, bindings := matchFirst(t, p, "enhanced_for_statement")

	got, err := NewPatch(ParseTemplate(loopTemplate), root, bindings, "map-loop")
	require.NoError(t, err)

	assert.Equal(t, patch.Patch{
		Start:       root.Span.Start,
		End:         root.Span.End,
		Replacement: "names.stream().map(s -> s.length()).forEach(s -> lengths.add(s));",
		RuleID:      "map-loop",
	}, got)
}

func TestNewPatch_DetachedNode(t *testing.T) {
	t.Parallel()

	_, err := NewPatch(ParseTemplate("x"), syntax.NewNode("orphan", 0, 1), match.NewBindings(), "r")
	require.Error(t, err)
}

func TestLineIndent(t *testing.T) {
	t.Parallel()

	source := []byte("a\n    b = c;\n\tx\n")

	assert.Empty(t, LineIndent(source, 0))
	assert.Equal(t, "    ", LineIndent(source, 4))
	assert.Equal(t, "    ", LineIndent(source, 10))
	assert.Equal(t, "\t", LineIndent(source, 15))
}

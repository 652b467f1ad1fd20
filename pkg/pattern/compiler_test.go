package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

const (
	filterLoop = "for ($T $ITEM : $SRC) { if ($COND) { $TARGET.add($EXPR); } }"
	mapLoop    = "for ($T $ITEM : $SRC) { $TARGET.add($EXPR); }"
)

func compileJava(t *testing.T, source string) *Pattern {
	t.Helper()

	p, err := NewCompiler(nil).Compile(context.Background(), source, syntax.LangJava)
	require.NoError(t, err)

	return p
}

func TestCompile_JavaLoop(t *testing.T) {
	t.Parallel()

	p := compileJava(t, filterLoop)

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "enhanced_for_statement", root.Kind)
	assert.Equal(t, []CaptureInfo{
		{Name: "T", Arity: Single},
		{Name: "ITEM", Arity: Single},
		{Name: "SRC", Arity: Single},
		{Name: "COND", Arity: Single},
		{Name: "TARGET", Arity: Single},
		{Name: "EXPR", Arity: Single},
	}, p.Captures)
	assert.Equal(t, syntax.LangJava, p.Language)
	assert.Equal(t, filterLoop, p.Source)
}

func TestCompile_SingleCaptureRoot(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "$X")

	assert.Equal(t, &Capture{Name: "X", Arity: Single}, p.Root)
}

func TestCompile_SequenceArguments(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "log.info($$$ARGS)")

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "method_invocation", root.Kind)
	assert.Equal(t, []CaptureInfo{{Name: "ARGS", Arity: Sequence}}, p.Captures)

	args, ok := root.Children[len(root.Children)-1].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "argument_list", args.Kind)
	require.Len(t, args.Children, 3)
	assert.Equal(t, &Capture{Name: "ARGS", Arity: Sequence}, args.Children[1])
}

func TestCompile_TerminatedSequenceStatement(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "for ($T $ITEM : $SRC) { $$$BODY; }")

	info, ok := p.Capture("BODY")
	require.True(t, ok)
	assert.Equal(t, Sequence, info.Arity)
}

func TestCompile_AnyAndLeafText(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "$_ + 1")

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "binary_expression", root.Kind)
	require.Len(t, root.Children, 3)
	assert.Equal(t, &Any{}, root.Children[0])
	assert.Equal(t, &Literal{Kind: "+", Text: "+"}, root.Children[1])
	assert.Equal(t, &Literal{Kind: "decimal_integer_literal", Text: "1"}, root.Children[2])
	assert.Empty(t, p.Captures)
}

func TestCompile_CommentsDropped(t *testing.T) {
	t.Parallel()

	p := compileJava(t, "foo(/* any */ $X)")

	root, ok := p.Root.(*Literal)
	require.True(t, ok)

	args, ok := root.Children[len(root.Children)-1].(*Literal)
	require.True(t, ok)
	require.Len(t, args.Children, 3)
	assert.Equal(t, &Capture{Name: "X", Arity: Single}, args.Children[1])
}

func TestCompile_GoExpando(t *testing.T) {
	t.Parallel()

	p, err := NewCompiler(nil).Compile(context.Background(), "fmt.Println($$$ARGS)", syntax.LangGo)
	require.NoError(t, err)

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "call_expression", root.Kind)
	assert.Equal(t, []CaptureInfo{{Name: "ARGS", Arity: Sequence}}, p.Captures)
}

func TestCompile_PythonExpando(t *testing.T) {
	t.Parallel()

	p, err := NewCompiler(nil).Compile(context.Background(), "print($X)", syntax.LangPython)
	require.NoError(t, err)

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "call", root.Kind)
	assert.True(t, p.Binds("X"))
}

func TestCompile_SequenceRoot(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "$$$BODY", syntax.LangJava)

	var metaErr *MetavariableError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "BODY", metaErr.Name)
}

func TestCompile_TwoSequencesInOneList(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "foo($$$A, $$$B)", syntax.LangJava)

	var metaErr *MetavariableError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "B", metaErr.Name)
}

func TestCompile_ConflictingArity(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "foo($X, $$$X)", syntax.LangJava)

	var metaErr *MetavariableError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "X", metaErr.Name)
	assert.Equal(t, 8, metaErr.Offset)
}

func TestCompile_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "  for (", syntax.LangJava)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, syntax.LangJava, syntaxErr.Dialect)
	assert.GreaterOrEqual(t, syntaxErr.Offset, 2)
	assert.NotEmpty(t, syntaxErr.Reason)
}

func TestCompile_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "   ", syntax.LangJava)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, reasonEmpty, syntaxErr.Reason)
}

func TestCompile_UnknownDialect(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).Compile(context.Background(), "MOVE A TO B", "cobol")
	require.ErrorIs(t, err, ErrUnknownDialect)
}

func TestCompileSelector(t *testing.T) {
	t.Parallel()

	p, err := NewCompiler(nil).CompileSelector(context.Background(),
		"class A { private int $F = $INIT; }", "field_declaration", syntax.LangJava)
	require.NoError(t, err)

	root, ok := p.Root.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "field_declaration", root.Kind)
	assert.True(t, p.Binds("F"))
	assert.True(t, p.Binds("INIT"))
}

func TestCompileSelector_MissingKind(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(nil).CompileSelector(context.Background(),
		"class A {}", "field_declaration", syntax.LangJava)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestKind(t *testing.T) {
	t.Parallel()

	p := Kind("enhanced_for_statement", syntax.LangJava)

	assert.Equal(t, &Literal{Kind: "enhanced_for_statement", Wildcard: true}, p.Root)
	assert.Empty(t, p.Captures)
	assert.Equal(t, "(enhanced_for_statement ...)", p.String())
}

func TestAlternate_Binds(t *testing.T) {
	t.Parallel()

	filter := compileJava(t, filterLoop)
	plain := compileJava(t, mapLoop)

	p := Alternate(filter, plain)

	alt, ok := p.Root.(*Alternation)
	require.True(t, ok)
	assert.Len(t, alt.Members, 2)
	assert.True(t, p.Binds("EXPR"))
	assert.False(t, p.Binds("COND"))

	_, ok = p.Capture("COND")
	assert.True(t, ok)

	assert.Same(t, filter, Alternate(filter))
}

func TestDialects(t *testing.T) {
	t.Parallel()

	assert.Equal(t, syntax.Languages(), Dialects())

	d, ok := LookupDialect(syntax.LangJava)
	require.True(t, ok)
	assert.Equal(t, ";", d.Terminator)
}

func TestDialect_Prepare(t *testing.T) {
	t.Parallel()

	d, ok := LookupDialect(syntax.LangGo)
	require.True(t, ok)

	text := "f($X, $$$REST, $foo)"
	assert.Equal(t, "f(_X, ___REST, $foo)", d.prepare(text, ScanMetavariables(text)))
}

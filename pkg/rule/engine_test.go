package rule

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/rewrite"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

const (
	filterLoopPattern  = "for ($T $ITEM : $SRC) { if ($COND) { $TARGET.add($EXPR); } }"
	filterLoopTemplate = "$SRC.stream().filter($ITEM -> $COND).map($ITEM -> $EXPR).forEach($ITEM -> $TARGET.add($ITEM));"
	mapLoopPattern     = "for ($T $ITEM : $SRC) { $TARGET.add($EXPR); }"
	mapLoopTemplate    = "$SRC.stream().map($ITEM -> $EXPR).forEach($ITEM -> $TARGET.add($ITEM));"
)

func compileJava(t *testing.T, source string) *pattern.Pattern {
	t.Helper()

	p, err := pattern.NewCompiler(nil).Compile(context.Background(), source, syntax.LangJava)
	require.NoError(t, err)

	return p
}

func parseJava(t *testing.T, source []byte) *syntax.Tree {
	t.Helper()

	tree, err := syntax.NewParser().Parse(context.Background(), syntax.LangJava, source)
	require.NoError(t, err)
	require.Nil(t, syntax.FirstError(tree.Root))

	return tree
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", "streams", name))
	require.NoError(t, err)

	return data
}

func streamEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine([]Rule{
		{
			ID:       "filter-map-loop",
			Pattern:  compileJava(t, filterLoopPattern),
			Template: rewrite.ParseTemplate(filterLoopTemplate),
		},
		{
			ID:       "map-loop",
			Pattern:  compileJava(t, mapLoopPattern),
			Template: rewrite.ParseTemplate(mapLoopTemplate),
		},
	})
	require.NoError(t, err)

	return engine
}

func TestEngine_FixStreams(t *testing.T) {
	t.Parallel()

	engine := streamEngine(t)
	tree := parseJava(t, readFixture(t, "input.java"))

	out, matches, err := engine.Fix(tree)
	require.NoError(t, err)

	assert.Equal(t, string(readFixture(t, "expected.java")), string(out))

	require.Len(t, matches, 2)
	assert.Equal(t, "filter-map-loop", matches[0].RuleID)
	assert.Equal(t, 0, matches[0].RuleIndex)
	assert.Equal(t, "map-loop", matches[1].RuleID)
	assert.Equal(t, 1, matches[1].RuleIndex)
	assert.Equal(t, syntax.Point{Line: 11, Column: 9}, tree.Position(matches[0].Span().Start))
	assert.Equal(t, syntax.Point{Line: 21, Column: 9}, tree.Position(matches[1].Span().Start))
}

func TestEngine_Idempotent(t *testing.T) {
	t.Parallel()

	engine := streamEngine(t)

	first, _, err := engine.Fix(parseJava(t, readFixture(t, "input.java")))
	require.NoError(t, err)

	second, matches, err := engine.Fix(parseJava(t, first))
	require.NoError(t, err)

	assert.Empty(t, matches)
	assert.Equal(t, string(first), string(second))
}

func TestEngine_NoMatchLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	engine := streamEngine(t)
	source := []byte("class A {\n    int f() { return 1; }\n}\n")

	out, matches, err := engine.Fix(parseJava(t, source))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, string(source), string(out))
}

func TestEngine_DisjointWithinRule(t *testing.T) {
	t.Parallel()

	source := []byte(`class A {
    void m() {
        for (String a : outer) {
            for (String b : inner) {
                sink.add(b);
            }
        }
    }
}
`)

	engine, err := NewEngine([]Rule{{
		ID:      "loops",
		Pattern: pattern.Kind("enhanced_for_statement", syntax.LangJava),
	}})
	require.NoError(t, err)

	matches := engine.Apply(parseJava(t, source))
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Root.Text(), "outer")
}

func TestEngine_FirstRuleWins(t *testing.T) {
	t.Parallel()

	source := []byte("class A {\n    void m() {\n        f(g(x));\n        f(y);\n    }\n}\n")

	engine, err := NewEngine([]Rule{
		{ID: "inner", Pattern: compileJava(t, "g($X)"), Template: rewrite.ParseTemplate("h($X)")},
		{ID: "outer", Pattern: compileJava(t, "f($X)"), Template: rewrite.ParseTemplate("k($X)")},
	})
	require.NoError(t, err)

	out, matches, err := engine.Fix(parseJava(t, source))
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "g(x)", matches[0].Root.Text())
	assert.Equal(t, "f(y)", matches[1].Root.Text())
	assert.Equal(t, "class A {\n    void m() {\n        f(h(x));\n        k(y);\n    }\n}\n", string(out))
}

func TestEngine_PartialOverlapStillVisitsDescendants(t *testing.T) {
	t.Parallel()

	source := []byte("class A {\n    void m() {\n        f(g(1), g(2));\n    }\n}\n")

	engine, err := NewEngine([]Rule{
		{ID: "first-arg", Pattern: compileJava(t, "g(1)")},
		{ID: "calls", Pattern: compileJava(t, "g($X)")},
	})
	require.NoError(t, err)

	matches := engine.Apply(parseJava(t, source))
	require.Len(t, matches, 2)
	assert.Equal(t, "g(1)", matches[0].Root.Text())
	assert.Equal(t, "g(2)", matches[1].Root.Text())
}

func TestEngine_GuardFalseDoesNotConsume(t *testing.T) {
	t.Parallel()

	source := []byte("class A {\n    void m() {\n        f(f(1));\n    }\n}\n")

	onlyLiteral := func(b *match.Bindings) bool {
		text, _ := b.Text("X")

		return text == "1"
	}

	engine, err := NewEngine([]Rule{{
		ID:       "guarded",
		Pattern:  compileJava(t, "f($X)"),
		Template: rewrite.ParseTemplate("g($X)"),
		Guard:    onlyLiteral,
	}})
	require.NoError(t, err)

	out, matches, err := engine.Fix(parseJava(t, source))
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "f(1)", matches[0].Root.Text())
	assert.Contains(t, string(out), "f(g(1));")
}

func TestEngine_ReportOnlyRule(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{{ID: "scan", Pattern: compileJava(t, mapLoopPattern)}})
	require.NoError(t, err)

	patches, matches, err := engine.Rewrite(parseJava(t, readFixture(t, "input.java")))
	require.NoError(t, err)
	assert.Empty(t, patches)
	assert.Len(t, matches, 1)
}

func TestNewEngine_UnboundTemplate(t *testing.T) {
	t.Parallel()

	_, err := NewEngine([]Rule{
		{ID: "ok", Pattern: compileJava(t, mapLoopPattern), Template: rewrite.ParseTemplate(mapLoopTemplate)},
		{ID: "bad", Pattern: compileJava(t, mapLoopPattern), Template: rewrite.ParseTemplate("$COND")},
	})

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, 1, compileErr.Index)
	assert.Equal(t, "bad", compileErr.ID)

	var unbound *rewrite.UnboundCaptureError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "COND", unbound.Name)
}

func TestNewEngine_MissingPattern(t *testing.T) {
	t.Parallel()

	_, err := NewEngine([]Rule{{ID: "empty"}})

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, 0, compileErr.Index)
}

func TestEngine_ApplyNilTree(t *testing.T) {
	t.Parallel()

	assert.Empty(t, streamEngine(t).Apply(nil))
}

func TestConstraints(t *testing.T) {
	t.Parallel()

	source := []byte("class A {\n    void m() {\n        f(alpha);\n        f(beta);\n        f(1);\n    }\n}\n")

	guard := Constraints(map[string]Constraint{
		"X": {Regex: regexp.MustCompile(`^[a-z]`), NotRegex: regexp.MustCompile(`^beta$`), Kind: "identifier"},
	})

	engine, err := NewEngine([]Rule{{ID: "f", Pattern: compileJava(t, "f($X)"), Guard: guard}})
	require.NoError(t, err)

	matches := engine.Apply(parseJava(t, source))
	require.Len(t, matches, 1)
	assert.Equal(t, "f(alpha)", matches[0].Root.Text())
}

func TestConstraints_UnboundFails(t *testing.T) {
	t.Parallel()

	guard := Constraints(map[string]Constraint{"MISSING": {}})

	assert.False(t, guard(match.NewBindings()))
	assert.Nil(t, Constraints(nil))
}

func TestAll(t *testing.T) {
	t.Parallel()

	yes := func(*match.Bindings) bool { return true }
	no := func(*match.Bindings) bool { return false }

	assert.Nil(t, All(nil, nil))
	assert.True(t, All(nil, yes)(nil))
	assert.False(t, All(yes, no)(nil))
}

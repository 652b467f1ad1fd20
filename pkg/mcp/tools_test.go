package mcp

import (
	"context"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRules = `rules:
  - id: println
    language: go
    rule:
      pattern: "fmt.Println($$$ARGS)"
    fix: "slog.Info($$$ARGS)"
`

func TestValidateCodeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input CodeInput
		want  error
	}{
		{name: "valid", input: CodeInput{Code: "x", Language: "go", Rules: validRules}},
		{name: "empty code", input: CodeInput{Language: "go", Rules: validRules}, want: ErrEmptyCode},
		{name: "empty language", input: CodeInput{Code: "x", Rules: validRules}, want: ErrEmptyLanguage},
		{name: "empty rules", input: CodeInput{Code: "x", Language: "go"}, want: ErrEmptyRules},
		{
			name:  "code too large",
			input: CodeInput{Code: strings.Repeat("a", MaxCodeInputBytes+1), Language: "go", Rules: validRules},
			want:  ErrCodeTooLarge,
		},
		{
			name:  "rules too large",
			input: CodeInput{Code: "x", Language: "go", Rules: strings.Repeat("#", MaxRulesInputBytes+1)},
			want:  ErrRulesTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateCodeInput(tt.input)
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandleRewrite_Unchanged(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})
	code := "package main\n\nfunc main() {}\n"

	result, output, err := srv.handleRewrite(context.Background(), &mcpsdk.CallToolRequest{}, CodeInput{
		Code:     code,
		Language: "go",
		Rules:    validRules,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	res, ok := output.Data.(RewriteResult)
	require.True(t, ok)
	assert.False(t, res.Changed)
	assert.Equal(t, code, res.Output)
	assert.Empty(t, res.Diff)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
}

func TestHandleRewrite_DefaultPath(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	_, output, err := srv.handleRewrite(context.Background(), &mcpsdk.CallToolRequest{}, CodeInput{
		Code:     "package main\n\nfunc main() {\n\tfmt.Println(\"hi\", n)\n}\n",
		Language: "golang",
		Rules:    validRules,
	})
	require.NoError(t, err)

	res, ok := output.Data.(RewriteResult)
	require.True(t, ok)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Output, "slog.Info(\"hi\", n)")
	assert.Contains(t, res.Diff, "--- a/code.go\n")
}

func TestErrorResult(t *testing.T) {
	t.Parallel()

	result, output, err := errorResult(ErrEmptyCode)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Nil(t, output.Data)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Equal(t, ErrEmptyCode.Error(), text.Text)
}

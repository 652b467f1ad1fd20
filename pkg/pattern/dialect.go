package pattern

import (
	"sort"

	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Context wraps a pattern so it parses where the grammar expects it: inside a
// method body, as an initializer, as a class member or at top level.
type Context struct {
	Prefix string
	Suffix string
}

// Dialect describes how patterns are written for one language.
//
// Fields:
//
//	Language: tree-sitter language name.
//	Contexts: wrapping contexts, tried in order.
//	Terminator: statement terminator trimmed when recognising "$X;" as a capture.
//	Expando: byte replacing every '$' of a metavariable token before parsing, 0 to keep '$'.
type Dialect struct {
	Language   string
	Contexts   []Context
	Terminator string
	Expando    byte
}

var topLevel = Context{}

var dialects = map[string]*Dialect{
	syntax.LangJava: {
		Language: syntax.LangJava,
		Contexts: []Context{
			{Prefix: "class __Pattern__ {\nvoid __pattern__() {\n", Suffix: "\n}\n}\n"},
			{Prefix: "class __Pattern__ {\nObject __pattern__ = ", Suffix: ";\n}\n"},
			{Prefix: "class __Pattern__ {\n", Suffix: "\n}\n"},
			topLevel,
		},
		Terminator: ";",
	},
	syntax.LangJavaScript: scriptDialect(syntax.LangJavaScript),
	syntax.LangTypeScript: scriptDialect(syntax.LangTypeScript),
	syntax.LangTSX:        scriptDialect(syntax.LangTSX),
	syntax.LangGo: {
		Language: syntax.LangGo,
		Contexts: []Context{
			{Prefix: "package __pattern__\nfunc __pattern__() {\n", Suffix: "\n}\n"},
			{Prefix: "package __pattern__\nvar __pattern__ = ", Suffix: "\n"},
			{Prefix: "package __pattern__\n", Suffix: "\n"},
		},
		Expando: '_',
	},
	syntax.LangPython: {
		Language: syntax.LangPython,
		Contexts: []Context{topLevel},
		Expando:  '_',
	},
}

func scriptDialect(language string) *Dialect {
	return &Dialect{
		Language: language,
		Contexts: []Context{
			topLevel,
			{Prefix: "function __pattern__() {\n", Suffix: "\n}\n"},
			{Prefix: "class __Pattern__ {\n", Suffix: "\n}\n"},
		},
		Terminator: ";",
	}
}

// LookupDialect returns the dialect registered for language.
func LookupDialect(language string) (*Dialect, bool) {
	d, ok := dialects[language]

	return d, ok
}

// Dialects returns the names of all registered dialects, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// prepare rewrites the metavariable tokens of text for parsing under d.
func (d *Dialect) prepare(text string, tokens []Token) string {
	if d.Expando == 0 || len(tokens) == 0 {
		return text
	}

	buf := []byte(text)

	for _, tok := range tokens {
		for i := tok.Start; i < tok.End && buf[i] == sigil; i++ {
			buf[i] = d.Expando
		}
	}

	return string(buf)
}

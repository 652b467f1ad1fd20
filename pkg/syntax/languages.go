package syntax

import (
	"slices"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
)

// Language names understood by the provider.
const (
	LangGo         = "go"
	LangJava       = "java"
	LangJavaScript = "javascript"
	LangPython     = "python"
	LangTSX        = "tsx"
	LangTypeScript = "typescript"
)

// languageFuncs maps language names to their tree-sitter GetLanguage functions.
var languageFuncs = map[string]func() unsafe.Pointer{
	LangGo:         golang.GetLanguage,
	LangJava:       java.GetLanguage,
	LangJavaScript: javascript.GetLanguage,
	LangPython:     python.GetLanguage,
	LangTSX:        tsx.GetLanguage,
	LangTypeScript: typescript.GetLanguage,
}

// extensionLanguages maps lower-case file extensions to language names.
var extensionLanguages = map[string]string{
	".java": LangJava,
	".go":   LangGo,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".py3":  LangPython,
}

var languageCache sync.Map

// GetLanguage returns the tree-sitter Language for the given name, or nil if not supported.
func GetLanguage(name string) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(name, lang)

	return lang
}

// IsSupported reports whether a grammar is registered for the language.
func IsSupported(name string) bool {
	_, ok := languageFuncs[name]

	return ok
}

// Languages returns the sorted names of all supported languages.
func Languages() []string {
	names := make([]string, 0, len(languageFuncs))
	for name := range languageFuncs {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Extensions returns the sorted file extensions registered for a language.
func Extensions(name string) []string {
	var exts []string

	for ext, lang := range extensionLanguages {
		if lang == name {
			exts = append(exts, ext)
		}
	}

	slices.Sort(exts)

	return exts
}

// LanguageForExtension returns the language registered for ext (".java", "JAVA", ...).
func LanguageForExtension(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	lang, ok := extensionLanguages[ext]

	return lang, ok
}

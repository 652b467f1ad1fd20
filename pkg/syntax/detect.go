package syntax

import (
	"path/filepath"

	"github.com/src-d/enry/v2"
)

// enryLanguages maps linguist language names reported by enry to provider languages.
var enryLanguages = map[string]string{
	"Go":         LangGo,
	"Java":       LangJava,
	"JavaScript": LangJavaScript,
	"JSX":        LangJavaScript,
	"Python":     LangPython,
	"TSX":        LangTSX,
	"TypeScript": LangTypeScript,
}

// DetectLanguage resolves the provider language for a file. The extension
// table wins; otherwise enry inspects the filename, shebang and content.
func DetectLanguage(filename string, content []byte) (string, bool) {
	if lang, ok := LanguageForExtension(filepath.Ext(filename)); ok {
		return lang, true
	}

	detected := enry.GetLanguage(filepath.Base(filename), content)
	if detected == "" {
		return "", false
	}

	lang, ok := enryLanguages[detected]

	return lang, ok
}

// IsVendored reports whether path points into vendored or generated third-party code.
func IsVendored(path string) bool {
	return enry.IsVendor(filepath.ToSlash(path))
}

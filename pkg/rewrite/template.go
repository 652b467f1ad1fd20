// Package rewrite renders replacement text from a template and the captures
// of a match.
//
// A template is plain text in the target language with metavariable
// references ($NAME or $$$NAME). Each reference renders as the exact source
// text its capture matched; everything else is copied literally.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
)

// UnboundCaptureError reports a template reference the pattern does not bind.
type UnboundCaptureError struct {
	Name   string
	Offset int
}

func (e *UnboundCaptureError) Error() string {
	return fmt.Sprintf("rewrite: template references unbound metavariable $%s at offset %d", e.Name, e.Offset)
}

// Template is a parsed replacement template. It is immutable.
type Template struct {
	Source string
	parts  []part
}

// part is either literal text or a capture reference.
type part struct {
	text   string
	ref    string
	offset int
}

// ParseTemplate splits source into literal text and capture references.
// Anonymous metavariables ($_, $$$) are not references and stay literal.
func ParseTemplate(source string) *Template {
	t := &Template{Source: source}
	pos := 0

	for _, tok := range pattern.ScanMetavariables(source) {
		if tok.Anonymous() {
			continue
		}

		if tok.Start > pos {
			t.parts = append(t.parts, part{text: source[pos:tok.Start], offset: pos})
		}

		t.parts = append(t.parts, part{ref: tok.Name, offset: tok.Start})
		pos = tok.End
	}

	if pos < len(source) {
		t.parts = append(t.parts, part{text: source[pos:], offset: pos})
	}

	return t
}

// References returns the referenced capture names in order of appearance,
// without duplicates.
func (t *Template) References() []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)

	for _, p := range t.parts {
		if p.ref != "" && !seen[p.ref] {
			seen[p.ref] = true
			names = append(names, p.ref)
		}
	}

	return names
}

// Check verifies that every reference is bound by every match of p.
func (t *Template) Check(p *pattern.Pattern) error {
	for _, part := range t.parts {
		if part.ref != "" && !p.Binds(part.ref) {
			return &UnboundCaptureError{Name: part.ref, Offset: part.offset}
		}
	}

	return nil
}

// Render substitutes bindings into the template. Every newline of the
// template's own text is followed by indent; captured text is inserted
// verbatim.
func (t *Template) Render(bindings *match.Bindings, indent string) (string, error) {
	var sb strings.Builder

	sb.Grow(len(t.Source))

	for _, p := range t.parts {
		if p.ref == "" {
			writeIndented(&sb, p.text, indent)

			continue
		}

		text, ok := bindings.Text(p.ref)
		if !ok {
			return "", &UnboundCaptureError{Name: p.ref, Offset: p.offset}
		}

		sb.WriteString(text)
	}

	return sb.String(), nil
}

func writeIndented(sb *strings.Builder, text, indent string) {
	if indent == "" {
		sb.WriteString(text)

		return
	}

	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			sb.WriteString(text)

			return
		}

		sb.WriteString(text[:idx+1])
		sb.WriteString(indent)

		text = text[idx+1:]
	}
}

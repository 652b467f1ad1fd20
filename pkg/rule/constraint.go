package rule

import (
	"regexp"
	"slices"

	"github.com/Sumatoshi-tech/codemod/pkg/match"
)

// Constraint restricts what one metavariable may bind. Empty fields are not
// checked.
type Constraint struct {
	Regex    *regexp.Regexp
	NotRegex *regexp.Regexp
	Kind     string
}

// Satisfied reports whether binding meets the constraint. The regular
// expressions test the bound text; Kind requires every bound node to have
// that kind.
func (c Constraint) Satisfied(binding match.Binding) bool {
	text := binding.Text()

	if c.Regex != nil && !c.Regex.MatchString(text) {
		return false
	}

	if c.NotRegex != nil && c.NotRegex.MatchString(text) {
		return false
	}

	if c.Kind != "" {
		for _, n := range binding.Nodes {
			if n.Kind != c.Kind {
				return false
			}
		}
	}

	return true
}

// Constraints builds a guard requiring every named metavariable to be bound
// and to satisfy its constraint. An empty map yields a nil guard.
func Constraints(constraints map[string]Constraint) Guard {
	if len(constraints) == 0 {
		return nil
	}

	names := make([]string, 0, len(constraints))
	for name := range constraints {
		names = append(names, name)
	}

	slices.Sort(names)

	return func(b *match.Bindings) bool {
		for _, name := range names {
			binding, ok := b.Get(name)
			if !ok || !constraints[name].Satisfied(binding) {
				return false
			}
		}

		return true
	}
}

// All combines guards; nil guards are ignored.
func All(guards ...Guard) Guard {
	var active []Guard

	for _, g := range guards {
		if g != nil {
			active = append(active, g)
		}
	}

	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}

	return func(b *match.Bindings) bool {
		for _, g := range active {
			if !g(b) {
				return false
			}
		}

		return true
	}
}

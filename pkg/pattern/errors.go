package pattern

import (
	"errors"
	"fmt"
)

// ErrUnknownDialect is returned when no dialect is registered for a language.
var ErrUnknownDialect = errors.New("pattern: unknown dialect")

// SyntaxError reports a pattern that does not parse cleanly under any of its
// dialect's contexts. Offset is a byte offset into the pattern string.
type SyntaxError struct {
	Pattern string
	Dialect string
	Offset  int
	Reason  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pattern: %s syntax error at offset %d: %s", e.Dialect, e.Offset, e.Reason)
}

// MetavariableError reports an invalid use of a metavariable.
type MetavariableError struct {
	Name   string
	Offset int
	Reason string
}

func (e *MetavariableError) Error() string {
	name := e.Name
	if name == "" {
		name = "$$$"
	}

	return fmt.Sprintf("pattern: metavariable %s at offset %d: %s", name, e.Offset, e.Reason)
}

// Package patch applies text replacements to a source buffer.
package patch

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrOutOfBounds is returned for a patch whose span does not fit the source.
var ErrOutOfBounds = errors.New("patch: span out of bounds")

// Patch replaces source[Start:End] with Replacement. An empty span inserts.
type Patch struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
	RuleID      string `json:"rule_id,omitempty"`
}

// OverlapError reports two patches that touch the same bytes, or two
// insertions at the same offset.
type OverlapError struct {
	First  Patch
	Second Patch
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("patch: [%d,%d) from rule %q overlaps [%d,%d) from rule %q",
		e.First.Start, e.First.End, e.First.RuleID, e.Second.Start, e.Second.End, e.Second.RuleID)
}

// Sort orders patches by start offset, then end offset.
func Sort(patches []Patch) {
	slices.SortStableFunc(patches, func(a, b Patch) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}

		return cmp.Compare(a.End, b.End)
	})
}

// Validate checks that every patch fits a source of size bytes and that no
// two patches overlap. patches must be sorted.
func Validate(size int, patches []Patch) error {
	widest := -1

	for i, p := range patches {
		if p.Start < 0 || p.End < p.Start || p.End > size {
			return fmt.Errorf("%w: [%d,%d) in %d bytes", ErrOutOfBounds, p.Start, p.End, size)
		}

		if widest >= 0 {
			prev := patches[widest]

			if p.Start < prev.End || (p.Start == p.End && prev.Start == prev.End && p.Start == prev.Start) {
				return &OverlapError{First: prev, Second: p}
			}
		}

		if widest < 0 || p.End >= patches[widest].End {
			widest = i
		}
	}

	return nil
}

// Apply returns source with all patches applied. The input is not modified.
// Patches are spliced from the highest start offset down so earlier offsets
// stay valid.
func Apply(source []byte, patches []Patch) ([]byte, error) {
	sorted := slices.Clone(patches)
	Sort(sorted)

	err := Validate(len(source), sorted)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(source)

	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		out = slices.Replace(out, p.Start, p.End, []byte(p.Replacement)...)
	}

	return out, nil
}

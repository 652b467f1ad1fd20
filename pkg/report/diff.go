package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

const noNewline = "\\ No newline at end of file"

type lineOp struct {
	kind byte // ' ', '-' or '+'.
	text string
	eol  bool
}

type hunk struct {
	oldStart, oldLines int
	newStart, newLines int
	ops                []lineOp
}

// Unified renders a line-based unified diff between before and after. It
// returns "" when both are equal.
func Unified(path string, before, after []byte, context int) string {
	if context < 0 {
		context = DefaultContext
	}

	ops := lineOps(string(before), string(after))

	hunks := groupHunks(ops, context)
	if len(hunks) == 0 {
		return ""
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)

	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", hunkRange(h.oldStart, h.oldLines), hunkRange(h.newStart, h.newLines))

		for _, op := range h.ops {
			sb.WriteByte(op.kind)
			sb.WriteString(op.text)
			sb.WriteByte('\n')

			if !op.eol {
				sb.WriteString(noNewline)
				sb.WriteByte('\n')
			}
		}
	}

	return sb.String()
}

func lineOps(before, after string) []lineOp {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []lineOp

	for _, d := range diffs {
		kind := byte(' ')

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			text, eol := strings.CutSuffix(line, "\n")
			ops = append(ops, lineOp{kind: kind, text: text, eol: eol})
		}
	}

	return ops
}

// groupHunks merges changes whose unchanged gap is at most 2*context lines.
func groupHunks(ops []lineOp, context int) []hunk {
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)

	var changes []int

	for i, op := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]

		if op.kind != '+' {
			oldAt[i+1]++
		}

		if op.kind != '-' {
			newAt[i+1]++
		}

		if op.kind != ' ' {
			changes = append(changes, i)
		}
	}

	var hunks []hunk

	for i := 0; i < len(changes); {
		first, last := changes[i], changes[i]

		for i++; i < len(changes) && changes[i]-last-1 <= 2*context; i++ {
			last = changes[i]
		}

		start := max(first-context, 0)
		end := min(last+context+1, len(ops))

		hunks = append(hunks, hunk{
			oldStart: oldAt[start],
			oldLines: oldAt[end] - oldAt[start],
			newStart: newAt[start],
			newLines: newAt[end] - newAt[start],
			ops:      ops[start:end],
		})
	}

	return hunks
}

// hunkRange formats a hunk side. start is the count of lines before the hunk.
func hunkRange(start, lines int) string {
	switch lines {
	case 0:
		return fmt.Sprintf("%d,0", start)
	case 1:
		return fmt.Sprintf("%d", start+1)
	default:
		return fmt.Sprintf("%d,%d", start+1, lines)
	}
}

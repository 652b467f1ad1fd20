// Package report renders run results for terminals and machines: coloured
// unified diffs, match listings, a summary table and a JSON document.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/codemod/pkg/runner"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat validates a format name. An empty name selects FormatText.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Options configure a Printer.
type Options struct {
	Format Format
	// Diff prints a unified diff for every changed file.
	Diff bool
	// Matches lists every match with its location.
	Matches bool
	NoColor bool
	// Context is the number of diff context lines; negative selects
	// DefaultContext.
	Context int
}

// Printer writes run summaries.
type Printer struct {
	w    io.Writer
	opts Options

	header  *color.Color
	added   *color.Color
	removed *color.Color
	hunk    *color.Color
	path    *color.Color
	rule    *color.Color
	failure *color.Color
}

// New creates a Printer writing to w.
func New(w io.Writer, opts Options) *Printer {
	if opts.Format == "" {
		opts.Format = FormatText
	}

	p := &Printer{
		w:       w,
		opts:    opts,
		header:  color.New(color.Bold),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		hunk:    color.New(color.FgCyan),
		path:    color.New(color.Bold),
		rule:    color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
	}

	if opts.NoColor {
		for _, c := range p.palette() {
			c.DisableColor()
		}
	}

	return p
}

// ForceColor enables escape sequences even when the output is not a
// terminal.
func (p *Printer) ForceColor() {
	for _, c := range p.palette() {
		c.EnableColor()
	}
}

func (p *Printer) palette() []*color.Color {
	return []*color.Color{p.header, p.added, p.removed, p.hunk, p.path, p.rule, p.failure}
}

// Print writes summary in the configured format.
func (p *Printer) Print(summary *runner.Summary) error {
	if p.opts.Format == FormatJSON {
		return p.printJSON(summary)
	}

	return p.printText(summary)
}

type jsonFile struct {
	runner.FileResult

	Diff string `json:"diff,omitempty"`
}

type jsonReport struct {
	Files    []jsonFile `json:"files"`
	Total    int        `json:"total_files"`
	Changed  int        `json:"changed_files"`
	Matched  int        `json:"matched_files"`
	Matches  int        `json:"matches"`
	Failed   int        `json:"failed_files"`
	Skipped  int        `json:"skipped_files"`
	Cached   int        `json:"cached_files"`
	Duration string     `json:"duration"`
}

func (p *Printer) printJSON(summary *runner.Summary) error {
	doc := jsonReport{
		Files:    make([]jsonFile, 0, len(summary.Results)),
		Total:    summary.Files,
		Changed:  summary.Changed,
		Matched:  summary.Matched,
		Matches:  summary.Matches,
		Failed:   summary.Failed,
		Skipped:  summary.Skipped,
		Cached:   summary.Cached,
		Duration: summary.Duration.String(),
	}

	for _, res := range summary.Results {
		f := jsonFile{FileResult: res}
		if p.opts.Diff && res.Changed {
			f.Diff = Unified(res.Path, res.Source, res.Output, p.opts.Context)
		}

		doc.Files = append(doc.Files, f)
	}

	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

func (p *Printer) printText(summary *runner.Summary) error {
	var sb strings.Builder

	for _, res := range summary.Results {
		if res.Err != nil || res.Error != "" {
			fmt.Fprintf(&sb, "%s: %s\n", p.path.Sprint(res.Path), p.failure.Sprint("error: "+res.Error))

			continue
		}

		if p.opts.Matches {
			for _, m := range res.Matches {
				p.writeMatch(&sb, res.Path, m)
			}
		}

		if p.opts.Diff && res.Changed {
			p.writeDiff(&sb, Unified(res.Path, res.Source, res.Output, p.opts.Context))
		}
	}

	sb.WriteString(p.Table(summary))
	sb.WriteByte('\n')

	_, err := io.WriteString(p.w, sb.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (p *Printer) writeMatch(sb *strings.Builder, path string, m runner.MatchInfo) {
	fmt.Fprintf(sb, "%s:%d:%d: %s", p.path.Sprint(path), m.Line, m.Column, p.rule.Sprint(m.RuleID))

	if m.Message != "" {
		sb.WriteString(": " + m.Message)
	}

	sb.WriteByte('\n')
}

// ColorDiff returns a unified diff with colored headers, hunks and lines.
func (p *Printer) ColorDiff(diff string) string {
	var sb strings.Builder

	p.writeDiff(&sb, diff)

	return sb.String()
}

func (p *Printer) writeDiff(sb *strings.Builder, diff string) {
	for line := range strings.Lines(diff) {
		out := strings.TrimSuffix(line, "\n")

		switch {
		case strings.HasPrefix(out, "--- "), strings.HasPrefix(out, "+++ "):
			out = p.header.Sprint(out)
		case strings.HasPrefix(out, "@@"):
			out = p.hunk.Sprint(out)
		case strings.HasPrefix(out, "-"):
			out = p.removed.Sprint(out)
		case strings.HasPrefix(out, "+"):
			out = p.added.Sprint(out)
		}

		sb.WriteString(out)
		sb.WriteByte('\n')
	}
}

// Table renders the summary counters.
func (p *Printer) Table(summary *runner.Summary) string {
	var rewritten uint64

	for _, res := range summary.Results {
		if res.Changed {
			rewritten += uint64(len(res.Output))
		}
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"Result", "Count"})
	tbl.AppendRows([]table.Row{
		{"Files", humanize.Comma(int64(summary.Files))},
		{"Changed", humanize.Comma(int64(summary.Changed))},
		{"Matched", humanize.Comma(int64(summary.Matched))},
		{"Matches", humanize.Comma(int64(summary.Matches))},
		{"Skipped", humanize.Comma(int64(summary.Skipped))},
		{"Failed", humanize.Comma(int64(summary.Failed))},
		{"Cached", humanize.Comma(int64(summary.Cached))},
		{"Rewritten", humanize.Bytes(rewritten)},
	})
	tbl.AppendFooter(table.Row{"Elapsed", summary.Duration.Round(time.Millisecond).String()})

	return tbl.Render()
}

package runner

import (
	"errors"
	"time"

	"github.com/Sumatoshi-tech/codemod/pkg/rule"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Skip reasons.
const (
	SkipTooLarge   = "too large"
	SkipNoRules    = "no rules for language"
	SkipUnreadable = "unreadable"
)

// MatchInfo describes one accepted match in a file. Lines and columns are
// 1-based; columns count bytes.
type MatchInfo struct {
	RuleID    string `json:"rule_id"`
	Message   string `json:"message,omitempty"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
	Text      string `json:"text"`
	Fixable   bool   `json:"fixable"`
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path     string      `json:"path"`
	Language string      `json:"language,omitempty"`
	Matches  []MatchInfo `json:"matches,omitempty"`
	Changed  bool        `json:"changed"`
	Written  bool        `json:"written,omitempty"`
	Cached   bool        `json:"cached,omitempty"`
	// Partial is set when the parser recovered from syntax errors. Matches
	// never include error nodes, so rewriting such a file stays safe.
	Partial bool   `json:"partial,omitempty"`
	Skipped string `json:"skipped,omitempty"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`

	// Source and Output are kept only for changed files.
	Source []byte `json:"-"`
	Output []byte `json:"-"`
}

// Summary aggregates a run.
type Summary struct {
	Results  []FileResult  `json:"files"`
	Files    int           `json:"total_files"`
	Changed  int           `json:"changed_files"`
	Matched  int           `json:"matched_files"`
	Matches  int           `json:"matches"`
	Failed   int           `json:"failed_files"`
	Skipped  int           `json:"skipped_files"`
	Cached   int           `json:"cached_files"`
	Duration time.Duration `json:"duration_ns"`
}

func (s *Summary) add(r FileResult) {
	s.Results = append(s.Results, r)
	s.Files++

	switch {
	case r.Err != nil:
		s.Failed++
	case r.Skipped != "":
		s.Skipped++
	}

	if r.Changed {
		s.Changed++
	}

	if len(r.Matches) > 0 {
		s.Matched++
		s.Matches += len(r.Matches)
	}

	if r.Cached {
		s.Cached++
	}
}

// Err joins the per-file errors of the run, or returns nil.
func (s *Summary) Err() error {
	var failed []error

	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, &FileError{Path: r.Path, Err: r.Err})
		}
	}

	if len(failed) == 0 {
		return nil
	}

	return errors.Join(failed...)
}

// FileError ties a processing failure to its file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func matchInfos(tree *syntax.Tree, engine *rule.Engine, matches []rule.Match) []MatchInfo {
	if len(matches) == 0 {
		return nil
	}

	rules := engine.Rules()
	infos := make([]MatchInfo, 0, len(matches))

	for _, m := range matches {
		span := m.Span()
		start := tree.Position(span.Start)
		end := tree.Position(span.End)
		r := rules[m.RuleIndex]

		infos = append(infos, MatchInfo{
			RuleID:    m.RuleID,
			Message:   r.Message,
			Start:     span.Start,
			End:       span.End,
			Line:      start.Line,
			Column:    start.Column,
			EndLine:   end.Line,
			EndColumn: end.Column,
			Text:      m.Root.Text(),
			Fixable:   r.Template != nil,
		})
	}

	return infos
}

// Package fixture runs snapshot tests for rule sets. A case is a directory
// holding either one input.<ext> file with its expected.<ext> counterpart,
// or input/ and expected/ directories with files of the same name. Cases
// whose directory name ends in "_should_error" pass only when processing
// fails.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/codemod/pkg/report"
	"github.com/Sumatoshi-tech/codemod/pkg/runner"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// ShouldErrorSuffix marks cases that expect processing to fail.
const ShouldErrorSuffix = "_should_error"

const (
	inputName    = "input"
	expectedName = "expected"
)

// Sentinel errors.
var (
	ErrAmbiguousInput = errors.New("multiple input files")
	ErrNoExpected     = errors.New("no expected file")
	ErrSkipped        = errors.New("file was skipped")
	ErrExpectedError  = errors.New("expected processing to fail")
	ErrNoCases        = errors.New("no test cases found")
)

// File is one input or expected file of a case.
type File struct {
	// Name is relative to the input or expected location.
	Name     string
	Path     string
	Language string
	Content  []byte
}

// Case is one fixture directory.
type Case struct {
	Name        string
	Dir         string
	Inputs      []File
	Expected    []File
	ShouldError bool

	multi bool
}

func (c *Case) expected(name string) (File, bool) {
	for _, f := range c.Expected {
		if f.Name == name {
			return f, true
		}
	}

	return File{}, false
}

func (c *Case) expectedPath(in File) string {
	if c.multi {
		return filepath.Join(c.Dir, expectedName, in.Name)
	}

	return filepath.Join(c.Dir, expectedName+filepath.Ext(in.Name))
}

// Discover finds the cases under dir. dir itself is a case when it holds
// fixture files; otherwise each subdirectory is tried in lexical order and
// directories without fixtures are ignored.
func Discover(dir string) ([]Case, error) {
	c, ok, err := load(dir)
	if err != nil {
		return nil, err
	}

	if ok {
		return []Case{c}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover fixtures: %w", err)
	}

	var cases []Case

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		c, ok, err := load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if ok {
			cases = append(cases, c)
		}
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCases, dir)
	}

	return cases, nil
}

func load(dir string) (Case, bool, error) {
	name := filepath.Base(dir)
	c := Case{Name: name, Dir: dir, ShouldError: strings.HasSuffix(name, ShouldErrorSuffix)}

	inputs, err := singleInputs(dir)
	if err != nil {
		return Case{}, false, err
	}

	if len(inputs) == 1 {
		in, err := readFile(inputs[0], filepath.Base(inputs[0]))
		if err != nil {
			return Case{}, false, err
		}

		c.Inputs = []File{in}

		want := filepath.Join(dir, expectedName+filepath.Ext(inputs[0]))
		if _, statErr := os.Stat(want); statErr == nil {
			exp, err := readFile(want, in.Name)
			if err != nil {
				return Case{}, false, err
			}

			c.Expected = []File{exp}
		}

		return c, true, nil
	}

	inDir, expDir := filepath.Join(dir, inputName), filepath.Join(dir, expectedName)
	if !isDir(inDir) || !isDir(expDir) {
		return Case{}, false, nil
	}

	c.multi = true

	c.Inputs, err = collect(inDir)
	if err != nil {
		return Case{}, false, err
	}

	c.Expected, err = collect(expDir)
	if err != nil {
		return Case{}, false, err
	}

	return c, true, nil
}

// singleInputs lists input.<ext> files with a supported extension.
func singleInputs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, inputName+".*"))
	if err != nil {
		return nil, fmt.Errorf("glob inputs: %w", err)
	}

	var inputs []string

	for _, m := range matches {
		if _, ok := syntax.LanguageForExtension(filepath.Ext(m)); ok && !isDir(m) {
			inputs = append(inputs, m)
		}
	}

	if len(inputs) > 1 {
		return nil, fmt.Errorf("%w in %s: %s; use input/ and expected/ directories instead",
			ErrAmbiguousInput, dir, strings.Join(baseNames(inputs), ", "))
	}

	return inputs, nil
}

// collect reads the supported source files directly inside dir, sorted by
// name.
func collect(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []File

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if _, ok := syntax.LanguageForExtension(filepath.Ext(entry.Name())); !ok {
			continue
		}

		f, err := readFile(filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Name, b.Name) })

	return files, nil
}

func readFile(path, name string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read fixture: %w", err)
	}

	lang, _ := syntax.LanguageForExtension(filepath.Ext(path))

	return File{Name: name, Path: path, Language: lang, Content: data}, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)

	return err == nil && info.IsDir()
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}

	return out
}

// Processor rewrites one in-memory source. *runner.Runner implements it.
type Processor interface {
	Process(ctx context.Context, path, language string, source []byte) runner.FileResult
}

// Options configure Run.
type Options struct {
	// Update rewrites expected files from the actual output instead of
	// failing on a mismatch.
	Update bool
	// Context is the number of diff context lines in failures.
	Context int
}

// Failure describes why a case failed.
type Failure struct {
	File string
	Err  error
	// Diff is set for output mismatches, from expected to actual.
	Diff string
}

func (f Failure) String() string {
	if f.Diff != "" {
		return f.File + ": output differs\n" + f.Diff
	}

	if f.File == "" {
		return f.Err.Error()
	}

	return f.File + ": " + f.Err.Error()
}

// Result is the outcome of one case.
type Result struct {
	Case     Case
	Failures []Failure
	// Updated lists expected files written in update mode.
	Updated []string
}

// Passed reports whether the case succeeded.
func (r Result) Passed() bool {
	return len(r.Failures) == 0
}

// Report aggregates a fixture run.
type Report struct {
	Results []Result
	Passed  int
	Failed  int
}

// Run processes every case with p.
func Run(ctx context.Context, p Processor, cases []Case, opts Options) (*Report, error) {
	rep := &Report{}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run fixtures: %w", err)
		}

		res, err := runCase(ctx, p, c, opts)
		if err != nil {
			return nil, err
		}

		rep.Results = append(rep.Results, res)

		if res.Passed() {
			rep.Passed++
		} else {
			rep.Failed++
		}
	}

	return rep, nil
}

func runCase(ctx context.Context, p Processor, c Case, opts Options) (Result, error) {
	res := Result{Case: c}
	failed := false

	for _, in := range c.Inputs {
		out := p.Process(ctx, in.Path, in.Language, in.Content)

		err := out.Err
		if err == nil && out.Skipped != "" {
			err = fmt.Errorf("%w: %s", ErrSkipped, out.Skipped)
		}

		if c.ShouldError {
			failed = failed || err != nil

			continue
		}

		if err != nil {
			res.Failures = append(res.Failures, Failure{File: in.Name, Err: err})

			continue
		}

		actual := in.Content
		if out.Changed {
			actual = out.Output
		}

		exp, ok := c.expected(in.Name)
		if ok && bytes.Equal(exp.Content, actual) {
			continue
		}

		if opts.Update {
			path := c.expectedPath(in)

			err := writeExpected(path, actual)
			if err != nil {
				return Result{}, err
			}

			res.Updated = append(res.Updated, path)

			continue
		}

		if !ok {
			res.Failures = append(res.Failures, Failure{File: in.Name, Err: ErrNoExpected})

			continue
		}

		res.Failures = append(res.Failures, Failure{
			File: in.Name,
			Diff: report.Unified(in.Name, exp.Content, actual, opts.Context),
		})
	}

	if c.ShouldError && !failed {
		res.Failures = append(res.Failures, Failure{Err: ErrExpectedError})
	}

	return res, nil
}

func writeExpected(path string, content []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("update fixture: %w", err)
	}

	err = os.WriteFile(path, content, 0o644)
	if err != nil {
		return fmt.Errorf("update fixture: %w", err)
	}

	return nil
}

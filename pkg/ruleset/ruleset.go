// Package ruleset loads rewrite rules from YAML rule files.
//
// A rule file holds a list of rules:
//
//	rules:
//	  - id: map-loop-to-stream
//	    language: java
//	    message: loop can be a stream pipeline
//	    rule:
//	      pattern: "for ($T $ITEM : $SRC) { $TARGET.add($EXPR); }"
//	    constraints:
//	      SRC: { regex: "^[a-z]" }
//	    fix: "$SRC.stream().map($ITEM -> $EXPR).forEach($ITEM -> $TARGET.add($ITEM));"
//
// The rule matcher is exactly one of pattern (a code snippet, or a
// context/selector pair), kind (a node kind) or any (a list of patterns tried
// in order). Files are validated against an embedded JSON schema before any
// pattern is compiled. Authoring errors are reported per rule: by default the
// offending rule is skipped with a warning, in strict mode loading fails.
package ruleset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/rewrite"
	"github.com/Sumatoshi-tech/codemod/pkg/rule"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Sentinel authoring errors.
var (
	ErrDuplicateID    = errors.New("duplicate rule id")
	ErrUnboundName    = errors.New("constraint names a metavariable the pattern does not bind")
	ErrInvalidRegex   = errors.New("invalid constraint regex")
	ErrNoRules        = errors.New("no rules loaded")
	ErrInvalidMatcher = errors.New("rule needs exactly one of pattern, kind or any")
)

var languageAliases = map[string]string{
	"golang": syntax.LangGo,
	"js":     syntax.LangJavaScript,
	"jsx":    syntax.LangJavaScript,
	"ts":     syntax.LangTypeScript,
	"py":     syntax.LangPython,
}

// Spec is one rule as written in a rule file.
type Spec struct {
	ID          string                    `yaml:"id"`
	Language    string                    `yaml:"language"`
	Message     string                    `yaml:"message"`
	Rule        Matcher                   `yaml:"rule"`
	Constraints map[string]ConstraintSpec `yaml:"constraints"`
	Fix         *string                   `yaml:"fix"`
}

// Matcher selects the nodes a rule applies to.
type Matcher struct {
	Pattern *PatternSpec  `yaml:"pattern"`
	Kind    string        `yaml:"kind"`
	Any     []PatternSpec `yaml:"any"`
}

// PatternSpec is a pattern snippet, or a Context snippet from which the node
// of kind Selector is used as the pattern.
type PatternSpec struct {
	Source   string
	Context  string
	Selector string
}

// UnmarshalYAML accepts a plain string or a {context, selector} mapping.
func (p *PatternSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Source = value.Value

		return nil
	}

	var sel struct {
		Context  string `yaml:"context"`
		Selector string `yaml:"selector"`
	}

	err := value.Decode(&sel)
	if err != nil {
		return fmt.Errorf("decode pattern: %w", err)
	}

	p.Context, p.Selector = sel.Context, sel.Selector

	return nil
}

// ConstraintSpec restricts what one metavariable may bind.
type ConstraintSpec struct {
	Regex    string `yaml:"regex"`
	NotRegex string `yaml:"not_regex"`
	Kind     string `yaml:"kind"`
}

// Options control loading.
type Options struct {
	// Strict fails the load on the first authoring error.
	Strict bool
	// Logger receives a warning per skipped rule. Nil uses slog.Default.
	Logger *slog.Logger
}

// Set is a loaded rule set, grouped by language.
type Set struct {
	// Fingerprint identifies the rule file contents. It changes whenever
	// any loaded file changes.
	Fingerprint string
	// Skipped holds the authoring errors of rules left out of the set.
	Skipped []*rule.CompileError

	engines map[string]*rule.Engine
	count   int
}

// Engine returns the engine for language.
func (s *Set) Engine(language string) (*rule.Engine, bool) {
	e, ok := s.engines[language]

	return e, ok
}

// Languages returns the languages that have at least one rule, sorted.
func (s *Set) Languages() []string {
	langs := make([]string, 0, len(s.engines))
	for lang := range s.engines {
		langs = append(langs, lang)
	}

	slices.Sort(langs)

	return langs
}

// Len returns the number of loaded rules.
func (s *Set) Len() int {
	return s.count
}

// Rules returns the loaded rules of every language, grouped by language in
// Languages order.
func (s *Set) Rules() []rule.Rule {
	var all []rule.Rule

	for _, lang := range s.Languages() {
		all = append(all, s.engines[lang].Rules()...)
	}

	return all
}

// LoadFiles reads and loads every path into one set. Rule indices run across
// files in the order given.
func LoadFiles(ctx context.Context, compiler *pattern.Compiler, paths []string, opts Options) (*Set, error) {
	docs := make([][]byte, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rule file: %w", err)
		}

		docs = append(docs, data)
	}

	set, err := Load(ctx, compiler, opts, docs...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", strings.Join(paths, ", "), err)
	}

	return set, nil
}

// Load parses, validates and compiles rule documents.
func Load(ctx context.Context, compiler *pattern.Compiler, opts Options, docs ...[]byte) (*Set, error) {
	if compiler == nil {
		compiler = pattern.NewCompiler(nil)
	}

	l := &loader{
		compiler: compiler,
		opts:     opts,
		logger:   opts.Logger,
		byLang:   make(map[string][]rule.Rule),
		seen:     make(map[string]bool),
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	h := sha256.New()

	for _, doc := range docs {
		h.Write(doc)
		h.Write([]byte{0})

		err := l.loadDoc(ctx, doc)
		if err != nil {
			return nil, err
		}
	}

	set := &Set{
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		Skipped:     l.skipped,
		engines:     make(map[string]*rule.Engine, len(l.byLang)),
	}

	for lang, rules := range l.byLang {
		engine, err := rule.NewEngine(rules)
		if err != nil {
			return nil, fmt.Errorf("build %s engine: %w", lang, err)
		}

		set.engines[lang] = engine
		set.count += len(rules)
	}

	if set.count == 0 {
		return nil, ErrNoRules
	}

	return set, nil
}

type loader struct {
	compiler *pattern.Compiler
	opts     Options
	logger   *slog.Logger
	byLang   map[string][]rule.Rule
	seen     map[string]bool
	skipped  []*rule.CompileError
	index    int
}

func (l *loader) loadDoc(ctx context.Context, data []byte) error {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return fmt.Errorf("parse rule file: %w", err)
	}

	schemaErrs, err := validate(doc)
	if err != nil {
		return err
	}

	var file struct {
		Rules []yaml.Node `yaml:"rules"`
	}

	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return fmt.Errorf("parse rule file: %w", err)
	}

	for i := range file.Rules {
		err = ctx.Err()
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		index := l.index
		l.index++

		var spec Spec

		if se, bad := schemaErrs[i]; bad {
			_ = file.Rules[i].Decode(&spec)

			err = l.reject(index, spec.ID, se)
		} else if decodeErr := file.Rules[i].Decode(&spec); decodeErr != nil {
			err = l.reject(index, spec.ID, decodeErr)
		} else {
			err = l.add(ctx, index, &spec)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (l *loader) add(ctx context.Context, index int, spec *Spec) error {
	lang, r, err := l.compile(ctx, spec)
	if err != nil {
		return l.reject(index, spec.ID, err)
	}

	if l.seen[spec.ID] {
		return l.reject(index, spec.ID, fmt.Errorf("%w: %q", ErrDuplicateID, spec.ID))
	}

	l.seen[spec.ID] = true
	l.byLang[lang] = append(l.byLang[lang], r)

	return nil
}

// reject records an authoring error. It returns the error in strict mode
// and nil otherwise.
func (l *loader) reject(index int, id string, err error) error {
	ce := &rule.CompileError{Index: index, ID: id, Err: err}

	if l.opts.Strict {
		return ce
	}

	l.logger.Warn("skipping rule", "index", index, "id", id, "error", err)
	l.skipped = append(l.skipped, ce)

	return nil
}

func (l *loader) compile(ctx context.Context, spec *Spec) (string, rule.Rule, error) {
	lang, err := NormalizeLanguage(spec.Language)
	if err != nil {
		return "", rule.Rule{}, err
	}

	p, err := l.compileMatcher(ctx, spec.Rule, lang)
	if err != nil {
		return "", rule.Rule{}, err
	}

	guard, err := compileConstraints(spec.Constraints, p)
	if err != nil {
		return "", rule.Rule{}, err
	}

	r := rule.Rule{
		ID:      spec.ID,
		Pattern: p,
		Guard:   guard,
		Message: spec.Message,
	}

	if spec.Fix != nil {
		r.Template = rewrite.ParseTemplate(trimBlockNewline(*spec.Fix))

		err = r.Template.Check(p)
		if err != nil {
			return "", rule.Rule{}, err
		}
	}

	return lang, r, nil
}

func (l *loader) compileMatcher(ctx context.Context, m Matcher, lang string) (*pattern.Pattern, error) {
	set := 0

	if m.Pattern != nil {
		set++
	}

	if m.Kind != "" {
		set++
	}

	if len(m.Any) > 0 {
		set++
	}

	if set != 1 {
		return nil, ErrInvalidMatcher
	}

	switch {
	case m.Kind != "":
		return pattern.Kind(m.Kind, lang), nil
	case m.Pattern != nil:
		return l.compilePattern(ctx, *m.Pattern, lang)
	}

	members := make([]*pattern.Pattern, 0, len(m.Any))

	for i, ps := range m.Any {
		p, err := l.compilePattern(ctx, ps, lang)
		if err != nil {
			return nil, fmt.Errorf("any[%d]: %w", i, err)
		}

		members = append(members, p)
	}

	return pattern.Alternate(members...), nil
}

func (l *loader) compilePattern(ctx context.Context, ps PatternSpec, lang string) (*pattern.Pattern, error) {
	if ps.Selector != "" {
		p, err := l.compiler.CompileSelector(ctx, ps.Context, ps.Selector, lang)
		if err != nil {
			return nil, fmt.Errorf("compile selector pattern: %w", err)
		}

		return p, nil
	}

	p, err := l.compiler.Compile(ctx, ps.Source, lang)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}

	return p, nil
}

func compileConstraints(specs map[string]ConstraintSpec, p *pattern.Pattern) (rule.Guard, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	constraints := make(map[string]rule.Constraint, len(specs))

	for name, spec := range specs {
		if !p.Binds(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnboundName, name)
		}

		c := rule.Constraint{Kind: spec.Kind}

		var err error

		if spec.Regex != "" {
			c.Regex, err = regexp.Compile(spec.Regex)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRegex, name, err)
			}
		}

		if spec.NotRegex != "" {
			c.NotRegex, err = regexp.Compile(spec.NotRegex)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRegex, name, err)
			}
		}

		constraints[name] = c
	}

	return rule.Constraints(constraints), nil
}

// NormalizeLanguage resolves a language name or alias ("ts", "golang", ...) to
// the canonical name of a supported dialect.
func NormalizeLanguage(raw string) (string, error) {
	lang := strings.ToLower(strings.TrimSpace(raw))

	if alias, ok := languageAliases[lang]; ok {
		lang = alias
	}

	if _, ok := pattern.LookupDialect(lang); !ok {
		return "", fmt.Errorf("%w: %q", pattern.ErrUnknownDialect, raw)
	}

	return lang, nil
}

// trimBlockNewline drops the single newline a YAML "|" block scalar leaves
// at the end of a fix.
func trimBlockNewline(fix string) string {
	return strings.TrimSuffix(fix, "\n")
}

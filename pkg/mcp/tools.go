package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/codemod/pkg/report"
	"github.com/Sumatoshi-tech/codemod/pkg/ruleset"
	"github.com/Sumatoshi-tech/codemod/pkg/runner"
)

// Tool name constants.
const (
	ToolNameRewrite = "codemod_rewrite"
	ToolNameScan    = "codemod_scan"
	ToolNameRules   = "codemod_check_rules"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
	// MaxRulesInputBytes is the maximum allowed size for an inline rule file (256 KB).
	MaxRulesInputBytes = 256 << 10
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrEmptyLanguage indicates the language parameter is empty.
	ErrEmptyLanguage = errors.New("language parameter is required and must not be empty")
	// ErrEmptyRules indicates the rules parameter is empty.
	ErrEmptyRules = errors.New("rules parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrRulesTooLarge indicates the rule file exceeds the size limit.
	ErrRulesTooLarge = errors.New("rules input exceeds maximum size")
	// ErrUnsupportedLanguage indicates the language has no grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrNoRulesForLanguage indicates no loaded rule targets the language.
	ErrNoRulesForLanguage = errors.New("no rules for language")
)

// Input types (auto-generate JSON schemas via struct tags).

// CodeInput is the input schema for codemod_rewrite and codemod_scan.
type CodeInput struct {
	Code     string `json:"code"           jsonschema:"source code to process"`
	Language string `json:"language"       jsonschema:"language of the code (java go javascript typescript tsx python)"`
	Path     string `json:"path,omitempty" jsonschema:"optional file name shown in the diff"`
	Rules    string `json:"rules"          jsonschema:"rule file in YAML with a top-level rules list"`
}

// RulesInput is the input schema for codemod_check_rules.
type RulesInput struct {
	Rules string `json:"rules" jsonschema:"rule file in YAML with a top-level rules list"`
}

// Output types.

// RewriteResult is the payload of codemod_rewrite.
type RewriteResult struct {
	Changed    bool               `json:"changed"`
	Output     string             `json:"output"`
	Diff       string             `json:"diff,omitempty"`
	Matches    []runner.MatchInfo `json:"matches"`
	Partial    bool               `json:"partial,omitempty"`
	RuleErrors []string           `json:"rule_errors,omitempty"`
}

// ScanResult is the payload of codemod_scan.
type ScanResult struct {
	Matches    []runner.MatchInfo `json:"matches"`
	Partial    bool               `json:"partial,omitempty"`
	RuleErrors []string           `json:"rule_errors,omitempty"`
}

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Message  string `json:"message,omitempty"`
	Fixable  bool   `json:"fixable"`
}

// RulesResult is the payload of codemod_check_rules.
type RulesResult struct {
	Rules       []RuleInfo `json:"rules"`
	Fingerprint string     `json:"fingerprint"`
	RuleErrors  []string   `json:"rule_errors,omitempty"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateCodeInput checks common code input constraints.
func validateCodeInput(in CodeInput) error {
	if in.Code == "" {
		return ErrEmptyCode
	}

	if in.Language == "" {
		return ErrEmptyLanguage
	}

	if len(in.Code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(in.Code), MaxCodeInputBytes)
	}

	return validateRules(in.Rules)
}

func validateRules(rules string) error {
	if rules == "" {
		return ErrEmptyRules
	}

	if len(rules) > MaxRulesInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrRulesTooLarge, len(rules), MaxRulesInputBytes)
	}

	return nil
}

// syntheticFilename creates a filename from a language identifier.
func syntheticFilename(language string) string {
	return "code." + language
}

func ruleErrors(set *ruleset.Set) []string {
	if len(set.Skipped) == 0 {
		return nil
	}

	out := make([]string, 0, len(set.Skipped))
	for _, e := range set.Skipped {
		out = append(out, e.Error())
	}

	return out
}

func (s *Server) loadRules(ctx context.Context, rules string) (*ruleset.Set, error) {
	set, err := ruleset.Load(ctx, s.compiler, ruleset.Options{Logger: s.logger}, []byte(rules))
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	return set, nil
}

// process loads the inline rules and runs them over the inline code.
func (s *Server) process(ctx context.Context, in CodeInput) (runner.FileResult, *ruleset.Set, error) {
	err := validateCodeInput(in)
	if err != nil {
		return runner.FileResult{}, nil, err
	}

	lang, err := ruleset.NormalizeLanguage(in.Language)
	if err != nil {
		return runner.FileResult{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, in.Language)
	}

	set, err := s.loadRules(ctx, in.Rules)
	if err != nil {
		return runner.FileResult{}, nil, err
	}

	if _, ok := set.Engine(lang); !ok {
		return runner.FileResult{}, nil, fmt.Errorf("%w: %s", ErrNoRulesForLanguage, lang)
	}

	path := in.Path
	if path == "" {
		path = syntheticFilename(lang)
	}

	r := runner.New(set, runner.Options{
		Cache:   s.cache,
		Metrics: s.rewriteMetrics,
		Tracer:  s.tracer,
		Logger:  s.logger,
	})

	res := r.Process(ctx, path, lang, []byte(in.Code))
	if res.Err != nil {
		return runner.FileResult{}, nil, res.Err
	}

	return res, set, nil
}

func (s *Server) handleRewrite(ctx context.Context, _ *mcpsdk.CallToolRequest, in CodeInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	res, set, err := s.process(ctx, in)
	if err != nil {
		return errorResult(err)
	}

	out := RewriteResult{
		Changed:    res.Changed,
		Output:     in.Code,
		Matches:    nonNil(res.Matches),
		Partial:    res.Partial,
		RuleErrors: ruleErrors(set),
	}

	if res.Changed {
		out.Output = string(res.Output)
		out.Diff = report.Unified(res.Path, res.Source, res.Output, report.DefaultContext)
	}

	return jsonResult(out)
}

func (s *Server) handleScan(ctx context.Context, _ *mcpsdk.CallToolRequest, in CodeInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	res, set, err := s.process(ctx, in)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(ScanResult{
		Matches:    nonNil(res.Matches),
		Partial:    res.Partial,
		RuleErrors: ruleErrors(set),
	})
}

func (s *Server) handleCheckRules(ctx context.Context, _ *mcpsdk.CallToolRequest, in RulesInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRules(in.Rules)
	if err != nil {
		return errorResult(err)
	}

	set, err := s.loadRules(ctx, in.Rules)
	if err != nil {
		return errorResult(err)
	}

	out := RulesResult{Rules: []RuleInfo{}, Fingerprint: set.Fingerprint, RuleErrors: ruleErrors(set)}

	for _, lang := range set.Languages() {
		engine, _ := set.Engine(lang)

		for _, r := range engine.Rules() {
			out.Rules = append(out.Rules, RuleInfo{
				ID:       r.ID,
				Language: lang,
				Message:  r.Message,
				Fixable:  r.Template != nil,
			})
		}
	}

	return jsonResult(out)
}

func nonNil(matches []runner.MatchInfo) []runner.MatchInfo {
	if matches == nil {
		return []runner.MatchInfo{}
	}

	return matches
}

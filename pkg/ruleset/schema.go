package ruleset

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// ErrInvalidFile is returned when a rule file fails validation outside of
// any single rule.
var ErrInvalidFile = errors.New("invalid rule file")

// SchemaError lists the schema violations of one rule.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "schema: " + strings.Join(e.Problems, "; ")
}

// validate checks doc against the rule file schema. Violations inside
// rules[i] are returned keyed by i; any other violation fails the file.
func validate(doc any) (map[int]*SchemaError, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate rule file: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	perRule := make(map[int]*SchemaError)

	var fileProblems []string

	for _, verr := range result.Errors() {
		problem := verr.Field() + ": " + verr.Description()

		idx, ok := ruleIndex(verr.Field())
		if !ok {
			fileProblems = append(fileProblems, problem)

			continue
		}

		se, exists := perRule[idx]
		if !exists {
			se = &SchemaError{}
			perRule[idx] = se
		}

		se.Problems = append(se.Problems, problem)
	}

	if len(fileProblems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, strings.Join(fileProblems, "; "))
	}

	return perRule, nil
}

// ruleIndex extracts i from a field path of the form "rules.i[.rest]".
func ruleIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "rules.")
	if !ok {
		return 0, false
	}

	head, _, _ := strings.Cut(rest, ".")

	idx, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}

	return idx, true
}

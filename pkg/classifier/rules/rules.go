// Package rules holds the pattern dictionaries of the defect classifier and
// loads replacement dictionaries from YAML.
//
// Every pattern is a case-insensitive regular expression searched anywhere in
// the text, so stems such as "fix" match "fixes" and "hotfix". A set with
// word_start anchors its patterns at word starts instead.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
)

// ErrInvalidRules is returned for rule data that fails schema validation or
// contains a pattern that does not compile.
var ErrInvalidRules = errors.New("invalid rules")

//go:embed schema.json
var schemaJSON string

// Rule is the declarative form of one label rule.
type Rule struct {
	Hook string `json:"hook,omitempty" yaml:"hook,omitempty"`
	// Topics groups alternative patterns; any group may match.
	Topics map[string][]string `json:"topics" yaml:"topics"`
}

// Set is the declarative rule data.
type Set struct {
	// WordStart anchors every pattern at a word start, so "fix" no longer
	// matches "prefix".
	WordStart bool            `json:"word_start,omitempty" yaml:"word_start,omitempty"`
	Defect    []string        `json:"defect"               yaml:"defect"`
	Labels    map[string]Rule `json:"labels"               yaml:"labels"`
}

var hooks = map[string]classifier.Hook{
	"":        classifier.NoHook,
	"none":    classifier.NoHook,
	"comment": classifier.CommentHook,
	"data":    classifier.DataHook,
	"include": classifier.IncludeHook,
	"service": classifier.ServiceHook,
}

// Default returns the shipped dictionaries.
func Default() Set {
	return Set{
		Defect: []string{"error", "bug", "fix", "issu", "mistake", "incorrect", "fault", "defect", "flaw", "solve"},
		Labels: map[string]Rule{
			"CONDITIONAL": {Topics: map[string][]string{
				"conditional": {"logic", "condit", "boolean"},
			}},
			"CONFIGURATION_DATA": {Hook: "data", Topics: map[string][]string{
				"storage": {"sql", "db", "databas"},
				"file":    {"file", "permiss"},
				"network": {"network", "ip", "address", "port", "tcp", "dhcp"},
				"user":    {"user", "usernam", "password"},
				"cache":   {"cach"},
			}},
			"DEPENDENCY": {Hook: "include", Topics: map[string][]string{
				"dependency": {
					"requir", "depend", "relat", "order", "sync", "compat", "ensur",
					"inherit", "version", "deprec", "upgrad", "updat",
				},
			}},
			"DOCUMENTATION": {Hook: "comment", Topics: map[string][]string{
				"documentation": {"doc", "comment", "spec", "licens", "copyright", "notic", "header", "readm"},
			}},
			"IDEMPOTENCY": {Topics: map[string][]string{
				"idempotency": {"idempot"},
			}},
			"SECURITY": {Topics: map[string][]string{
				"security": {"vul", "ssl", "secr", "authent", "password", "secur", "cve"},
			}},
			"SERVICE": {Hook: "service", Topics: map[string][]string{
				"service": {"servic", "server"},
			}},
			"SYNTAX": {Topics: map[string][]string{
				"syntax": {"compil", "lint", "warn", "typo", "spell", "indent", "regex", "variabl", "whitespac"},
			}},
		},
	}
}

// DefaultTable returns the compiled shipped dictionaries.
func DefaultTable() classifier.Table {
	table, err := Default().Compile()
	if err != nil {
		panic(fmt.Sprintf("rules: default dictionaries do not compile: %v", err))
	}

	return table
}

// Load reads, validates and compiles a YAML rules file.
func Load(path string) (classifier.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return classifier.Table{}, fmt.Errorf("read rules %s: %w", path, err)
	}

	set, err := Parse(data)
	if err != nil {
		return classifier.Table{}, fmt.Errorf("rules %s: %w", path, err)
	}

	return set.Compile()
}

// Parse validates YAML rule data against the schema and decodes it.
func Parse(data []byte) (Set, error) {
	if err := Validate(data); err != nil {
		return Set{}, err
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	return set, nil
}

// Validate checks YAML rule data against the embedded JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(msgs, "; "))
	}

	return nil
}

// Compile turns the declarative set into a classifier table.
func (s Set) Compile() (classifier.Table, error) {
	defect, err := compile(s.Defect, s.WordStart)
	if err != nil {
		return classifier.Table{}, fmt.Errorf("defect: %w", err)
	}

	table := classifier.Table{
		Defect: []*regexp.Regexp{defect},
		Rules:  make(map[classifier.Label]classifier.Rule, len(s.Labels)),
	}

	for name, rule := range s.Labels {
		label, err := classifier.ParseLabel(name)
		if err != nil {
			return classifier.Table{}, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}

		hook, ok := hooks[rule.Hook]
		if !ok {
			return classifier.Table{}, fmt.Errorf("%w: %s: unknown hook %q", ErrInvalidRules, name, rule.Hook)
		}

		compiled := classifier.Rule{Hook: hook}

		groups := make([]string, 0, len(rule.Topics))
		for group := range rule.Topics {
			groups = append(groups, group)
		}

		slices.Sort(groups)

		for _, group := range groups {
			re, err := compile(rule.Topics[group], s.WordStart)
			if err != nil {
				return classifier.Table{}, fmt.Errorf("%s/%s: %w", name, group, err)
			}

			compiled.Topics = append(compiled.Topics, re)
		}

		table.Rules[label] = compiled
	}

	return table, nil
}

func compile(patterns []string, wordStart bool) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%w: empty pattern list", ErrInvalidRules)
	}

	prefix := `(?i)`
	if wordStart {
		prefix += `\b`
	}

	re, err := regexp.Compile(prefix + `(?:` + strings.Join(patterns, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	return re, nil
}

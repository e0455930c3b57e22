// Package classifier decides whether a commit fixes a defect and which defect
// categories it carries, from the commit message and structural change signals.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownLabel is returned when parsing a name that is not a defect label.
var ErrUnknownLabel = errors.New("unknown defect label")

// Label is a defect category.
type Label uint8

// Defect labels, in rendering order.
const (
	Conditional Label = iota
	ConfigurationData
	Dependency
	Documentation
	Idempotency
	Security
	Service
	Syntax

	labelCount
)

var labelNames = [labelCount]string{
	Conditional:       "CONDITIONAL",
	ConfigurationData: "CONFIGURATION_DATA",
	Dependency:        "DEPENDENCY",
	Documentation:     "DOCUMENTATION",
	Idempotency:       "IDEMPOTENCY",
	Security:          "SECURITY",
	Service:           "SERVICE",
	Syntax:            "SYNTAX",
}

// AllLabels returns every defect label in rendering order.
func AllLabels() []Label {
	out := make([]Label, labelCount)
	for i := range out {
		out[i] = Label(i)
	}

	return out
}

// String returns the label name.
func (l Label) String() string {
	if l >= labelCount {
		return fmt.Sprintf("Label(%d)", l)
	}

	return labelNames[l]
}

// ParseLabel returns the label with the given name, case-insensitively.
func ParseLabel(name string) (Label, error) {
	for i, candidate := range labelNames {
		if strings.EqualFold(candidate, strings.TrimSpace(name)) {
			return Label(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if l >= labelCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLabel, l)
	}

	return []byte(labelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}

	*l = parsed

	return nil
}

// LabelSet is a duplicate-free set of labels. The zero value is empty.
type LabelSet uint16

// NewLabelSet builds a set from labels.
func NewLabelSet(labels ...Label) LabelSet {
	var set LabelSet
	for _, l := range labels {
		set = set.With(l)
	}

	return set
}

// With returns the set with l added.
func (s LabelSet) With(l Label) LabelSet {
	if l >= labelCount {
		return s
	}

	return s | 1<<l
}

// Has reports whether l is in the set.
func (s LabelSet) Has(l Label) bool {
	return l < labelCount && s&(1<<l) != 0
}

// Len returns the number of labels.
func (s LabelSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// Empty reports whether the set has no labels.
func (s LabelSet) Empty() bool {
	return s == 0
}

// Union returns the labels present in either set.
func (s LabelSet) Union(other LabelSet) LabelSet {
	return s | other
}

// Labels returns the members in rendering order.
func (s LabelSet) Labels() []Label {
	out := make([]Label, 0, s.Len())

	for l := range labelCount {
		if s.Has(l) {
			out = append(out, l)
		}
	}

	return out
}

// Names returns the member names in rendering order.
func (s LabelSet) Names() []string {
	labels := s.Labels()
	out := make([]string, len(labels))

	for i, l := range labels {
		out[i] = l.String()
	}

	return out
}

// String renders the set as a comma-separated list.
func (s LabelSet) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON renders the set as an array of names.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON parses an array of names.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decode label set: %w", err)
	}

	return s.setNames(names)
}

// MarshalYAML renders the set as a sequence of names.
func (s LabelSet) MarshalYAML() (any, error) {
	return s.Names(), nil
}

// UnmarshalYAML parses a sequence of names.
func (s *LabelSet) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return fmt.Errorf("decode label set: %w", err)
	}

	return s.setNames(names)
}

func (s *LabelSet) setNames(names []string) error {
	var set LabelSet

	for _, name := range names {
		l, err := ParseLabel(name)
		if err != nil {
			return err
		}

		set = set.With(l)
	}

	*s = set

	return nil
}

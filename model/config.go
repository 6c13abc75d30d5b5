package model

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CaseSet is a collection of case definitions loaded from config.
type CaseSet struct {
	Version int            `json:"version" yaml:"version"`
	Cases   []CaseConfig   `json:"cases" yaml:"cases"`
	Meta    map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// CaseConfig describes a single case definition.
type CaseConfig struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
	Version         string           `json:"version,omitempty" yaml:"version,omitempty"`
	ExternalSources []string         `json:"external_sources,omitempty" yaml:"external_sources,omitempty"`
	ExitCriteria    []SentryConfig   `json:"exit_criteria,omitempty" yaml:"exit_criteria,omitempty"`
	Activities      []ActivityConfig `json:"activities" yaml:"activities"`
}

// ActivityConfig describes a plan item.
type ActivityConfig struct {
	ID               string           `json:"id" yaml:"id"`
	Name             string           `json:"name,omitempty" yaml:"name,omitempty"`
	Kind             string           `json:"kind" yaml:"kind"`
	ManualActivation *RuleConfig      `json:"manual_activation,omitempty" yaml:"manual_activation,omitempty"`
	Required         *RuleConfig      `json:"required,omitempty" yaml:"required,omitempty"`
	Repetition       *RuleConfig      `json:"repetition,omitempty" yaml:"repetition,omitempty"`
	EntryCriteria    []SentryConfig   `json:"entry_criteria,omitempty" yaml:"entry_criteria,omitempty"`
	ExitCriteria     []SentryConfig   `json:"exit_criteria,omitempty" yaml:"exit_criteria,omitempty"`
	Children         []ActivityConfig `json:"children,omitempty" yaml:"children,omitempty"`
}

// SentryConfig describes an entry or exit criterion.
type SentryConfig struct {
	ID string         `json:"id" yaml:"id"`
	On []OnPartConfig `json:"on,omitempty" yaml:"on,omitempty"`
	If string         `json:"if,omitempty" yaml:"if,omitempty"`
}

// OnPartConfig is a (source, event) pair.
type OnPartConfig struct {
	Source string `json:"source" yaml:"source"`
	Event  string `json:"event" yaml:"event"`
}

// RuleConfig accepts either a boolean constant or an expression string.
type RuleConfig struct {
	Value      bool   `json:"value,omitempty" yaml:"value,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// UnmarshalYAML accepts `true`, `"amount > 100"` or a mapping.
func (r *RuleConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if b, err := strconv.ParseBool(strings.TrimSpace(node.Value)); err == nil && node.Tag != "!!str" {
			r.Value = b
			r.Expression = ""
			return nil
		}
		r.Expression = strings.TrimSpace(node.Value)
		return nil
	}
	type plain RuleConfig
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*r = RuleConfig(out)
	return nil
}

func (r *RuleConfig) rule() *Rule {
	if r == nil {
		return nil
	}
	if expr := strings.TrimSpace(r.Expression); expr != "" {
		return ExpressionRule(expr)
	}
	return ConstantRule(r.Value)
}

// Validate performs basic structural validation of every case.
func (s CaseSet) Validate() error {
	seen := make(map[string]struct{}, len(s.Cases))
	for idx, c := range s.Cases {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("case[%d]: %w", idx, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("case[%d]: duplicate case id %s", idx, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// Validate builds the case once and reports definition errors.
func (c CaseConfig) Validate() error {
	_, err := c.Build()
	return err
}

// Build converts the config into an immutable definition.
func (c CaseConfig) Build() (*CaseDefinition, error) {
	if strings.TrimSpace(c.ID) == "" {
		return nil, definitionError("", "case id is required")
	}
	b := NewCase(c.ID).Named(c.Name).Version(c.Version).External(c.ExternalSources...)
	for _, sc := range c.ExitCriteria {
		parts, err := sc.onParts(c.ID)
		if err != nil {
			return nil, err
		}
		b.ExitIf(sc.ID, sc.If, parts...)
	}
	for _, ac := range c.Activities {
		if err := ac.apply(c.ID, b.ActivityBuilder); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func (a ActivityConfig) apply(caseID string, parent *ActivityBuilder) error {
	kind, ok := ParseBehaviorKind(a.Kind)
	if !ok {
		return definitionError(caseID, "activity %q has unknown kind %q", a.ID, a.Kind)
	}
	child := parent.Child(a.ID, kind).Name(a.Name)
	child.act.ManualActivation = a.ManualActivation.rule()
	child.act.Required = a.Required.rule()
	child.act.Repetition = a.Repetition.rule()
	for _, sc := range a.EntryCriteria {
		parts, err := sc.onParts(caseID)
		if err != nil {
			return err
		}
		child.EntryIf(sc.ID, sc.If, parts...)
	}
	for _, sc := range a.ExitCriteria {
		parts, err := sc.onParts(caseID)
		if err != nil {
			return err
		}
		child.ExitIf(sc.ID, sc.If, parts...)
	}
	for _, grandchild := range a.Children {
		if err := grandchild.apply(caseID, child); err != nil {
			return err
		}
	}
	return nil
}

func (s SentryConfig) onParts(caseID string) ([]OnPart, error) {
	parts := make([]OnPart, 0, len(s.On))
	for _, on := range s.On {
		evt, ok := ParseStandardEvent(on.Event)
		if !ok {
			return nil, definitionError(caseID, "sentry %q: unknown standard event %q", s.ID, on.Event)
		}
		parts = append(parts, On(on.Source, evt))
	}
	return parts, nil
}

// ParseCaseSet parses JSON or YAML into a CaseSet and validates it.
func ParseCaseSet(data []byte) (CaseSet, error) {
	var set CaseSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		// yaml accepts JSON documents as well
		return set, err
	}
	return set, set.Validate()
}

// LoadCaseSet reads and parses a definition file.
func LoadCaseSet(path string) (CaseSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CaseSet{}, fmt.Errorf("read case definitions %s: %w", path, err)
	}
	return ParseCaseSet(data)
}

// BuildAll builds every case in the set keyed by case id.
func (s CaseSet) BuildAll() (map[string]*CaseDefinition, error) {
	out := make(map[string]*CaseDefinition, len(s.Cases))
	for _, c := range s.Cases {
		def, err := c.Build()
		if err != nil {
			return nil, fmt.Errorf("build case %s: %w", c.ID, err)
		}
		out[def.ID] = def
	}
	return out, nil
}

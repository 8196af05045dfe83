// Package steps describes the ordered filter steps of the catalog wizard.
package steps

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/facetbot/catalog/bucket"
)

// AttributeRef names a column on a catalog entity. It is resolved against the
// query schema when a query is composed.
type AttributeRef struct {
	Entity string `yaml:"entity"`
	Column string `yaml:"column"`
	As     string `yaml:"as,omitempty"`
}

// ParseAttribute reads "entity.column" or "entity.column as alias".
func ParseAttribute(s string) (AttributeRef, error) {
	fields := strings.Fields(s)
	var ref AttributeRef
	switch {
	case len(fields) == 1:
	case len(fields) == 3 && strings.EqualFold(fields[1], "as"):
		ref.As = fields[2]
	default:
		return AttributeRef{}, fmt.Errorf("steps: attribute %q: want entity.column [as alias]", s)
	}
	entity, column, ok := strings.Cut(fields[0], ".")
	if !ok || entity == "" || column == "" {
		return AttributeRef{}, fmt.Errorf("steps: attribute %q: want entity.column", s)
	}
	ref.Entity, ref.Column = entity, column
	return ref, nil
}

// MustAttribute is ParseAttribute for static definitions.
func MustAttribute(s string) AttributeRef {
	ref, err := ParseAttribute(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// UnmarshalYAML accepts both the short string form and the mapping form.
func (a *AttributeRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		ref, err := ParseAttribute(node.Value)
		if err != nil {
			return err
		}
		*a = ref
		return nil
	}
	type plain AttributeRef
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = AttributeRef(p)
	return nil
}

// IsZero reports whether the reference is unset.
func (a AttributeRef) IsZero() bool { return a.Entity == "" && a.Column == "" }

// Name returns the output name of the attribute: the alias when set, else the column.
func (a AttributeRef) Name() string {
	if a.As != "" {
		return a.As
	}
	return a.Column
}

func (a AttributeRef) String() string {
	s := a.Entity + "." + a.Column
	if a.As != "" {
		s += " as " + a.As
	}
	return s
}

// Step is a single wizard stage.
type Step struct {
	Position    int            `yaml:"position"`
	Key         string         `yaml:"key"`
	Prompt      string         `yaml:"prompt"`
	Select      []AttributeRef `yaml:"select"`
	Group       []AttributeRef `yaml:"group"`
	Order       []AttributeRef `yaml:"order"`
	Where       AttributeRef   `yaml:"where"`
	Joins       []string       `yaml:"joins"`
	Leaf        bool           `yaml:"leaf"`
	MultiSelect bool           `yaml:"multi_select"`
	Range       bucket.Spec    `yaml:"range"`
}

// ByRange reports whether the step's values are grouped into buckets.
func (s Step) ByRange() bool { return s.Range.Enabled() }

// Attributes returns every attribute the step references.
func (s Step) Attributes() []AttributeRef {
	out := make([]AttributeRef, 0, len(s.Select)+len(s.Group)+len(s.Order)+1)
	out = append(out, s.Select...)
	out = append(out, s.Group...)
	out = append(out, s.Order...)
	if !s.Where.IsZero() {
		out = append(out, s.Where)
	}
	return out
}

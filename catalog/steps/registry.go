package steps

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBase is the entity every catalog query starts from.
const DefaultBase = "product"

// MaxKeyBytes bounds step keys so every action token fits in Telegram callback data.
const MaxKeyBytes = 32

// reserved holds token prefixes used by navigation actions; a step key equal to one of
// them would make callback data ambiguous.
var reserved = map[string]struct{}{
	"multiple": {}, "prev": {}, "next": {}, "start": {}, "about": {},
	"back": {}, "no": {}, "step-forward": {}, "select-category": {},
}

// ConfigError reports an invalid step definition or an out-of-range lookup.
type ConfigError struct {
	Position int
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("steps: position %d: %s", e.Position, e.Reason)
	}
	return "steps: " + e.Reason
}

// Definition is the serialized form of a registry.
type Definition struct {
	Base  string `yaml:"base"`
	Steps []Step `yaml:"steps"`
}

// Registry is an immutable, validated list of steps indexed by position.
// It is safe for concurrent use.
type Registry struct {
	base  string
	steps []Step
	byKey map[string]int
}

// New validates def and builds a registry.
func New(def Definition) (*Registry, error) {
	base := def.Base
	if base == "" {
		base = DefaultBase
	}
	if len(def.Steps) == 0 {
		return nil, &ConfigError{Reason: "no steps defined"}
	}

	r := &Registry{
		base:  base,
		steps: make([]Step, len(def.Steps)),
		byKey: make(map[string]int, len(def.Steps)),
	}
	reachable := map[string]struct{}{base: {}}

	for i, st := range def.Steps {
		want := i + 1
		if st.Position != want {
			return nil, &ConfigError{Position: st.Position, Reason: fmt.Sprintf("positions must be contiguous from 1, expected %d", want)}
		}
		if err := validateKey(st.Key); err != nil {
			return nil, &ConfigError{Position: want, Reason: err.Error()}
		}
		if _, dup := r.byKey[st.Key]; dup {
			return nil, &ConfigError{Position: want, Reason: fmt.Sprintf("duplicate key %q", st.Key)}
		}
		if len(st.Select) == 0 {
			return nil, &ConfigError{Position: want, Reason: "select is empty"}
		}
		if st.Leaf && want != len(def.Steps) {
			return nil, &ConfigError{Position: want, Reason: "only the last step can be a leaf step"}
		}
		if st.Leaf && (st.MultiSelect || st.ByRange()) {
			return nil, &ConfigError{Position: want, Reason: "leaf step cannot be multi-select or bucketed"}
		}
		if !st.Leaf && st.Where.IsZero() {
			return nil, &ConfigError{Position: want, Reason: "where attribute is required"}
		}
		if err := st.Range.Validate(); err != nil {
			return nil, &ConfigError{Position: want, Reason: err.Error()}
		}
		for _, j := range st.Joins {
			reachable[j] = struct{}{}
		}
		for _, attr := range st.Attributes() {
			if _, ok := reachable[attr.Entity]; !ok {
				return nil, &ConfigError{Position: want, Reason: fmt.Sprintf("attribute %s is not reachable: entity %q is not joined at or before this step", attr, attr.Entity)}
			}
		}
		st.Joins = append([]string(nil), st.Joins...)
		r.steps[i] = st
		r.byKey[st.Key] = want
	}
	if !r.steps[len(r.steps)-1].Leaf {
		return nil, &ConfigError{Position: len(r.steps), Reason: "last step must be a leaf step"}
	}
	return r, nil
}

func validateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("key is empty")
	case strings.ContainsAny(key, "_ "):
		return fmt.Errorf("key %q must not contain underscores or spaces", key)
	case len(key) > MaxKeyBytes:
		return fmt.Errorf("key %q is longer than %d bytes", key, MaxKeyBytes)
	}
	if _, ok := reserved[key]; ok {
		return fmt.Errorf("key %q is reserved", key)
	}
	return nil
}

// Load reads a YAML step definition from path.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("steps: read %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("steps: parse %s: %w", path, err)
	}
	return New(def)
}

// Base returns the root entity of every query.
func (r *Registry) Base() string { return r.base }

// Count returns the number of steps.
func (r *Registry) Count() int { return len(r.steps) }

// Get returns the step at position.
func (r *Registry) Get(position int) (Step, error) {
	if position < 1 || position > len(r.steps) {
		return Step{}, &ConfigError{Position: position, Reason: fmt.Sprintf("out of range [1,%d]", len(r.steps))}
	}
	return r.steps[position-1], nil
}

// IsMultiSelect reports whether the step at position accepts several values.
func (r *Registry) IsMultiSelect(position int) (bool, error) {
	st, err := r.Get(position)
	if err != nil {
		return false, err
	}
	return st.MultiSelect, nil
}

// ByKey finds a step by its facet key.
func (r *Registry) ByKey(key string) (Step, bool) {
	pos, ok := r.byKey[key]
	if !ok {
		return Step{}, false
	}
	return r.steps[pos-1], true
}

// Steps returns a copy of all steps in position order.
func (r *Registry) Steps() []Step {
	return append([]Step(nil), r.steps...)
}

// Leaf returns the final step.
func (r *Registry) Leaf() Step { return r.steps[len(r.steps)-1] }

// Package session holds the per-chat state of the catalog wizard.
package session

import (
	"slices"
	"sort"
)

// Selections maps a step position to an ordered set of chosen values.
// The zero value is ready to use.
type Selections struct {
	m map[int][]string
}

// Values returns the chosen values at position in selection order.
func (s *Selections) Values(position int) []string {
	if s.m == nil {
		return nil
	}
	return slices.Clone(s.m[position])
}

// Has reports whether value is chosen at position.
func (s *Selections) Has(position int, value string) bool {
	return slices.Contains(s.m[position], value)
}

// Toggle flips value at position and reports whether it is selected afterwards.
func (s *Selections) Toggle(position int, value string) bool {
	s.init()
	vals := s.m[position]
	if i := slices.Index(vals, value); i >= 0 {
		vals = slices.Delete(vals, i, i+1)
		if len(vals) == 0 {
			delete(s.m, position)
		} else {
			s.m[position] = vals
		}
		return false
	}
	s.m[position] = append(vals, value)
	return true
}

// Set replaces the selection at position with a single value.
func (s *Selections) Set(position int, value string) {
	s.init()
	s.m[position] = []string{value}
}

// Clear drops the selection at position.
func (s *Selections) Clear(position int) {
	delete(s.m, position)
}

// DropFrom removes every selection at position or later.
func (s *Selections) DropFrom(position int) {
	for p := range s.m {
		if p >= position {
			delete(s.m, p)
		}
	}
}

// Reset clears all selections.
func (s *Selections) Reset() { s.m = nil }

// Positions returns the positions that hold a non-empty selection, ascending.
func (s *Selections) Positions() []int {
	out := make([]int, 0, len(s.m))
	for p, vals := range s.m {
		if len(vals) > 0 {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy.
func (s *Selections) Clone() Selections {
	if s.m == nil {
		return Selections{}
	}
	m := make(map[int][]string, len(s.m))
	for p, vals := range s.m {
		m[p] = slices.Clone(vals)
	}
	return Selections{m: m}
}

// Equal compares two selection states including value order.
func (s *Selections) Equal(o *Selections) bool {
	a, b := s.Positions(), o.Positions()
	if !slices.Equal(a, b) {
		return false
	}
	for _, p := range a {
		if !slices.Equal(s.m[p], o.m[p]) {
			return false
		}
	}
	return true
}

func (s *Selections) init() {
	if s.m == nil {
		s.m = make(map[int][]string)
	}
}

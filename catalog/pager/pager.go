// Package pager slices element lists into pages and builds the page controls.
package pager

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSize is the number of elements per page when none is configured.
const DefaultSize = 2

// Control tokens.
const (
	PrevPrefix = "prev_"
	NextPrefix = "next_"
	NoAnswer   = "no_answer"
)

// Page is one window over a list.
type Page[T any] struct {
	Items      []T
	Index      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Control is a single pager button.
type Control struct {
	Text  string
	Token string
}

// Slice returns page index of elements. The index is clamped into range, so callers
// never see an empty page for a non-empty list.
func Slice[T any](elements []T, index, size int) Page[T] {
	if size <= 0 {
		size = DefaultSize
	}
	total := (len(elements) + size - 1) / size
	if total < 1 {
		total = 1
	}
	index = Clamp(index, total)

	start := index * size
	end := start + size
	if start > len(elements) {
		start = len(elements)
	}
	if end > len(elements) {
		end = len(elements)
	}
	return Page[T]{
		Items:      elements[start:end],
		Index:      index,
		TotalPages: total,
		HasPrev:    index > 0,
		HasNext:    index < total-1,
	}
}

// Clamp forces index into [0, total-1].
func Clamp(index, total int) int {
	if index >= total {
		index = total - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

// Controls returns prev, counter and next buttons. A single page has no controls.
func (p Page[T]) Controls() []Control {
	if p.TotalPages <= 1 {
		return nil
	}
	out := make([]Control, 0, 3)
	if p.HasPrev {
		out = append(out, Control{Text: "<", Token: PrevPrefix + strconv.Itoa(p.Index-1)})
	}
	out = append(out, Control{Text: fmt.Sprintf("%d of %d", p.Index+1, p.TotalPages), Token: NoAnswer})
	if p.HasNext {
		out = append(out, Control{Text: ">", Token: NextPrefix + strconv.Itoa(p.Index+1)})
	}
	return out
}

// ParseToken extracts the target page from a prev_/next_ token.
func ParseToken(token string) (int, bool) {
	var rest string
	switch {
	case strings.HasPrefix(token, PrevPrefix):
		rest = strings.TrimPrefix(token, PrevPrefix)
	case strings.HasPrefix(token, NextPrefix):
		rest = strings.TrimPrefix(token, NextPrefix)
	default:
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// State tracks the current page of one step.
type State struct {
	Step  int
	Index int
}

// Enter switches to step, resetting the page when the step changes.
func (s *State) Enter(step int) {
	if s.Step != step {
		s.Step = step
		s.Index = 0
	}
}

// Go sets the page index for the current step.
func (s *State) Go(index int) { s.Index = index }

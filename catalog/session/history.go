package session

import (
	"errors"
	"slices"

	"github.com/m3rciful/facetbot/catalog/query"
)

// ErrNoPriorState is returned by Back when there is nothing to return to.
var ErrNoPriorState = errors.New("session: no prior state")

// Entry is a snapshot of one rendered screen.
type Entry struct {
	Position   int
	Handler    string
	Screen     Screen
	Selections Selections
	Page       int
	Elements   []query.Row
}

func (e Entry) same(o Entry) bool {
	return e.Position == o.Position && e.Handler == o.Handler && e.Screen.Signature() == o.Screen.Signature()
}

// History is a LIFO stack of rendered screens.
type History struct {
	entries []Entry
}

// Push appends e unless it is identical to the current top. It reports whether e was stored.
func (h *History) Push(e Entry) bool {
	if n := len(h.entries); n > 0 && h.entries[n-1].same(e) {
		return false
	}
	e.Screen = e.Screen.clone()
	e.Selections = e.Selections.Clone()
	e.Elements = slices.Clone(e.Elements)
	h.entries = append(h.entries, e)
	return true
}

// Replace overwrites the top entry when it shows the same position through the same
// handler, and pushes otherwise. Re-renders of one step (toggles, paging) use it so
// that Back leaves the step instead of replaying each change.
func (h *History) Replace(e Entry) {
	n := len(h.entries)
	if n == 0 || h.entries[n-1].Position != e.Position || h.entries[n-1].Handler != e.Handler {
		h.Push(e)
		return
	}
	e.Screen = e.Screen.clone()
	e.Selections = e.Selections.Clone()
	e.Elements = slices.Clone(e.Elements)
	h.entries[n-1] = e
}

// Back discards the top entry and returns the new top.
// With fewer than two entries the stack is left unchanged and ErrNoPriorState is returned.
func (h *History) Back() (Entry, error) {
	if len(h.entries) <= 1 {
		return Entry{}, ErrNoPriorState
	}
	h.entries = h.entries[:len(h.entries)-1]
	top := h.entries[len(h.entries)-1]
	top.Selections = top.Selections.Clone()
	top.Elements = slices.Clone(top.Elements)
	return top, nil
}

// Top returns the current entry.
func (h *History) Top() (Entry, bool) {
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Len returns the stack depth.
func (h *History) Len() int { return len(h.entries) }

// Reset empties the stack.
func (h *History) Reset() { h.entries = nil }

package session

import (
	"github.com/m3rciful/facetbot/catalog/pager"
	"github.com/m3rciful/facetbot/catalog/query"
)

// Greeting is the position of the start screen.
const Greeting = 0

// Session is the wizard state of one chat. It is not safe for concurrent use;
// callers serialize access per chat.
type Session struct {
	ChatID     int64
	Position   int
	Selections Selections
	History    History
	Pager      pager.State
	Elements   []query.Row
	// Displayed is the signature of the screen currently shown to the user.
	Displayed string
}

// New returns a session at the greeting.
func New(chatID int64) *Session {
	return &Session{ChatID: chatID}
}

// Reset returns the session to the greeting and forgets everything else.
func (s *Session) Reset() {
	s.Position = Greeting
	s.Selections.Reset()
	s.History.Reset()
	s.Pager = pager.State{}
	s.Elements = nil
	s.Displayed = ""
}

// Restore applies a history entry.
func (s *Session) Restore(e Entry) {
	s.Position = e.Position
	s.Selections = e.Selections.Clone()
	s.Pager = pager.State{Step: e.Position, Index: e.Page}
	s.Elements = e.Elements
}

// Snapshot captures the current state with the screen that shows it.
func (s *Session) Snapshot(handler string, screen Screen) Entry {
	return Entry{
		Position:   s.Position,
		Handler:    handler,
		Screen:     screen,
		Selections: s.Selections.Clone(),
		Page:       s.Pager.Index,
		Elements:   s.Elements,
	}
}

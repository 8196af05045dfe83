package session

import (
	"encoding/json"
	"slices"

	"github.com/m3rciful/facetbot/catalog/pager"
)

// Option is one selectable button on a screen.
type Option struct {
	Text     string `json:"text"`
	Token    string `json:"token,omitempty"`
	URL      string `json:"url,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// Screen is the presentation-neutral description of what the user sees.
// Options render one per row, then the pager row, then Actions one per row, then Nav as one row.
type Screen struct {
	Text    string          `json:"text"`
	Options []Option        `json:"options,omitempty"`
	Pager   []pager.Control `json:"pager,omitempty"`
	Actions []Option        `json:"actions,omitempty"`
	Nav     []Option        `json:"nav,omitempty"`
}

// Signature identifies the rendered content. Equal signatures mean the user would see
// the same message.
func (s Screen) Signature() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return s.Text
	}
	return string(raw)
}

func (s Screen) clone() Screen {
	s.Options = slices.Clone(s.Options)
	s.Pager = slices.Clone(s.Pager)
	s.Actions = slices.Clone(s.Actions)
	s.Nav = slices.Clone(s.Nav)
	return s
}

// Package wizard drives a chat through the catalog filter steps.
package wizard

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/m3rciful/facetbot/catalog/pager"
)

// Kind enumerates the actions a user can trigger.
type Kind int

const (
	KindUnknown Kind = iota
	KindStart
	KindAbout
	KindBegin
	KindBack
	KindNoAnswer
	KindCommit
	KindPage
	KindToggle
	KindSelect
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindStart:    "start",
	KindAbout:    "about",
	KindBegin:    "begin",
	KindBack:     "back",
	KindNoAnswer: "no_answer",
	KindCommit:   "commit",
	KindPage:     "page",
	KindToggle:   "toggle",
	KindSelect:   "select",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Tokens carried in callback data.
const (
	TokenStart    = "start"
	TokenAbout    = "about"
	TokenBegin    = "select-category"
	TokenBack     = "back"
	TokenCommit   = "step-forward"
	TokenNoAnswer = pager.NoAnswer
)

const multiplePrefix = "multiple_"

// MaxTokenBytes is the Telegram limit on callback data.
const MaxTokenBytes = 64

const hashPrefix = "#"

// Action is a parsed user action.
type Action struct {
	Kind  Kind
	Facet string
	Value string
	Page  int
	// Command marks actions that arrived as a typed command rather than a button.
	Command bool
	Raw     string
}

// Parse decodes a callback token. It never fails: unrecognized input yields KindUnknown.
func Parse(token string) Action {
	raw := token
	token = strings.TrimSpace(token)
	a := Action{Raw: raw}
	switch token {
	case TokenStart:
		a.Kind = KindStart
		return a
	case TokenAbout:
		a.Kind = KindAbout
		return a
	case TokenBegin:
		a.Kind = KindBegin
		return a
	case TokenBack:
		a.Kind = KindBack
		return a
	case TokenCommit:
		a.Kind = KindCommit
		return a
	case TokenNoAnswer:
		a.Kind = KindNoAnswer
		return a
	}
	if n, ok := pager.ParseToken(token); ok {
		a.Kind, a.Page = KindPage, n
		return a
	}
	if rest, ok := strings.CutPrefix(token, multiplePrefix); ok {
		facet, value, ok := strings.Cut(rest, "_")
		if ok && facet != "" && value != "" {
			a.Kind, a.Facet, a.Value = KindToggle, facet, value
		}
		return a
	}
	facet, value, ok := strings.Cut(token, "_")
	if ok && facet != "" && value != "" {
		a.Kind, a.Facet, a.Value = KindSelect, facet, value
	}
	return a
}

// SelectToken encodes a plain selection.
func SelectToken(facet, value string) string { return facet + "_" + value }

// ToggleToken encodes a multi-select toggle.
func ToggleToken(facet, value string) string { return multiplePrefix + facet + "_" + value }

// ValueKey returns the form of value carried in the tokens of facet. Values that
// would push a toggle token past MaxTokenBytes travel as a hash of the value.
func ValueKey(facet, value string) string {
	if !strings.HasPrefix(value, hashPrefix) && len(ToggleToken(facet, value)) <= MaxTokenBytes {
		return value
	}
	return hashPrefix + strconv.FormatUint(xxhash.Sum64String(value), 36)
}

package wizard

import (
	"context"
	"errors"

	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/session"
)

// Mode tells the sink whether to replace the current message or send a new one.
type Mode int

const (
	ModeEdit Mode = iota
	ModeSend
)

// Detail is the card of one leaf record.
type Detail struct {
	ID          int64
	Label       string
	Description string
	DocURL      string
	ImageURL    string
	// Caption is the ready-to-send card text.
	Caption string
	// DocButton labels the link to DocURL.
	DocButton string
}

// Output is one render instruction. When Detail is set the sink shows the card
// instead of Screen.
type Output struct {
	Mode   Mode
	Screen session.Screen
	Detail *Detail
}

// Sink presents wizard output to the user.
type Sink interface {
	Render(ctx context.Context, out Output) error
	// Notify shows a transient notice without touching the current message.
	Notify(ctx context.Context, text string) error
}

var (
	// ErrNoPriorState is returned when back is pressed with nothing to return to.
	ErrNoPriorState = session.ErrNoPriorState
	// ErrLeafNotFound is returned when the selected record is not among the rendered ones.
	ErrLeafNotFound = errors.New("wizard: leaf not found")
	// ErrUnknownAction is returned for tokens that do not parse into an action.
	ErrUnknownAction = errors.New("wizard: unknown action")
	// ErrOutdated is returned for actions that target a step other than the current one.
	ErrOutdated = errors.New("wizard: outdated action")
)

// RenderError wraps a sink failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "wizard: render: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

func outcomeOf(err error) string {
	var (
		qe  *query.QueryExecutionError
		mre *query.MalformedRangeError
		re  *RenderError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &re):
		return "render_failed"
	case errors.Is(err, ErrNoPriorState):
		return "no_prior_state"
	case errors.Is(err, ErrLeafNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownAction):
		return "unknown"
	case errors.Is(err, ErrOutdated):
		return "outdated"
	case errors.As(err, &mre):
		return "malformed_range"
	case errors.As(err, &qe):
		return "query_failed"
	default:
		return "fail"
	}
}

package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/facetbot/catalog/metrics"
	"github.com/m3rciful/facetbot/catalog/pager"
	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/session"
	"github.com/m3rciful/facetbot/catalog/steps"
	"github.com/m3rciful/facetbot/catalog/views"
	"github.com/m3rciful/facetbot/core/logger"
)

// Handler names stored in history entries for non-step screens.
const (
	handlerGreeting = "greeting"
	handlerAbout    = "about"
)

// Options tunes a Controller.
type Options struct {
	PageSize     int
	QueryTimeout time.Duration
	ViewTimeout  time.Duration
	Texts        Texts
	Metrics      *metrics.Metrics
}

// Controller applies actions to sessions. It holds no per-session state and is safe
// for concurrent use as long as each session is handled by one goroutine at a time.
type Controller struct {
	reg   *steps.Registry
	exec  query.Executor
	views views.Counter
	opts  Options
}

// NewController wires a controller. counter may be nil to disable view counting.
func NewController(reg *steps.Registry, exec query.Executor, counter views.Counter, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = pager.DefaultSize
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.ViewTimeout <= 0 {
		opts.ViewTimeout = 3 * time.Second
	}
	opts.Texts = opts.Texts.Merge(DefaultTexts())
	return &Controller{reg: reg, exec: exec, views: counter, opts: opts}
}

// Handle applies a to s and renders the result through sink. Every path ends with the
// session in a consistent state; a non-nil error describes what the user was shown
// (ErrNoPriorState, ErrOutdated, *query.QueryExecutionError, ...) or wraps a sink
// failure in *RenderError.
func (c *Controller) Handle(ctx context.Context, s *session.Session, a Action, sink Sink) error {
	start := time.Now()
	from := s.Position

	err := c.dispatch(ctx, s, a, sink)

	outcome := outcomeOf(err)
	c.opts.Metrics.ObserveAction(a.Kind.String(), outcome)
	attrs := []slog.Attr{
		slog.String("status", statusOf(err)),
		slog.String("op", a.Kind.String()),
		slog.Int("from", from),
		slog.Int("position", s.Position),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(start)),
	}
	if a.Facet != "" {
		attrs = append(attrs, slog.String("facet", a.Facet))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	var re *RenderError
	if errors.As(err, &re) {
		logger.Error(ctx, logger.CompWizard, "wizard.action", attrs...)
	} else {
		logger.Info(ctx, logger.CompWizard, "wizard.action", attrs...)
	}
	return err
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	var re *RenderError
	if errors.As(err, &re) {
		return "fail"
	}
	return "skip"
}

func (c *Controller) dispatch(ctx context.Context, s *session.Session, a Action, sink Sink) error {
	switch a.Kind {
	case KindStart:
		s.Reset()
		mode := ModeEdit
		if a.Command {
			mode = ModeSend
		}
		return c.greeting(ctx, s, sink, mode, "")
	case KindAbout:
		return c.about(ctx, s, sink)
	case KindBegin:
		return c.advance(ctx, s, sink, 1, session.Selections{}, "")
	case KindSelect:
		return c.selectValue(ctx, s, sink, a)
	case KindToggle:
		return c.toggle(ctx, s, sink, a)
	case KindCommit:
		return c.commit(ctx, s, sink)
	case KindPage:
		return c.page(ctx, s, sink, a.Page)
	case KindBack:
		return c.back(ctx, s, sink)
	case KindNoAnswer:
		return nil
	default:
		return c.notify(ctx, sink, c.opts.Texts.Unknown, fmt.Errorf("%w: %q", ErrUnknownAction, a.Raw))
	}
}

func (c *Controller) greeting(ctx context.Context, s *session.Session, sink Sink, mode Mode, notice string) error {
	s.Position = session.Greeting
	s.Elements = nil
	return c.show(ctx, s, sink, handlerGreeting, c.greetingScreen(notice), mode, false)
}

func (c *Controller) about(ctx context.Context, s *session.Session, sink Sink) error {
	s.Position = session.Greeting
	s.Elements = nil
	return c.show(ctx, s, sink, handlerAbout, c.aboutScreen(), ModeEdit, false)
}

// advance composes and runs the query of target against candidate selections. The
// session is only updated when the query succeeds.
func (c *Controller) advance(ctx context.Context, s *session.Session, sink Sink, target int, candidate session.Selections, notice string) error {
	st, err := c.reg.Get(target)
	if err != nil {
		return c.failInPlace(ctx, s, sink, c.opts.Texts.TryLater, err)
	}

	q, err := query.Compose(c.reg, &candidate, target)
	var mre *query.MalformedRangeError
	if errors.As(err, &mre) {
		logger.Warn(ctx, logger.CompWizard, "wizard.malformed_range",
			slog.String("status", "retry"),
			slog.Int("position", mre.Position),
			slog.String("payload", logger.SanitizeLimit(mre.Label, 64)),
		)
		candidate.DropFrom(mre.Position)
		if rerr := c.advance(ctx, s, sink, mre.Position, candidate, c.opts.Texts.Reselect); rerr != nil {
			return errors.Join(mre, rerr)
		}
		return mre
	}
	if err != nil {
		return c.failInPlace(ctx, s, sink, c.opts.Texts.TryLater, err)
	}

	rows, err := c.execute(ctx, q)
	if err != nil {
		return c.failInPlace(ctx, s, sink, c.opts.Texts.TryLater, err)
	}
	elems, clamped := query.Elements(st, rows)
	if clamped > 0 {
		logger.Warn(ctx, logger.CompWizard, "bucket.clamped",
			slog.String("status", "ok"),
			slog.Int("position", target),
			slog.Int("count", clamped),
		)
	}

	s.Selections = candidate
	s.Position = target
	s.Pager = pager.State{Step: target}
	s.Elements = elems
	return c.show(ctx, s, sink, st.Key, c.stepScreen(s, st, notice), ModeEdit, false)
}

func (c *Controller) execute(ctx context.Context, q *query.Query) ([]query.Row, error) {
	qctx, cancel := context.WithTimeout(ctx, c.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := c.exec.Execute(qctx, q)
	c.opts.Metrics.ObserveQuery(q.Target, time.Since(start), err)
	if err != nil {
		var qe *query.QueryExecutionError
		if !errors.As(err, &qe) {
			err = &query.QueryExecutionError{Target: q.Target, Err: err}
		}
		return nil, err
	}
	return rows, nil
}

// current returns the step the session is on.
func (c *Controller) current(s *session.Session) (steps.Step, bool) {
	if s.Position < 1 {
		return steps.Step{}, false
	}
	st, err := c.reg.Get(s.Position)
	if err != nil {
		return steps.Step{}, false
	}
	return st, true
}

// stepFor resolves the facet of an action and checks it belongs to the current step.
func (c *Controller) stepFor(s *session.Session, facet string) (steps.Step, error) {
	st, ok := c.reg.ByKey(facet)
	if !ok {
		return steps.Step{}, fmt.Errorf("%w: facet %q", ErrUnknownAction, facet)
	}
	if st.Position != s.Position {
		return steps.Step{}, fmt.Errorf("%w: facet %q at position %d", ErrOutdated, facet, s.Position)
	}
	return st, nil
}

func (c *Controller) selectValue(ctx context.Context, s *session.Session, sink Sink, a Action) error {
	st, err := c.stepFor(s, a.Facet)
	if err != nil {
		return c.notifyFor(ctx, sink, err)
	}
	switch {
	case st.Leaf:
		return c.selectLeaf(ctx, s, sink, a.Value)
	case st.MultiSelect:
		return c.toggle(ctx, s, sink, a)
	}
	row, ok := lookupKey(s.Elements, st.Key, a.Value)
	if !ok {
		return c.notify(ctx, sink, c.opts.Texts.Outdated, fmt.Errorf("%w: value %q", ErrOutdated, a.Value))
	}
	candidate := s.Selections.Clone()
	candidate.Set(st.Position, row.Value)
	candidate.DropFrom(st.Position + 1)
	return c.advance(ctx, s, sink, st.Position+1, candidate, "")
}

func (c *Controller) toggle(ctx context.Context, s *session.Session, sink Sink, a Action) error {
	st, err := c.stepFor(s, a.Facet)
	if err != nil {
		return c.notifyFor(ctx, sink, err)
	}
	if !st.MultiSelect {
		return c.notify(ctx, sink, c.opts.Texts.Outdated, fmt.Errorf("%w: step %q is single-select", ErrOutdated, st.Key))
	}
	row, ok := lookupKey(s.Elements, st.Key, a.Value)
	if !ok {
		return c.notify(ctx, sink, c.opts.Texts.Outdated, fmt.Errorf("%w: value %q", ErrOutdated, a.Value))
	}
	s.Selections.Toggle(st.Position, row.Value)
	return c.show(ctx, s, sink, st.Key, c.stepScreen(s, st, ""), ModeEdit, true)
}

func (c *Controller) commit(ctx context.Context, s *session.Session, sink Sink) error {
	st, ok := c.current(s)
	if !ok || !st.MultiSelect {
		return c.notify(ctx, sink, c.opts.Texts.Outdated, fmt.Errorf("%w: commit at position %d", ErrOutdated, s.Position))
	}
	candidate := s.Selections.Clone()
	candidate.DropFrom(st.Position + 1)
	return c.advance(ctx, s, sink, st.Position+1, candidate, "")
}

func (c *Controller) page(ctx context.Context, s *session.Session, sink Sink, index int) error {
	st, ok := c.current(s)
	if !ok {
		return nil
	}
	p := pager.Slice(s.Elements, index, c.opts.PageSize)
	s.Pager.Enter(st.Position)
	s.Pager.Go(p.Index)
	return c.show(ctx, s, sink, st.Key, c.stepScreen(s, st, ""), ModeEdit, true)
}

func (c *Controller) back(ctx context.Context, s *session.Session, sink Sink) error {
	e, err := s.History.Back()
	if err != nil {
		return c.notify(ctx, sink, c.opts.Texts.NoPrior, err)
	}
	s.Restore(e)
	s.Selections.DropFrom(e.Position)

	screen := e.Screen
	if st, ok := c.current(s); ok && len(s.Elements) > 0 {
		screen = c.stepScreen(s, st, "")
	}
	return c.show(ctx, s, sink, e.Handler, screen, ModeEdit, true)
}

func (c *Controller) selectLeaf(ctx context.Context, s *session.Session, sink Sink, value string) error {
	row, ok := lookup(s.Elements, value)
	if !ok {
		return c.failInPlace(ctx, s, sink, c.opts.Texts.Unavailable, fmt.Errorf("%w: %q", ErrLeafNotFound, value))
	}

	var counted chan error
	if c.views != nil {
		counted = make(chan error, 1)
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ViewTimeout)
		go func() {
			defer cancel()
			counted <- c.views.Increment(vctx, row.ID)
		}()
	}

	detail := c.detail(row)
	var errs []error
	if err := sink.Render(ctx, Output{Mode: ModeSend, Detail: &detail}); err != nil {
		errs = append(errs, &RenderError{Err: err})
	}
	s.Reset()
	if err := c.greeting(ctx, s, sink, ModeSend, ""); err != nil {
		errs = append(errs, err)
	}

	if counted != nil {
		err := <-counted
		c.opts.Metrics.ObserveView(err)
		if err != nil {
			logger.Warn(ctx, logger.CompViews, "views.increment",
				slog.String("status", "fail"),
				slog.Int64("product_id", row.ID),
				slog.String("err", err.Error()),
			)
		} else {
			logger.Debug(ctx, logger.CompViews, "views.increment",
				slog.String("status", "ok"),
				slog.Int64("product_id", row.ID),
			)
		}
	}
	return errors.Join(errs...)
}

// failInPlace re-renders the current screen with notice on top. History is not touched.
func (c *Controller) failInPlace(ctx context.Context, s *session.Session, sink Sink, notice string, cause error) error {
	var screen session.Screen
	if st, ok := c.current(s); ok {
		screen = c.stepScreen(s, st, notice)
	} else {
		screen = c.greetingScreen(notice)
	}
	if err := c.render(ctx, s, sink, screen, ModeEdit); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (c *Controller) notify(ctx context.Context, sink Sink, text string, cause error) error {
	if err := sink.Notify(ctx, text); err != nil {
		return errors.Join(cause, &RenderError{Err: err})
	}
	return cause
}

func (c *Controller) notifyFor(ctx context.Context, sink Sink, err error) error {
	text := c.opts.Texts.Outdated
	if errors.Is(err, ErrUnknownAction) {
		text = c.opts.Texts.Unknown
	}
	return c.notify(ctx, sink, text, err)
}

// show renders screen unless it is already displayed, then records it in history.
func (c *Controller) show(ctx context.Context, s *session.Session, sink Sink, handler string, screen session.Screen, mode Mode, replace bool) error {
	if mode == ModeEdit && screen.Signature() == s.Displayed {
		return nil
	}
	if err := c.render(ctx, s, sink, screen, mode); err != nil {
		return err
	}
	e := s.Snapshot(handler, screen)
	if replace {
		s.History.Replace(e)
	} else {
		s.History.Push(e)
	}
	return nil
}

func (c *Controller) render(ctx context.Context, s *session.Session, sink Sink, screen session.Screen, mode Mode) error {
	sig := screen.Signature()
	if mode == ModeEdit && sig == s.Displayed {
		return nil
	}
	if err := sink.Render(ctx, Output{Mode: mode, Screen: screen}); err != nil {
		return &RenderError{Err: err}
	}
	s.Displayed = sig
	return nil
}

func lookup(rows []query.Row, value string) (query.Row, bool) {
	for _, r := range rows {
		if r.Value == value {
			return r, true
		}
	}
	return query.Row{}, false
}

// lookupKey finds the row whose token form under facet is key.
func lookupKey(rows []query.Row, facet, key string) (query.Row, bool) {
	for _, r := range rows {
		if ValueKey(facet, r.Value) == key {
			return r, true
		}
	}
	return query.Row{}, false
}

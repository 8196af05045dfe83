package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/facetbot/catalog/metrics"
	"github.com/m3rciful/facetbot/catalog/session"
	"github.com/m3rciful/facetbot/core/logger"
	"github.com/m3rciful/facetbot/core/telegram/state"
)

// ErrBusy is returned by Dispatch when a chat has too many queued actions.
var ErrBusy = errors.New("wizard: session busy")

// Engine serializes actions per chat and keeps the sessions.
type Engine struct {
	ctrl     *Controller
	sessions *state.Store[*session.Session]
	boxes    *state.Mailboxes
	metrics  *metrics.Metrics
	ttl      time.Duration
}

// NewEngine returns an engine whose sessions expire after ttl of inactivity.
func NewEngine(ctrl *Controller, ttl time.Duration, mailboxSize int, m *metrics.Metrics) *Engine {
	return &Engine{
		ctrl:     ctrl,
		sessions: state.NewStore[*session.Session](ttl),
		boxes:    state.NewMailboxes(mailboxSize),
		metrics:  m,
		ttl:      ttl,
	}
}

// Dispatch queues a for chatID and returns at once. The channel receives the result
// of Controller.Handle when the action has run.
func (e *Engine) Dispatch(ctx context.Context, chatID int64, a Action, sink Sink) (<-chan error, error) {
	done := make(chan error, 1)
	err := e.boxes.Submit(chatID, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, logger.CompWizard, "wizard.panic",
					slog.String("status", "fail"),
					slog.Int64("chat_id", chatID),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				done <- fmt.Errorf("wizard: panic: %v", r)
			}
		}()
		s := e.sessions.GetOrCreate(chatID, func() *session.Session { return session.New(chatID) })
		e.metrics.SetSessions(e.sessions.Len())
		done <- e.ctrl.Handle(ctx, s, a, sink)
	})
	if errors.Is(err, state.ErrMailboxFull) {
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: dispatch: %w", err)
	}
	return done, nil
}

// Do dispatches a and waits for it to finish.
func (e *Engine) Do(ctx context.Context, chatID int64, a Action, sink Sink) error {
	done, err := e.Dispatch(ctx, chatID, a, sink)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Texts returns the texts the controller renders with.
func (e *Engine) Texts() Texts { return e.ctrl.opts.Texts }

// Run sweeps idle sessions until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	every := e.ttl / 2
	if every > time.Minute {
		every = time.Minute
	}
	e.sessions.RunJanitor(ctx, every)
}

// Close waits for queued actions to finish.
func (e *Engine) Close(ctx context.Context) error {
	return e.boxes.Close(ctx)
}

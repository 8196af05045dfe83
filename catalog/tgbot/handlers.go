package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/facetbot/catalog/views"
	"github.com/m3rciful/facetbot/catalog/wizard"
	"github.com/m3rciful/facetbot/core/logger"
	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/callbacks"
	"github.com/m3rciful/facetbot/core/telegram/commands"
	"github.com/m3rciful/facetbot/core/telegram/format"
	tghelpers "github.com/m3rciful/facetbot/core/telegram/helpers"
	"github.com/m3rciful/facetbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const (
	statsKey          = "stats"
	defaultStatsLimit = 10
	maxStatsLimit     = 50
	actionTimeout     = 30 * time.Second
)

// Handlers adapts telebot updates to wizard actions.
type Handlers struct {
	engine  *wizard.Engine
	counter views.Counter
}

// New returns handlers over engine. counter may be nil, which disables /stats.
func New(engine *wizard.Engine, counter views.Counter) *Handlers {
	return &Handlers{engine: engine, counter: counter}
}

// Register adds the wizard commands and callbacks to reg. Raw wizard tokens
// have no registered key, so they arrive through the not-found handler.
func (h *Handlers) Register(reg *tg.Registry) error {
	err := errors.Join(
		reg.RegisterCommand("/start", commands.Command{
			Handler:     h.Start,
			Description: "Open the catalog",
			Aliases:     []string{"menu"},
		}),
		reg.RegisterCommand("/about", commands.Command{
			Handler:     h.About,
			Description: "About this bot",
		}),
	)
	if h.counter != nil {
		err = errors.Join(err,
			reg.RegisterCommand("/stats", commands.Command{
				Handler:     h.Stats,
				Description: "Most viewed models",
				AdminOnly:   true,
			}),
			reg.RegisterCallback(statsKey, h.RefreshStats),
		)
	}
	reg.SetCallbackNotFound(h.Token)
	reg.SetTextFallback(h.UnknownText)
	return err
}

// Start shows the greeting as a new message.
func (h *Handlers) Start(c tele.Context) error {
	return h.run(c, wizard.Action{Kind: wizard.KindStart, Command: true, Raw: c.Text()})
}

// About shows the about screen.
func (h *Handlers) About(c tele.Context) error {
	return h.run(c, wizard.Action{Kind: wizard.KindAbout, Command: true, Raw: c.Text()})
}

// Token handles a raw wizard callback token.
func (h *Handlers) Token(c tele.Context) error {
	key, _ := callbacks.ParseCallbackData(c.Callback())
	return h.run(c, wizard.Parse(key))
}

// UnknownText points the user at /start.
func (h *Handlers) UnknownText(c tele.Context) error {
	return tghelpers.SendText(c, h.engine.Texts().Unknown+" /start")
}

// OnLimited tells a throttled user to slow down.
func (h *Handlers) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Respond(c, h.engine.Texts().Busy)
	}
	return tghelpers.SendText(c, h.engine.Texts().Busy)
}

// run queues a for the chat and returns without waiting, so one slow chat
// never holds up the poller. The callback is answered once the action has
// run, which lets wizard notices reach the user as callback toasts.
func (h *Handlers) run(c tele.Context, a wizard.Action) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(tghelpers.BuildContext(c), actionTimeout)
	sink := NewSink(c)

	tghelpers.DeferResponse(c)
	done, err := h.engine.Dispatch(ctx, chat.ID, a, sink)
	if err != nil {
		defer cancel()
		if errors.Is(err, wizard.ErrBusy) {
			logger.Warn(ctx, logger.CompWizard, "wizard.busy",
				slog.String("status", "skip"),
				slog.String("op", a.Kind.String()),
			)
			return sink.Notify(ctx, h.engine.Texts().Busy)
		}
		_ = tghelpers.Respond(c, "")
		return err
	}

	go func() {
		defer cancel()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn(ctx, logger.CompWizard, "wizard.timeout",
				slog.String("status", "fail"),
				slog.String("op", a.Kind.String()),
			)
		}
		_ = tghelpers.Respond(c, "")
	}()
	return nil
}

// Stats lists the most viewed records. "/stats 20" changes the limit.
func (h *Handlers) Stats(c tele.Context) error {
	limit := defaultStatsLimit
	if args := c.Args(); len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	text, markup, err := h.statsMessage(c, limit)
	if err != nil {
		return err
	}
	return tghelpers.SendMDV2(c, text, markup)
}

// RefreshStats redraws the stats message in place.
func (h *Handlers) RefreshStats(c tele.Context) error {
	text, markup, err := h.statsMessage(c, callbacks.PayloadIntOr(c, defaultStatsLimit))
	if err != nil {
		return err
	}
	err = tghelpers.EditOrSendMDV2(c, text, markup)
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func (h *Handlers) statsMessage(c tele.Context, limit int) (string, *tele.ReplyMarkup, error) {
	limit = min(max(limit, 1), maxStatsLimit)
	ctx := tghelpers.BuildContext(c)
	top, err := h.counter.Top(ctx, limit)
	if err != nil {
		logger.Error(ctx, logger.CompViews, "views.top",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return "", nil, fmt.Errorf("tgbot: stats: %w", err)
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Refresh", Unique: statsKey, Data: strconv.Itoa(limit)},
	})
	return FormatStats(top), markup, nil
}

// FormatStats renders stats as a MarkdownV2 list.
func FormatStats(stats []views.Stat) string {
	var b strings.Builder
	b.WriteString("*Most viewed*\n")
	if len(stats) == 0 {
		b.WriteString(format.V2("No views yet."))
		return b.String()
	}
	for i, st := range stats {
		label := st.Label
		if label == "" {
			label = "#" + strconv.FormatInt(st.ID, 10)
		}
		fmt.Fprintf(&b, "%s %s: `%d`\n", format.V2(strconv.Itoa(i+1)+"."), format.V2(label), st.Views)
	}
	return strings.TrimRight(b.String(), "\n")
}

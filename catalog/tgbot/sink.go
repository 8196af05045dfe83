// Package tgbot presents the catalog wizard over Telegram.
package tgbot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/facetbot/catalog/session"
	"github.com/m3rciful/facetbot/catalog/wizard"
	"github.com/m3rciful/facetbot/core/logger"
	tghelpers "github.com/m3rciful/facetbot/core/telegram/helpers"
	"github.com/m3rciful/facetbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// captionLimit is the Bot API limit for photo captions.
const captionLimit = 1024

// Keyboard lays out screen: one option per row, the pager row, one action per
// row, then the navigation row.
func Keyboard(screen session.Screen) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(screen.Options)+len(screen.Actions)+2)
	for _, o := range screen.Options {
		rows = append(rows, []keyboard.InlineBtn{button(o)})
	}
	if len(screen.Pager) > 0 {
		row := make([]keyboard.InlineBtn, len(screen.Pager))
		for i, p := range screen.Pager {
			row[i] = keyboard.InlineBtn{Text: p.Text, Data: p.Token}
		}
		rows = append(rows, row)
	}
	for _, o := range screen.Actions {
		rows = append(rows, []keyboard.InlineBtn{button(o)})
	}
	if len(screen.Nav) > 0 {
		row := make([]keyboard.InlineBtn, len(screen.Nav))
		for i, o := range screen.Nav {
			row[i] = button(o)
		}
		rows = append(rows, row)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func button(o session.Option) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: o.Text, Data: o.Token, URL: o.URL}
}

// Sink renders wizard output into the chat of one update.
type Sink struct {
	c tele.Context
}

// NewSink binds a sink to c.
func NewSink(c tele.Context) *Sink {
	return &Sink{c: c}
}

// Render edits the callback message in ModeEdit, falling back to a new
// message when there is nothing to edit or the edit fails.
func (s *Sink) Render(ctx context.Context, out wizard.Output) error {
	if out.Detail != nil {
		return s.detail(ctx, out.Detail)
	}
	markup := Keyboard(out.Screen)
	if out.Mode == wizard.ModeEdit && s.c.Callback() != nil {
		err := s.c.Edit(out.Screen.Text, markup)
		if err == nil || errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		logger.Warn(ctx, logger.CompTG, "render.edit",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return s.c.Send(out.Screen.Text, markup)
}

// detail replaces the menu with the record card. Records without an image,
// or whose image Telegram rejects, get a text card.
func (s *Sink) detail(ctx context.Context, d *wizard.Detail) error {
	if s.c.Callback() != nil {
		if err := s.c.Delete(); err != nil {
			logger.Debug(ctx, logger.CompTG, "render.delete",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	var markup *tele.ReplyMarkup
	if d.DocURL != "" {
		markup = keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: d.DocButton, URL: d.DocURL}})
	}
	if d.ImageURL != "" {
		photo := &tele.Photo{File: tele.FromURL(d.ImageURL), Caption: truncate(d.Caption, captionLimit)}
		err := s.send(photo, markup)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, logger.CompTG, "render.photo",
			slog.String("status", "fail"),
			slog.Int64("product_id", d.ID),
			slog.String("err", err.Error()),
		)
	}
	return s.send(d.Caption, markup)
}

func (s *Sink) send(what any, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return s.c.Send(what)
	}
	return s.c.Send(what, markup)
}

// Notify answers the callback with a toast, or sends text for commands.
func (s *Sink) Notify(_ context.Context, text string) error {
	if s.c.Callback() != nil {
		return tghelpers.Respond(s.c, text)
	}
	return s.c.Send(text)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

package router

import (
	"time"

	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls routing of plain text.
type TextOptions struct {
	Admin       middleware.AdminOptions
	UnknownText tele.HandlerFunc
}

// TextRoutes handles text that telebot did not route to a command endpoint:
// aliases, then the registry fallback, then UnknownText.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return commandHandler(name, cmd, opts.Admin)(c)
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}

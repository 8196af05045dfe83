package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/facetbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute routes every callback through the registry. Keys without a
// handler, including raw tokens, go to the registry's not-found handler.
// The callback is answered afterwards unless the handler already did or
// deferred the answer.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.ParseCallbackData(c.Callback())
		defer func() {
			if !tghelpers.Deferred(c) {
				_ = tghelpers.Respond(c, "")
			}
		}()

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return handleWithSummary(c, "callback."+normalizeHandlerName(key), start,
				func() error { return h(c) },
				slog.String("cb_key", key))
		}
		return handleWithSummary(c, "callback.token", start,
			func() error { return reg.CallbackNotFound()(c) },
			slog.String("cb_key", key))
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}

package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/facetbot/core/logger"
	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/commands"
	"github.com/m3rciful/facetbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how command handlers are wrapped.
type CommandRouteOptions struct {
	Admin middleware.AdminOptions
}

func commandHandler(name string, def commands.Command, admin middleware.AdminOptions) tele.HandlerFunc {
	h := def.Handler
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(admin)(h)
	}
	handler := normalizeHandlerName(name)
	return func(c tele.Context) error {
		return handleWithSummary(c, handler, time.Now(), func() error { return h(c) })
	}
}

// CommandRoutes returns one route per registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  commandHandler(name, def, opts.Admin),
		})
	}
	logger.Info(context.Background(), logger.CompTWire, "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

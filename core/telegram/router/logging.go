// Package router binds registry entries to telebot endpoints and logs one
// summary line per handled update.
package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/facetbot/core/logger"
	tghelpers "github.com/m3rciful/facetbot/core/telegram/helpers"
	"github.com/m3rciful/facetbot/core/telegram/middleware"
	"github.com/m3rciful/facetbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

func handleWithSummary(c tele.Context, name string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	logSummary(c, name, start, "", err, extras...)
	return err
}

func logSummary(c tele.Context, name string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.GetCounters(c)
	if status == "" {
		status = "ok"
		if err != nil {
			status = "fail"
		}
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(sender.Redact(err), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	logger.Event(ctx, logger.CompTG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// coder is implemented by errors that carry their own log code.
type coder interface{ Code() string }

func errorCode(err error) string {
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(sender.Classify(err))
}

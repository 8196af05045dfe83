package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/facetbot/core/logger"
	"github.com/m3rciful/facetbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the Send helpers.
// With no dispatcher the helpers send inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText queues plain text for the current chat. Use it for replies whose
// ordering relative to other messages does not matter.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}

// SendMDV2 queues a MarkdownV2 message with optional reply markup.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return SendText(c, text, opts)
}

// EditOrSendMDV2 edits the callback message in MarkdownV2 or sends a new one.
// It runs inline so the caller sees the result.
func EditOrSendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return c.EditOrSend(text, opts)
}

const (
	respondedKey = "cb_responded"
	deferredKey  = "cb_deferred"
)

// Respond answers the current callback with an optional notice. Telegram
// accepts one answer per callback, so later calls do nothing.
func Respond(c tele.Context, text string) error {
	if c.Callback() == nil || !claimResponse(c) {
		return nil
	}
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// claimResponse reports whether the caller is the first to answer c. After
// DeferResponse the flag is shared between goroutines and claimed atomically.
func claimResponse(c tele.Context) bool {
	switch v := c.Get(respondedKey).(type) {
	case *atomic.Bool:
		return v.CompareAndSwap(false, true)
	case bool:
		if v {
			return false
		}
	}
	c.Set(respondedKey, true)
	return true
}

// Responded reports whether Respond already answered the callback.
func Responded(c tele.Context) bool {
	switch v := c.Get(respondedKey).(type) {
	case *atomic.Bool:
		return v.Load()
	case bool:
		return v
	}
	return false
}

// DeferResponse tells the router that the handler answers the callback
// itself, possibly after it has returned. Call it before handing c to another
// goroutine; Respond is safe to race from then on.
func DeferResponse(c tele.Context) {
	if _, ok := c.Get(respondedKey).(*atomic.Bool); !ok {
		flag := new(atomic.Bool)
		flag.Store(Responded(c))
		c.Set(respondedKey, flag)
	}
	c.Set(deferredKey, true)
}

// Deferred reports whether DeferResponse was called for c.
func Deferred(c tele.Context) bool {
	ok, _ := c.Get(deferredKey).(bool)
	return ok
}

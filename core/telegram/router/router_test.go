package router

import (
	"errors"
	"testing"

	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/commands"
	"github.com/m3rciful/facetbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	c := bot.NewContext(upd)
	// Keeps the router from answering the callback over the network.
	c.Set("cb_responded", true)
	return c
}

func callback(data string) tele.Update {
	return tele.Update{ID: 3, Callback: &tele.Callback{
		Sender:  &tele.User{ID: 9},
		Data:    data,
		Message: &tele.Message{ID: 1, Chat: &tele.Chat{ID: 9}},
	}}
}

func text(userID int64, s string) tele.Update {
	return tele.Update{ID: 4, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   s,
	}}
}

func TestCallbackRoute(t *testing.T) {
	reg := tg.NewRegistry()
	var keyed, raw string
	_ = reg.RegisterCallback("stats", func(c tele.Context) error {
		keyed = c.Callback().Data
		return nil
	})
	reg.SetCallbackNotFound(func(c tele.Context) error {
		raw = c.Callback().Data
		return nil
	})
	route := CallbackRoute(reg)
	if route.Endpoint != tele.OnCallback {
		t.Fatalf("endpoint = %v", route.Endpoint)
	}

	if err := route.Handler(newContext(t, callback("\fstats|25"))); err != nil {
		t.Fatalf("keyed: %v", err)
	}
	if err := route.Handler(newContext(t, callback("brand_Acme"))); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if keyed != "\fstats|25" || raw != "brand_Acme" {
		t.Fatalf("keyed=%q raw=%q", keyed, raw)
	}
}

func TestTextRoutesAliasesAndAdmin(t *testing.T) {
	reg := tg.NewRegistry()
	var started, stats, fallback int
	_ = reg.RegisterCommand("/start", commands.Command{
		Description: "Start", Aliases: []string{"menu"},
		Handler: func(tele.Context) error { started++; return nil },
	})
	_ = reg.RegisterCommand("/stats", commands.Command{
		Description: "Stats", AdminOnly: true,
		Handler: func(tele.Context) error { stats++; return nil },
	})
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	routes := TextRoutes(reg, TextOptions{Admin: middleware.AdminOptions{
		IsAdmin: func(id int64) bool { return id == 1 },
	}})
	h := routes[0].Handler
	for _, upd := range []tele.Update{text(2, "menu"), text(2, "/stats"), text(1, "stats"), text(2, "hello")} {
		if err := h(newContext(t, upd)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if started != 1 || stats != 1 || fallback != 1 {
		t.Fatalf("started=%d stats=%d fallback=%d", started, stats, fallback)
	}
}

func TestCommandRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	_ = reg.RegisterCommand("/start", commands.Command{Description: "Start", Handler: func(tele.Context) error { return boom }})
	routes := CommandRoutes(reg, CommandRouteOptions{})
	if len(routes) != 1 || routes[0].Endpoint != "/start" {
		t.Fatalf("routes = %+v", routes)
	}
	if err := routes[0].Handler(newContext(t, text(1, "/start"))); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if CommandRoutes(nil, CommandRouteOptions{}) != nil {
		t.Fatal("nil registry produced routes")
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(errors.New("x")); got != "UNKNOWN" {
		t.Fatalf("errorCode = %q", got)
	}
	if got := normalizeHandlerName(" /Start Now "); got != "start_now" {
		t.Fatalf("normalizeHandlerName = %q", got)
	}
}

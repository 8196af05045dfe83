package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(format logFormat) (*structuredHandler, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter().attach(buf, slog.LevelDebug)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	})
	return h, aw, buf
}

func closeAndRead(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, slog.New(h).With("component", CompWizard), slog.LevelInfo, "wizard.action",
		slog.String("status", "ok"),
		slog.Int("position", 2),
		slog.String("cause", "unit"),
	)

	line := closeAndRead(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=wizard", "event=wizard.action", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "position=2"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatJSON)
	ctx := WithRID(context.Background(), "rid-json")

	LogEvent(ctx, slog.New(h).With("component", CompQuery), slog.LevelError, "query.execute",
		slog.String("status", "FAIL"),
		slog.String("err", "boom"),
	)

	line := closeAndRead(t, aw, buf)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"query"`, `"event":"query.execute"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	for _, format := range []logFormat{formatKV, formatJSON} {
		h, aw, buf := newTestHandler(format)
		raw := "123:456:789"
		LogEvent(WithRID(context.Background(), raw), slog.New(h), slog.LevelInfo, "rid.test")

		line := closeAndRead(t, aw, buf)
		compact := CompactRID(raw)
		if compact != "3f.co.lx" {
			t.Fatalf("CompactRID = %s", compact)
		}
		if !strings.Contains(line, compact) {
			t.Fatalf("%s: expected compact rid, got %s", format, line)
		}
		hasFull := strings.Contains(line, "rid_full")
		if hasFull != (format == formatJSON) {
			t.Fatalf("%s: rid_full presence = %v in %s", format, hasFull, line)
		}
	}
}

func TestStructuredHandlerNormalizesFields(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	LogEvent(context.Background(), slog.New(h), slog.LevelInfo, "",
		slog.String("outcome", "Outdated"),
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("query_timeout", 2*time.Second),
		slog.String("empty", ""),
	)
	LogEvent(context.Background(), slog.New(h), slog.LevelInfo, "x", slog.String("outcome", "bogus"))

	lines := strings.Split(closeAndRead(t, aw, buf), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	first := lines[0]
	for _, want := range []string{"component=app", "event=unknown", "outcome=outdated", "duration_ms=2", "query_timeout_ms=2000"} {
		if !strings.Contains(first, want) {
			t.Fatalf("missing %s in %s", want, first)
		}
	}
	if strings.Contains(first, "empty=") {
		t.Fatalf("empty field kept: %s", first)
	}
	if strings.Contains(lines[1], "outcome=") {
		t.Fatalf("unknown outcome kept: %s", lines[1])
	}
}

func TestAsyncWriterRoutesByLevel(t *testing.T) {
	all, errs := &bytes.Buffer{}, &bytes.Buffer{}
	aw := newAsyncWriter().attach(all, slog.LevelDebug).attach(errs, slog.LevelError)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: formatKV})
	log := slog.New(h)

	LogEvent(context.Background(), log, slog.LevelInfo, "info.line")
	LogEvent(context.Background(), log, slog.LevelError, "error.line")
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := strings.Count(all.String(), "\n"); n != 2 {
		t.Fatalf("all sink got %d lines", n)
	}
	if strings.Contains(errs.String(), "info.line") || !strings.Contains(errs.String(), "error.line") {
		t.Fatalf("errors sink = %q", errs.String())
	}
}

func TestHelpersAreNoopsBeforeInit(t *testing.T) {
	if L != nil {
		t.Skip("global logger already initialised")
	}
	Info(context.Background(), CompApp, "noop")
	if Component(CompDB) != nil {
		t.Fatal("Component should be nil before init")
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 4)
	allowed := 0
	for i := 0; i < 40; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("allowed %d of 40, want 10", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio must allow everything")
	}
	if n, d := parseRatioSpec("3/7"); n != 3 || d != 7 {
		t.Fatalf("parseRatioSpec(3/7) = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("20"); n != 1 || d != 20 {
		t.Fatalf("parseRatioSpec(20) = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("x/y"); n != 0 || d != 0 {
		t.Fatalf("parseRatioSpec(x/y) = %d/%d", n, d)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\nd", 10); got != "abc\nd" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("привет", 3); got != "при" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}

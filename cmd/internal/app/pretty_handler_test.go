package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func prettyLine(t *testing.T, color bool, fn func(*slog.Logger)) string {
	t.Helper()

	var sb strings.Builder
	log := slog.New(newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug}, color))
	fn(log)
	return sb.String()
}

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	out := prettyLine(t, false, func(log *slog.Logger) {
		log.Info("store.message.send", "conversation_id", int64(42), "message_id", int64(999))
	})

	for _, want := range []string{"lvl=[INFO]", "msg=store.message.send", "conversation_id=42", "message_id=999"} {
		if !strings.Contains(out, want) {
			t.Fatalf("line %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color escapes in plain mode: %q", out)
	}
}

func TestPrettyHandler_QuotesAndErrColor(t *testing.T) {
	t.Parallel()

	out := prettyLine(t, true, func(log *slog.Logger) {
		log.Error("chat.send.fail", "err", "connection refused")
	})
	if !strings.Contains(out, ansiRed+`"connection refused"`+ansiReset) {
		t.Fatalf("err value not red-quoted: %q", out)
	}
	if !strings.Contains(out, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("level tag not colorized: %q", out)
	}
}

func TestPrettyHandler_GroupsAndWithAttrs(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h).With("component", "store").WithGroup("push")

	log.Info("event", "type", "typing")
	out := sb.String()

	if !strings.Contains(out, "component=store") {
		t.Fatalf("bound attr missing: %q", out)
	}
	if !strings.Contains(out, "push.type=typing") {
		t.Fatalf("group prefix missing: %q", out)
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := newPrettyHandler(&strings.Builder{}, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info enabled under warn threshold")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error disabled under warn threshold")
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"", `""`},
		{"two words", `"two words"`},
		{`a="b"`, `"a=\"b\""`},
	}
	for _, tc := range tests {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Errorf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestValueToString_Kinds(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		in   slog.Value
		want string
	}{
		{slog.StringValue("x"), "x"},
		{slog.Int64Value(-3), "-3"},
		{slog.BoolValue(true), "true"},
		{slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{slog.TimeValue(at), "2026-08-01T09:00:00Z"},
	}
	for _, tc := range tests {
		if got := valueToString(tc.in); got != tc.want {
			t.Errorf("valueToString(%v)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

package landconfig

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologHandlerWritesAttrsAndMessage(t *testing.T) {
	var buf bytes.Buffer
	h := &zerologHandler{logger: zerolog.New(&buf), minLevel: slog.LevelInfo}
	h = h.WithAttrs([]slog.Attr{slog.String("landId", "abc")}).(*zerologHandler)

	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "join denied", 0)
	rec.AddAttrs(slog.String("reason", "room full"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "join denied") {
		t.Fatalf("output missing message: %s", out)
	}
	if !strings.Contains(out, "abc") || !strings.Contains(out, "room full") {
		t.Fatalf("output missing attrs: %s", out)
	}
}

func TestZerologHandlerRespectsMinLevel(t *testing.T) {
	h := &zerologHandler{minLevel: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info disabled below warn threshold")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected error enabled above warn threshold")
	}
}

package landconfig

import (
	"context"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// NewZerologHandler builds an slog.Handler backed by a zerolog.Logger, for
// hosts that already standardized on zerolog. Selected by setting
// LOG_FORMAT=zerolog.
//
// slog is the engine's own logging interface throughout; this handler exists
// so a host can redirect that output into its existing zerolog pipeline
// without the engine itself depending on zerolog beyond this one file.
func NewZerologHandler(level slog.Level) slog.Handler {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &zerologHandler{logger: zl, minLevel: level}
}

type zerologHandler struct {
	logger   zerolog.Logger
	minLevel slog.Level
	attrs    []slog.Attr
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	ev := h.eventFor(r.Level)
	for _, a := range h.attrs {
		ev = ev.Interface(a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = ev.Interface(a.Key, a.Value.Any())
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *zerologHandler) eventFor(level slog.Level) *zerolog.Event {
	switch {
	case level >= slog.LevelError:
		return h.logger.Error()
	case level >= slog.LevelWarn:
		return h.logger.Warn()
	case level < slog.LevelInfo:
		return h.logger.Debug()
	default:
		return h.logger.Info()
	}
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &zerologHandler{logger: h.logger, minLevel: h.minLevel, attrs: merged}
}

// WithGroup is a flat fallback: zerolog has no first-class attribute
// grouping, so grouped attrs are still emitted, just ungrouped.
func (h *zerologHandler) WithGroup(_ string) slog.Handler {
	return h
}

package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogOptions selects the level, encoding and extra destination of log
// records.
type LogOptions struct {
	Debug  bool
	File   string
	Format string // "json" (default) or "text"
}

// ParseLogFormat normalizes a log format name.
func ParseLogFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", "json":
		return "json", nil
	case "text":
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want json or text)", s)
	}
}

// InitLogger installs the default logger. Records go to w; when opts.File
// is set they are also appended there as JSON. Reports own stdout, so the
// CLI passes stderr. The returned function closes the log file.
func InitLogger(w io.Writer, opts LogOptions) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var primary slog.Handler
	if format, _ := ParseLogFormat(opts.Format); format == "text" {
		primary = slog.NewTextHandler(w, hopts)
	} else {
		primary = slog.NewJSONHandler(w, hopts)
	}

	handler := primary
	closer := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			slog.New(primary).Error("failed to open log file", "path", opts.File, "error", err)
		} else {
			handler = &multiHandler{handlers: []slog.Handler{primary, slog.NewJSONHandler(f, hopts)}}
			closer = f.Close
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}

// ForRun scopes l to one benchmark run.
func ForRun(l *slog.Logger, runID, suite string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("run", runID, "suite", suite)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// multiHandler fans records out to every handler that accepts the level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &multiHandler{handlers: out}
}

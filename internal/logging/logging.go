package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// root is discarded until Init is called so that packages can log from tests
// without configuring anything.
var root atomic.Pointer[slog.Logger]

func init() {
	root.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// Options configures the process logger.
type Options struct {
	// Dir enables a rotated treebio.log file when non-empty.
	Dir   string
	Level string
}

// Init installs the process logger: INFO to stdout, WARN and above to
// stderr, and everything at Level to Dir/treebio.log when Dir is set. A Dir
// that cannot be created is reported on stderr and file logging is skipped.
func Init(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	console := &consoleHandler{
		level:  level,
		stdout: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
		stderr: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	handlers := []slog.Handler{console}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			slog.New(console).Warn("log directory unusable, file logging disabled", "dir", opts.Dir, "err", err)
			opts.Dir = ""
		}
	}
	if opts.Dir != "" {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "treebio.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}, &slog.HandlerOptions{Level: level}))
	}

	l := slog.New(&multiHandler{handlers: handlers})
	root.Store(l)
	return l
}

// Sub returns a child logger tagged with the component name.
func Sub(component string) *slog.Logger {
	return root.Load().With("comp", component)
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// --- consoleHandler: routes WARN+ to stderr, the rest to stdout ---

type consoleHandler struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithAttrs(attrs), stderr: h.stderr.WithAttrs(attrs)}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithGroup(name), stderr: h.stderr.WithGroup(name)}
}

// --- multiHandler: fans out to every enabled handler ---

type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}

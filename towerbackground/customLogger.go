package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Logger sends info and warnings to the bracketed stdout handler and
// errors to JSON on stderr.
type Logger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func NewLogger(stdout io.Writer, stderr io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return Logger{
		InfoLog:  slog.New(NewHandler(stdout, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(stderr, opts)),
	}
}

func (l Logger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l Logger) Warn(message string, module string) {
	l.InfoLog.Warn(message, "module", module)
}

func (l Logger) Error(message string) {
	l.ErrorLog.Error(message)
}

// moduleHandler prints "[time] [LEVEL] [module] message key=value ...".
// The level tag is left out for info records.
type moduleHandler struct {
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
	mu     *sync.Mutex
	out    io.Writer
}

func NewHandler(o io.Writer, opts *slog.HandlerOptions) slog.Handler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &moduleHandler{level: level, mu: &sync.Mutex{}, out: o}
}

func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		child.attrs = append(child.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &child
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.prefix + name + "."
	return &child
}

func (h *moduleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("[2006/01/02 15:04:05]"))
	if r.Level != slog.LevelInfo {
		fmt.Fprintf(&b, " [%s]", r.Level)
	}

	module := ""
	var extra []string
	collect := func(a slog.Attr) {
		if a.Key == "module" {
			module = a.Value.String()
			return
		}
		extra = append(extra, fmt.Sprintf("%s=%s", a.Key, a.Value))
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
		return true
	})

	if module != "" {
		fmt.Fprintf(&b, " [%s]", module)
	}
	b.WriteString(" ")
	b.WriteString(r.Message)
	for _, kv := range extra {
		b.WriteString(" ")
		b.WriteString(kv)
	}
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

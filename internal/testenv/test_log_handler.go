// Package testenv holds helpers shared by the package tests.
package testenv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TestLogHandler is a slog.Handler that records message index (starting
// from 0), level, and message content, without the timestamp, so tests can
// assert on log output deterministically. It is safe for concurrent use;
// handlers derived with WithAttrs/WithGroup share the same record buffer.
type TestLogHandler struct {
	rec         *recorder
	attrs       []slog.Attr
	groups      []string
	ignoreDebug bool
}

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func NewTestLogHandler() *TestLogHandler {
	return &TestLogHandler{rec: &recorder{}}
}

// TestLogHandlerOption is a function that configures a TestLogHandler
type TestLogHandlerOption func(*TestLogHandler)

// WithIgnoreDebug configures the handler to drop DEBUG level messages
func WithIgnoreDebug() TestLogHandlerOption {
	return func(h *TestLogHandler) {
		h.ignoreDebug = true
	}
}

func NewTestLogHandlerWithOptions(opts ...TestLogHandlerOption) *TestLogHandler {
	h := NewTestLogHandler()
	for _, opt := range opts {
		opt(h)
	}
	return h
}

//nolint:gocritic
func (h *TestLogHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug && h.ignoreDebug {
		return nil
	}

	attrs := h.attrsToString(&r)

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	index := len(h.rec.lines)
	if attrs != "" {
		h.rec.lines = append(h.rec.lines, fmt.Sprintf("[%d] %s: %s %s", index, r.Level, r.Message, attrs))
	} else {
		h.rec.lines = append(h.rec.lines, fmt.Sprintf("[%d] %s: %s", index, r.Level, r.Message))
	}
	return nil
}

// Lines returns the recorded lines.
func (h *TestLogHandler) Lines() []string {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return append([]string(nil), h.rec.lines...)
}

// Count returns the number of recorded lines at level whose message starts
// with prefix.
func (h *TestLogHandler) Count(level slog.Level, prefix string) int {
	marker := fmt.Sprintf("] %s: %s", level, prefix)
	n := 0
	for _, line := range h.Lines() {
		if strings.Contains(line, marker) {
			n++
		}
	}
	return n
}

func (h *TestLogHandler) attrsToString(r *slog.Record) string {
	var sb strings.Builder

	for i, attr := range h.attrs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(attr, ""))
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(a, prefix))
		return true
	})
	return sb.String()
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix + a.Key + "."
		var parts []string
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, groupPrefix))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}

func (h *TestLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !(level == slog.LevelDebug && h.ignoreDebug)
}

func (h *TestLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	newAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if prefix != "" {
			attr.Key = prefix + attr.Key
		}
		newAttrs = append(newAttrs, attr)
	}

	return &TestLogHandler{
		rec:         h.rec,
		attrs:       append(h.attrs[:len(h.attrs):len(h.attrs)], newAttrs...),
		groups:      h.groups,
		ignoreDebug: h.ignoreDebug,
	}
}

func (h *TestLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &TestLogHandler{
		rec:         h.rec,
		attrs:       h.attrs,
		groups:      append(h.groups[:len(h.groups):len(h.groups)], name),
		ignoreDebug: h.ignoreDebug,
	}
}

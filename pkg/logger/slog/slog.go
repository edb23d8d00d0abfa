// Package slog routes migration logs through a log/slog handler, for hosts
// that already collect slog records.
package slog

import (
	"io"
	"log/slog"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
)

var _ logger.Logger = (*Logger)(nil)

type Logger struct {
	logger *slog.Logger
}

func New(h slog.Handler) *Logger {
	return &Logger{logger: slog.New(h)}
}

// NewText writes human readable lines to w. Debug records are kept only
// when verbose is set.
func NewText(w io.Writer, verbose bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// With returns a logger adding args to every record, such as the block type
// being converted.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

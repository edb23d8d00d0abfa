package slog_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	rawslog "log/slog"

	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger/slog"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

var (
	LogText         = "Test Log Value"
	CustomFieldName = "record"
	CustomFieldVal  = "rec-42"
)

type testLogJSON struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	CustomVal string `json:"record"`
	Step      string `json:"step"`
}

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	logger := slog.New(handler)

	testMethods := []testMethod{
		{fn: logger.Error, level: rawslog.LevelError},
		{fn: logger.Warn, level: rawslog.LevelWarn},
		{fn: logger.Info, level: rawslog.LevelInfo},
		{fn: logger.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(tAlt *testing.T) {
			checkMethod(v.fn, buffer, v.level.String(), tAlt)
		})
		buffer.Reset()
	}
}

func TestLoggerWith(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})
	logger := slog.New(rawslog.NewJSONHandler(buffer, nil)).With("step", "mapping")

	logger.Info(LogText)

	var line testLogJSON
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	require.Equal(t, "mapping", line.Step)
}

func checkMethod(loggerFunc func(msg string, args ...any), buffer *bytes.Buffer, levelStr string, t *testing.T) {
	require.Equal(t, 0, buffer.Len())

	loggerFunc(LogText, CustomFieldName, CustomFieldVal)

	testLogJSONVal := new(testLogJSON)
	err := json.Unmarshal(buffer.Bytes(), testLogJSONVal)
	require.NoError(t, err)

	require.Equal(t, levelStr, testLogJSONVal.Level)
	require.Equal(t, LogText, testLogJSONVal.Msg)
	require.Equal(t, CustomFieldVal, testLogJSONVal.CustomVal)
}

func TestNewTextLevels(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})
	slog.NewText(buffer, false).With("source", "hero").Debug("hidden")
	require.Equal(t, 0, buffer.Len())

	slog.NewText(buffer, true).With("source", "hero").Debug("shown")
	require.Contains(t, buffer.String(), "level=DEBUG")
	require.Contains(t, buffer.String(), "msg=shown")
	require.Contains(t, buffer.String(), "source=hero")
}

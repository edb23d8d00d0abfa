package logger_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Info("Test", "record", "rec-1", "count", 3)
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
	require.Contains(t, buff.String(), `"record":"rec-1"`)
	require.Contains(t, buff.String(), `"count":3`)
}

func TestLogLevels(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	quiet, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)

	quiet.Debug("hidden")
	require.Equal(t, 0, buff.Len())

	verbose, err := logger.New().FromBuffer(buff).Verbose(true).Make()
	require.NoError(t, err)
	verbose.Debug("shown")
	require.Contains(t, buff.String(), "shown")
}

func TestLogError(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)

	templogger.Error("update failed", "err", errors.New("boom"), "dangling")
	require.Contains(t, buff.String(), `"err":"boom"`)
	require.Contains(t, buff.String(), `"level":"error"`)
	require.Contains(t, buff.String(), "!BADKEY")
}

func TestLogFromPath(t *testing.T) {
	path := t.TempDir() + "/migration.log"
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	defer templogger.Close()

	templogger.Warn("written to file")
	require.NotNil(t, templogger.LogFile)
}

package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLoggerWritesRotatedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "access.log")

	logger, closeFn, err := NewFileLogger(logPath, "webhook-access", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("request", "status", 200)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "request", record["msg"])
	assert.Equal(t, "webhook-access", record["service"])
	assert.Equal(t, float64(200), record["status"])
}

func TestNewFileLoggerRespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "quiet.log")

	logger, closeFn, err := NewFileLogger(logPath, "test", slog.LevelWarn)
	require.NoError(t, err)

	logger.Info("below threshold")
	require.NoError(t, closeFn())

	// lumberjack creates the file lazily, so nothing logged means no file.
	_, err = os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))
}

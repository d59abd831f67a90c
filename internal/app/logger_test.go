package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventbot.log")

	logger, err := newLogger("debug", path)
	require.NoError(t, err)
	logger.Info("Event created", zap.Int64("event_id", 7))
	logger.Debug("Debug line")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Event created"`)
	assert.Contains(t, string(data), `"event_id":7`)
	assert.Contains(t, string(data), "Debug line")
}

func TestNewLogger_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventbot.log")

	logger, err := newLogger("warn", path)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")

	_, err = newLogger("loud", "")
	assert.Error(t, err)
}

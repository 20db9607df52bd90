package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestJSONLoggerCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := build("info", "json", "dashboard", zapcore.AddSync(&buf))

	log.Info("ready", zap.Int("port", 8080))
	require.NoError(t, log.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ready", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "dashboard", line["service"])
	assert.EqualValues(t, 8080, line["port"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := build("warn", "json", "dashboard", zapcore.AddSync(&buf))

	log.Info("dropped")
	log.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := build("loud", "console", "dashboard", zapcore.AddSync(&buf))

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

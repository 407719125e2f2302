package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "info"}, "odyssey-api")

	logger.Info("settlement committed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "settlement committed", record["msg"])
	require.Equal(t, "odyssey-api", record["service"])
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogLevel: "warn"}, "")

	logger.Info("hidden")
	require.Zero(t, buf.Len())

	logger.Warn("lock release failed")
	require.Contains(t, buf.String(), "lock release failed")
}

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	logg := NewLogger(WithOutput(&buf), WithLevel(slog.LevelWarn))

	logg.Info("dropped")
	logg.Warn("kept", slog.String("module", "test"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "test", record["module"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(WithOutput(&buf), WithFormat(LogFormatText)).Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLogLevel("verbose")
	require.Error(t, err)
}

func TestParseLogFormat(t *testing.T) {
	format, err := ParseLogFormat("Text")
	require.NoError(t, err)
	assert.Equal(t, LogFormatText, format)

	_, err = ParseLogFormat("xml")
	require.Error(t, err)
}

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForTagsRecordsWithComponentGroup(t *testing.T) {
	var buf bytes.Buffer
	base = slog.New(slog.NewJSONHandler(&buf, nil))

	For(ComponentAgent).Info("turn started", "turn_id", "t1")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	component, ok := decoded["component"].(map[string]any)
	require.True(t, ok, "component group must be present")
	require.Equal(t, ComponentAgent, component["name"])
	require.Equal(t, "t1", decoded["turn_id"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
}

func TestIntOrDefault(t *testing.T) {
	require.Equal(t, 5, intOrDefault(5, 100))
	require.Equal(t, 100, intOrDefault(0, 100))
	require.Equal(t, 100, intOrDefault(-1, 100))
}

func TestForFallsBackToDefaultWhenNotInitialized(t *testing.T) {
	base = nil
	logger := For(ComponentAssets)
	require.NotNil(t, logger)
}

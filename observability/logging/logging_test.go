package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "pacod", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("hello", slog.String("op", "mint"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "pacod", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pacod.log")
	logger := SetupWithOptions("pacod", "", Options{Level: "debug", File: path, MaxSizeMB: 1})
	require.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "mint", MaskField("op", "mint").Value.String())
	require.Equal(t, "7", MaskField("assetID", "7").Value.String())
	require.Contains(t, RedactionAllowlist(), "requestId")
}

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesAboveLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatlab.log")
	require.NoError(t, Init(Options{Path: path, Level: "warn"}))
	t.Cleanup(func() { Close() })

	assert.Equal(t, path, GetLogPath())

	Debug("TEST", "debug line")
	Info("TEST", "info line")
	Warn("TEST", "warn line")
	Error("TEST", "error line")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "debug line")
	assert.NotContains(t, content, "info line")
	assert.Contains(t, content, "[WARN] TEST: warn line")
	assert.Contains(t, content, "[ERROR] TEST: error line")
}

func TestClose_FallsBackToConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatlab.log")
	require.NoError(t, Init(Options{Path: path}))
	require.NoError(t, Close())

	assert.Empty(t, GetLogPath())
	// must not panic once the file is gone
	Info("TEST", "after close")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" error "))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

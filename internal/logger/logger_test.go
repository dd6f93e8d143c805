package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetWriter(&buf)
	t.Cleanup(func() {
		SetFormat("text")
		SetLevel("INFO")
		SetWriter(os.Stdout)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := withBuffer(t)
	SetLevel("WARN")

	Info("hidden %d", 1)
	Warn("shown %d", 2)
	Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	withBuffer(t)
	SetLevel("debug")
	SetLevel("verbose")

	assert.Equal(t, LevelDebug, GetLevel())
}

func TestJSONFormat(t *testing.T) {
	buf := withBuffer(t)
	SetFormat("json")

	Info("upload %s", "a.txt")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "upload a.txt", entry["msg"])
}

func TestSetOutputFile(t *testing.T) {
	withBuffer(t)
	path := filepath.Join(t.TempDir(), "xfer.log")

	require.NoError(t, SetOutput(path))
	Info("to file")
	SetWriter(os.Stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] to file")
}

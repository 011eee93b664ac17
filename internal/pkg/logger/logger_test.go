package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLogger_ComponentAndFields(t *testing.T) {
	buf := captureOutput(t)

	New("discovery").Info("run finished", "products", 3, "api_key", "AIzaSyD-abcdef1234")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "discovery", entry["component"])
	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, "3", entry["products"])
	assert.Equal(t, "***1234", entry["api_key"])
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WARN)

	l := New("test")
	l.Info("dropped")
	l.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "postgres://***@db/x?sslmode=disable", RedactURL("postgres://u:p@db/x?sslmode=disable"))
	assert.Equal(t, "https://api.example.com/search?api_key=%2A%2A%2A&q=x", RedactURL("https://api.example.com/search?api_key=abc&q=x"))
	assert.Equal(t, "not a url", RedactURL("not a url"))
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "", RedactSecret(""))
	assert.Equal(t, "***", RedactSecret("short"))
	assert.Equal(t, "***5678", RedactSecret("abcd12345678"))
}

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)
	assert.Equal(t, LevelInfo, logger.level)
	assert.Equal(t, FormatJSON, logger.format)
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.Debug("switch line", map[string]any{"line": "abc"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LevelDebug, entry.Level)
	assert.Equal(t, "switch line", entry.Message)
	assert.Equal(t, "abc", entry.Fields["line"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn)
	logger.SetOutput(&buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	logger.Error("kept")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestLogger_Enabled(t *testing.T) {
	logger := NewLogger(LevelInfo)
	assert.False(t, logger.Enabled(LevelDebug))
	assert.True(t, logger.Enabled(LevelInfo))
	assert.True(t, logger.Enabled(LevelError))
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	child := logger.WithFields(map[string]any{"path": "/tmp/a.txt"})
	child.Info("committed", map[string]any{"label": "Version 2"})

	out := buf.String()
	assert.Contains(t, out, `"path":"/tmp/a.txt"`)
	assert.Contains(t, out, `"label":"Version 2"`)
	assert.Empty(t, logger.fields, "parent fields must not change")
}

func TestLogger_WarnErr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	logger.WarnErr("delete line", errors.New("reference not found"))
	assert.Contains(t, buf.String(), `"error":"reference not found"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)
	logger.SetFormat(FormatText)

	logger.Info("restored", map[string]any{"b": 2, "a": 1})

	line := buf.String()
	assert.Contains(t, line, "INFO  restored a=1 b=2")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestGlobalLogger(t *testing.T) {
	old := Global()
	t.Cleanup(func() { SetGlobal(old) })

	var buf bytes.Buffer
	l := NewLogger(LevelDebug)
	l.SetOutput(&buf)
	SetGlobal(l)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	ErrorErr("ee", errors.New("boom"))
	WithFields(map[string]any{"k": "v"}).Info("f")

	assert.Equal(t, 6, strings.Count(buf.String(), "\n"))
}

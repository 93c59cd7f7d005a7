package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	lw := l.With("model", "lift")
	lw.GetSlog().Info("run started", "attempt", 1)
	lw.LogCheckerRun("alternate", time.Second, errors.New("exit 1"))
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "run started", first["msg"])
	assert.Equal(t, "lift", first["model"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "checker run failed", second["msg"])
	assert.Equal(t, "alternate", second["engine"])
	assert.Equal(t, "lift", second["model"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: "warn", Format: "console"}, &buf)
	require.NoError(t, err)

	l.GetSlog().Info("hidden")
	l.LogCheckerRun("default", time.Millisecond, nil)
	assert.Empty(t, buf.String())

	l.GetSlog().Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger(Config{Output: "syslog"})
	assert.Error(t, err)
	_, err = newLogger(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, slog.LevelInfo, parseSlogLevel("verbose"))
}

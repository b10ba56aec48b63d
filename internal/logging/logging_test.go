package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"100", 100},
		{"512KB", 512 << 10},
		{"10MB", 10 << 20},
		{"1gb", 1 << 30},
		{" 2 MB ", 2 << 20},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "MB", "-1MB", "ten"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestSimpleHandler_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSimpleHandler(&buf, slog.LevelInfo, nil))

	logger.Debug("hidden")
	logger.With("conn", "abc").Info("🔌 客户端已连接", "pid", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] 🔌 客户端已连接 conn=abc pid=42")
	assert.Contains(t, out, "[PID:")
}

func TestSimpleHandler_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewSimpleHandler(&buf, slog.LevelWarn, nil)
	logger := slog.New(h).With("conn", "abc")

	logger.Info("before")
	h.SetLevel(slog.LevelDebug)
	logger.Debug("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after conn=abc")
}

func TestSimpleHandler_ConsoleTruncation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSimpleHandler(&buf, slog.LevelDebug, nil))

	logger.Info(strings.Repeat("x", 800))
	assert.Contains(t, buf.String(), "... (显示截断)")
}

func TestFileRotator_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "overlay.log")
	r, err := NewFileRotator(path, 32, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := r.Write([]byte(strings.Repeat("a", 20) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

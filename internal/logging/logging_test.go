package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltechnic0/arduino-control/internal/config"
)

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		buf.Add(Entry{Level: "info", Message: m})
	}

	entries := buf.Entries(nil)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Message)
	assert.Equal(t, "e", entries[2].Message)
}

func TestBufferFilterByLevel(t *testing.T) {
	buf := NewBuffer(10)
	buf.Add(Entry{Level: "info", Message: "one"})
	buf.Add(Entry{Level: "error", Message: "two"})
	buf.Add(Entry{Level: "warn", Message: "three"})

	got := buf.Entries([]string{"ERROR", "warn"})
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.Equal(t, "three", got[1].Message)

	buf.Clear()
	assert.Empty(t, buf.Entries(nil))
}

func TestBufferAsLevelWriter(t *testing.T) {
	buf := NewBuffer(10)
	logger := zerolog.New(zerolog.MultiLevelWriter(buf)).With().Str("component", "test").Logger()

	logger.Warn().Int("pin", 3).Msg("value out of range")

	entries := buf.Entries(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "value out of range", entries[0].Message)
	assert.Equal(t, "test", entries[0].Fields["component"])
	assert.Equal(t, "3", entries[0].Fields["pin"])
}

func TestBufferRawLine(t *testing.T) {
	buf := NewBuffer(2)
	_, err := buf.Write([]byte("not json\n"))
	require.NoError(t, err)
	entries := buf.Entries(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "not json", entries[0].Message)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestNewWritesFileAndBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.log")
	buf := NewBuffer(5)

	logger, closer, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: path}, buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"visible"`)
	assert.NotContains(t, string(data), "hidden")

	entries := buf.Entries(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0].Message)
}

package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRead(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	require.NoError(t, os.WriteFile(logPath, []byte(content.String()), 0o644))

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"read all (0)", 0, expectedAll},
		{"read all (negative)", -1, expectedAll},
		{"read partial (5)", 5, expectedAll[5:]},
		{"read exactly all (10)", 10, expectedAll},
		{"read more than exists (20)", 20, expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestParse_ZapJSONLine(t *testing.T) {
	e := Parse(`{"level":"warn","ts":"2025-03-01T10:20:30.000Z","logger":"mutation","msg":"mutation rolled back","kind":"update","error_kind":"validation"}`)

	assert.Equal(t, "warn", e.Level)
	assert.Equal(t, "mutation", e.Logger)
	assert.Equal(t, "mutation rolled back", e.Message)
	assert.True(t, e.Time.Equal(time.Date(2025, 3, 1, 10, 20, 30, 0, time.UTC)))
	assert.Equal(t, map[string]any{"kind": "update", "error_kind": "validation"}, e.Fields)

	s := e.String()
	assert.Contains(t, s, "WARN mutation: mutation rolled back")
	assert.True(t, strings.HasSuffix(s, "error_kind=validation kind=update"), "fields sorted: %q", s)
}

func TestParse_EpochTimestamp(t *testing.T) {
	e := Parse(`{"level":"info","ts":1740824430.5,"msg":"hi"}`)
	assert.Equal(t, int64(1740824430), e.Time.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(e.Time.Nanosecond()))
	assert.Nil(t, e.Fields)
}

func TestParse_PlainTextPassesThrough(t *testing.T) {
	for _, line := range []string{"panic: boom", "{not json", ""} {
		e := Parse(line)
		assert.Equal(t, line, e.Message)
		assert.Equal(t, line, e.String())
		assert.Empty(t, e.Level)
	}
}

func TestReadEntries_RoundTripsZapOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "shelf.log")

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logPath}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	require.NoError(t, err)

	logger.Named("cache").Debug("fetch started", zap.String("key", "books"))
	logger.Info("refresh complete")
	require.NoError(t, logger.Sync())

	entries, err := ReadEntries(logPath, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cache", entries[0].Logger)
	assert.Equal(t, "debug", entries[0].Level)
	assert.Equal(t, "books", entries[0].Fields["key"])
	assert.False(t, entries[0].Time.IsZero())
	assert.Equal(t, "refresh complete", entries[1].Message)
}

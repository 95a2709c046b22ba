package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, defaultAPIBase, cfg.APIBase)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.LookupQuiet)
	assert.True(t, cfg.LookupPersist)
	assert.Equal(t, 30*time.Second, cfg.RefreshEvery)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)

	wantLog, err := expandPath(defaultLogFile)
	require.NoError(t, err)
	assert.Equal(t, wantLog, cfg.LogFile)
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_base = "  http://books.lan:9000  "
request_timeout_seconds = 3
lookup_quiet_ms = 250
lookup_persist = false
refresh_seconds = 0
log_file = "  ~/logs/shelf.log  "
log_level = "debug"
metrics_addr = " 127.0.0.1:9464 "
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://books.lan:9000", cfg.APIBase)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.LookupQuiet)
	assert.False(t, cfg.LookupPersist)
	assert.Zero(t, cfg.RefreshEvery, "zero disables background refresh")
	assert.Equal(t, filepath.Join(home, "logs/shelf.log"), cfg.LogFile)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsAddr)
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
api_base = "   "
log_file = ""
log_level = ""
request_timeout_seconds = 0
lookup_quiet_ms = -5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.APIBase, cfg.APIBase)
	assert.Equal(t, def.LogFile, cfg.LogFile)
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.RequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, def.LookupQuiet, cfg.LookupQuiet)
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	tests := map[string]string{
		"toml":    `api_base = [`,
		"level":   `log_level = "loud"`,
		"refresh": `refresh_seconds = -1`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse config")
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "a/b"), got)
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	_, err := expandPath("   ")
	assert.Error(t, err)
}

func TestDefaultPath_UnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := DefaultPath()
	assert.True(t, strings.HasPrefix(got, home), "DefaultPath = %q", got)
	assert.True(t, strings.HasSuffix(got, filepath.FromSlash("/shelf/config.toml")))
}

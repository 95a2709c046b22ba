package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

// Config holds the settings shelf reads from its TOML file.
type Config struct {
	APIBase        string
	RequestTimeout time.Duration
	LookupQuiet    time.Duration
	LookupPersist  bool
	RefreshEvery   time.Duration
	LogFile        string
	LogLevel       zapcore.Level
	MetricsAddr    string
}

const (
	defaultConfigPath     = "~/.config/shelf/config.toml"
	defaultAPIBase        = "http://127.0.0.1:8000"
	defaultLogFile        = "~/.local/share/shelf/shelf.log"
	defaultLogLevel       = "info"
	defaultTimeoutSeconds = 10
	defaultQuietMillis    = 500
	defaultRefreshSeconds = 30
)

// DefaultPath is the config location used when none is given.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBase:        defaultAPIBase,
		RequestTimeout: defaultTimeoutSeconds * time.Second,
		LookupQuiet:    defaultQuietMillis * time.Millisecond,
		LookupPersist:  true,
		RefreshEvery:   defaultRefreshSeconds * time.Second,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       zapcore.InfoLevel,
	}
}

// Load locates and parses the shelf config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase        string `toml:"api_base"`
		RequestTimeout *int   `toml:"request_timeout_seconds"`
		LookupQuietMS  *int   `toml:"lookup_quiet_ms"`
		LookupPersist  *bool  `toml:"lookup_persist"`
		RefreshSeconds *int   `toml:"refresh_seconds"`
		LogFile        string `toml:"log_file"`
		LogLevel       string `toml:"log_level"`
		MetricsAddr    string `toml:"metrics_addr"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBase); v != "" {
		cfg.APIBase = v
	}
	if raw.RequestTimeout != nil && *raw.RequestTimeout > 0 {
		cfg.RequestTimeout = time.Duration(*raw.RequestTimeout) * time.Second
	}
	if raw.LookupQuietMS != nil && *raw.LookupQuietMS > 0 {
		cfg.LookupQuiet = time.Duration(*raw.LookupQuietMS) * time.Millisecond
	}
	if raw.LookupPersist != nil {
		cfg.LookupPersist = *raw.LookupPersist
	}
	if raw.RefreshSeconds != nil {
		if *raw.RefreshSeconds < 0 {
			return Config{}, fmt.Errorf("parse config: refresh_seconds must not be negative")
		}
		cfg.RefreshEvery = time.Duration(*raw.RefreshSeconds) * time.Second
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		level, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

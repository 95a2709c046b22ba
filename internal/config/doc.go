// Package config handles loading and parsing the shelf configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/shelf/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or blank, use defaults
//
// # Configuration Fields
//
//   - api_base: base URL of the book API (default http://127.0.0.1:8000)
//   - request_timeout_seconds: HTTP client timeout (default 10)
//   - lookup_quiet_ms: debounce quiet period for metadata search (default 500)
//   - lookup_persist: ask the lookup service to save matches (default true)
//   - refresh_seconds: background refresh cadence, 0 disables (default 30)
//   - log_file: JSON log destination (default ~/.local/share/shelf/shelf.log)
//   - log_level: zap level name (default info)
//   - metrics_addr: serve Prometheus /metrics here when set
//
// # TOML Format
//
//	api_base = "http://127.0.0.1:8000"
//	lookup_quiet_ms = 300
//	log_level = "debug"
//
// # Path Expansion
//
// Paths beginning with ~ are expanded to the user's home directory and made
// absolute.
//
// # Error Handling
//
// A missing file is not an error. Files that exist but cannot be read, fail
// TOML parsing, or carry an unknown log level or a negative refresh interval
// return an error wrapped with "parse config" or "open config".
package config

// Package app provides the orchestration layer for the shelf application.
//
// # Overview
//
// This package wires together configuration, logging, metrics, the book API
// client, the state store and the UI. It is the composition root: the store
// and everything it owns are created here and torn down here, and nothing
// else in the program holds a global reference to them.
//
// # Architecture
//
//  1. Load config from ~/.config/shelf/config.toml and prefs from prefs.toml
//  2. Build a zap JSON logger writing to log_file
//  3. Build a private Prometheus registry; serve /metrics when metrics_addr is set
//  4. Create the library.Client for the book API
//  5. Create state.Store (cache, invalidation graph, mutation pipeline, lookup)
//  6. Refresh once so the first frame has data
//  7. Launch the background poller
//  8. Start the TUI and block until the user exits or the context cancels
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read shelf config
//	       ├─────> newLogger()          JSON log file
//	       ├─────> metrics.New()        Prometheus collectors
//	       ├─────> library.NewClient()  HTTP client
//	       ├─────> state.New()          Cache and writers
//	       ├─────> store.Refresh()      Initial fill
//	       ├─────> StartPoller()        Background refresh
//	       └─────> ui.Run()             Start TUI (blocks)
//
// # Polling Behavior
//
// Every refresh_seconds the poller calls store.Refresh, which marks books
// (and so stats) stale and refetches both concurrently. Consecutive failures
// back off exponentially from the base interval, capped at 30 seconds, and
// reset on the first success. refresh_seconds = 0 disables the poller.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Config file present but invalid
//   - Log file directory cannot be created
//   - Client initialization failure
//
// Everything else (an unreachable API, failed mutations, failed lookups) is
// logged and surfaced in the UI; the program keeps running.
package app

// Package ui provides the terminal user interface for shelf.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. It never talks to the book API directly:
// every read goes through the Core (state.Store), and every write is a
// mutation.Request handed to the store's pipeline. Optimistic patches,
// commits and rollbacks therefore reach the screen the same way a refetch
// does, as a cache change.
//
// # Package Structure
//
//   - app.go: Model, Update loop, view switching and Run
//   - bridge.go: messages and commands, including the subscription bridge
//   - header.go: status bar, tab line and footer
//   - dashboard.go: statistic cards, rating histogram, top authors
//   - books.go, form.go: collection table, add/edit form, delete confirm
//   - search.go: debounced metadata lookup
//   - logs.go: tail of the JSON log file
//   - help.go, keys.go, theme.go: help overlay, key bindings, palettes
//
// # Event Flow
//
//  1. New subscribes to the books and stats keys. Listeners add their key
//     to a pending set and signal without blocking, so a burst of cache
//     changes collapses into a single changeMsg carrying each key once.
//  2. On changeMsg the model re-reads the Snapshot. Every listed key that
//     went stale (a rollback, or stats after a books change) is refetched
//     with EnsureFresh.
//  3. Typing in the search view calls Search on every edit. Results arrive
//     on the lookup channel and only the latest generation is ever shown.
//  4. Theme and sort order changes are written back to prefs.toml.
package ui

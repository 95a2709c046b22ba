// Package logtail reads the tail of shelf's own log file for the in-app log view.
//
// # Overview
//
// shelf runs a full-screen TUI, so its zap logger writes JSON lines to a file
// instead of the terminal. This package reads the last N lines of that file
// and decodes them into Entry values the UI can style by level.
//
// # Reading Log Files
//
// Read uses a ring buffer so memory stays O(maxLines) regardless of file
// size, and returns lines in chronological order:
//
//  1. Allocate ring buffer of size maxLines
//  2. Store each scanned line at the current index, wrapping at maxLines
//  3. If fewer than maxLines were seen, return them as-is
//  4. Otherwise return the buffer starting at the oldest line
//
// A non-positive maxLines returns the whole file.
//
// # Decoding
//
// Parse understands the zap production JSON encoder: ts (epoch seconds or
// ISO8601), level, logger, msg; remaining keys become Fields. Anything that
// is not a JSON object, such as a panic trace, is passed through in Raw and
// Message so nothing is silently dropped.
//
// # Error Handling
//
// Read returns nil, nil for non-existent files. Other errors are returned
// wrapped. Parse never fails.
package logtail

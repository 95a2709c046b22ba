// Package state is the client-side data core of shelf.
//
// # Overview
//
// Store owns one resource cache and every component that writes to it:
//
//	            ┌──────────────────────────────┐
//	 UI ───────>│ Store                        │
//	            │   EnsureFresh / Read         │──> cache.Cache
//	            │   Mutate ──> mutation.Pipeline ──┤
//	            │   Search ──> lookup.Controller ──┤
//	            │   Refresh / Invalidate ──> invalidation.Graph
//	            └──────────────────────────────┘
//
// The cache is the only shared mutable state. Presentation code never keeps
// its own copy of server data; it reads a Snapshot or subscribes to a key.
//
// # Keys
//
// Two resources are cached: library.KeyBooks and library.KeyStats.
// Statistics are computed by the server from the collection, so the
// invalidation graph marks stats stale whenever books are invalidated.
//
// # Refresh
//
// Refresh invalidates books (and through the graph, stats) and refetches
// both concurrently. It records the time of the attempt, the last error
// and the number of consecutive failures. Two or more consecutive failures
// make Snapshot.IsOffline report true.
//
// # Snapshot
//
// Snapshot is a value copy assembled from the current cache entries. Books
// and statistics are cloned so callers may keep them across renders.
// Entries that never loaded report StatusIdle and a zero value.
//
// # Lifetime
//
// Store is created by the composition root and closed on exit. Close stops
// the lookup controller and the cache; fetches still in flight complete
// against a closed cache and are dropped.
package state

// Package cache holds server-owned resources keyed by name. Each entry tracks
// a status (idle, loading, fresh, stale, error), a version that increments on
// every authoritative commit, and at most one in-flight fetch. Readers of a
// loading key share that fetch. Invalidating a loading key supersedes its
// fetch, whose late result is then discarded and refetched on the next read.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/shelf/internal/metrics"
)

// ErrClosed is returned by EnsureFresh after Close.
var ErrClosed = errors.New("cache closed")

// Fetcher loads the authoritative value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Options configure a Cache. The zero value is usable.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Now overrides the clock used for FetchedAt.
	Now func() time.Time
}

// Cache is a keyed store of server-owned values with status tracking,
// request coalescing and change notification.
//
// Values are treated as immutable: patch and commit functions must return a
// new value rather than modifying the one they receive, because readers may
// still hold the previous value.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	listeners map[string]map[uint64]Listener
	nextSub   uint64
	nextToken uint64
	closed    bool

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type entry struct {
	Entry
	inflight *call
}

// call is one in-flight fetch shared by every concurrent reader of a key.
type call struct {
	token uint64
	done  chan struct{}
	val   any
	err   error
}

// New returns an empty cache.
func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:   make(map[string]*entry),
		listeners: make(map[string]map[uint64]Listener),
		logger:    logger,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Get returns the current entry for key without blocking. Unknown keys report
// StatusIdle.
func (c *Cache) Get(key string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.Entry
	}
	return Entry{Key: key}
}

// EnsureFresh returns the cached value when the entry is fresh. Otherwise it
// starts a fetch, or joins the one already in flight, and waits for it.
//
// The fetch runs detached from ctx so one caller giving up does not fail the
// others; ctx only bounds how long this caller waits.
func (c *Cache) EnsureFresh(ctx context.Context, key string, fetch Fetcher) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e := c.entryLocked(key)
	if e.Status == StatusFresh {
		v := e.Value
		c.mu.Unlock()
		return v, nil
	}
	if cl := e.inflight; cl != nil {
		c.mu.Unlock()
		c.metrics.Coalesced(key)
		return wait(ctx, cl)
	}

	c.nextToken++
	cl := &call{token: c.nextToken, done: make(chan struct{})}
	e.inflight = cl
	e.Status = StatusLoading
	n := c.notificationLocked(e)
	c.mu.Unlock()
	n.deliver()

	c.logger.Debug("fetch started", zap.String("key", key), zap.Uint64("token", cl.token))
	go c.run(context.WithoutCancel(ctx), key, cl, fetch)

	return wait(ctx, cl)
}

func (c *Cache) run(ctx context.Context, key string, cl *call, fetch Fetcher) {
	start := c.now()
	val, err := fetch(ctx)
	cl.val, cl.err = val, err
	c.complete(key, cl, start)
	close(cl.done)
}

func (c *Cache) complete(key string, cl *call, start time.Time) {
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.inflight != cl {
		c.mu.Unlock()
		c.metrics.ObserveFetch(key, metrics.OutcomeDiscarded, elapsed)
		c.metrics.Discarded(key)
		c.logger.Debug("superseded fetch discarded", zap.String("key", key), zap.Uint64("token", cl.token))
		return
	}
	e.inflight = nil
	if cl.err != nil {
		e.Status = StatusError
		e.Err = cl.err
	} else {
		e.Status = StatusFresh
		e.Value = cl.val
		e.Err = nil
		e.Version++
		e.FetchedAt = c.now()
	}
	n := c.notificationLocked(e)
	c.mu.Unlock()

	if cl.err != nil {
		c.metrics.ObserveFetch(key, metrics.OutcomeError, elapsed)
		c.logger.Warn("fetch failed", zap.String("key", key), zap.Error(cl.err))
	} else {
		c.metrics.ObserveFetch(key, metrics.OutcomeSuccess, elapsed)
		c.logger.Debug("fetch complete",
			zap.String("key", key),
			zap.Uint64("version", n.entry.Version),
			zap.Duration("elapsed", elapsed))
	}
	n.deliver()
}

func wait(ctx context.Context, cl *call) (any, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetOptimistic replaces the value with patch(current) without touching
// status or version. Listeners are notified of the new value.
func (c *Cache) SetOptimistic(key string, patch func(any) any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e := c.entryLocked(key)
	e.Value = patch(e.Value)
	n := c.notificationLocked(e)
	c.mu.Unlock()
	n.deliver()
}

// Commit stores an authoritative value: status becomes fresh and the version
// is bumped. An in-flight fetch is left alone and still applies when it lands.
func (c *Cache) Commit(key string, value any) {
	c.CommitFunc(key, func(any) any { return value })
}

// CommitFunc is Commit with the new value derived atomically from the current one.
func (c *Cache) CommitFunc(key string, fn func(any) any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e := c.entryLocked(key)
	e.Value = fn(e.Value)
	e.Status = StatusFresh
	e.Err = nil
	e.Version++
	e.FetchedAt = c.now()
	n := c.notificationLocked(e)
	c.mu.Unlock()
	n.deliver()
}

// Invalidate marks a fresh or loading entry stale so the next EnsureFresh
// refetches. Any in-flight fetch is superseded, including one still running
// under an entry a Commit already made fresh: the fetch completes but its
// result is discarded. Other states are left as they are. It reports whether
// the entry changed.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if e.Status != StatusFresh && e.Status != StatusLoading && e.inflight == nil {
		c.mu.Unlock()
		return false
	}
	e.inflight = nil
	e.Status = StatusStale
	n := c.notificationLocked(e)
	c.mu.Unlock()

	c.metrics.Invalidated(key)
	c.logger.Debug("entry invalidated", zap.String("key", key))
	n.deliver()
	return true
}

// Close tears the cache down. Listeners are dropped and further calls are
// no-ops; fetches already in flight still release their waiters.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.entries = make(map[string]*entry)
	c.listeners = make(map[string]map[uint64]Listener)
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		c.entries[key] = e
	}
	return e
}

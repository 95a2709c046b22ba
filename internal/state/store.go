package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/invalidation"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/lookup"
	"github.com/five82/shelf/internal/metrics"
	"github.com/five82/shelf/internal/mutation"
)

// RecentWindow is how far back a book counts as a recent addition.
const RecentWindow = 30 * 24 * time.Hour

// Backend is every collaborator the store talks to. *library.Client
// implements it.
type Backend interface {
	library.BookService
	library.StatsService
	library.LookupService
}

// Options configure a Store.
type Options struct {
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	LookupQuiet   time.Duration
	LookupPersist bool
	Now           func() time.Time
}

// Snapshot is the view model handed to presentation code.
type Snapshot struct {
	Books       []library.Book
	BooksStatus cache.Status
	BooksError  error

	Stats       library.Statistics
	HasStats    bool
	StatsStatus cache.Status
	StatsError  error

	RecentAdditions int

	Lookup    lookup.Result
	HasLookup bool

	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive refresh failures
}

// IsOffline returns true when the API has been unreachable for multiple refreshes.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store owns the resource cache and the components that write to it.
type Store struct {
	cache    *cache.Cache
	graph    *invalidation.Graph
	backend  Backend
	pipeline *mutation.Pipeline
	lookup   *lookup.Controller
	logger   *zap.Logger
	now      func() time.Time

	mu                  sync.RWMutex
	lastUpdated         time.Time
	lastError           error
	consecutiveFailures int
}

// New wires a Store around backend. Close releases it.
func New(backend Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("state store requires a backend")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := cache.New(cache.Options{
		Logger:  opts.Logger.Named("cache"),
		Metrics: opts.Metrics,
		Now:     opts.Now,
	})
	graph := invalidation.New(c, library.Dependencies(), opts.Logger.Named("invalidation"))

	pipeline, err := mutation.New(mutation.Options{
		Books:   backend,
		Store:   c,
		Graph:   graph,
		Logger:  opts.Logger.Named("mutation"),
		Metrics: opts.Metrics,
		Now:     opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build mutation pipeline: %w", err)
	}
	ctrl, err := lookup.New(backend, lookup.Options{
		Quiet:   opts.LookupQuiet,
		Persist: opts.LookupPersist,
		Graph:   graph,
		Logger:  opts.Logger.Named("lookup"),
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build lookup controller: %w", err)
	}

	return &Store{
		cache:    c,
		graph:    graph,
		backend:  backend,
		pipeline: pipeline,
		lookup:   ctrl,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// Read returns the current entry for key without blocking.
func (s *Store) Read(key string) cache.Entry {
	return s.cache.Get(key)
}

// EnsureFresh returns the value for key, fetching it when it is not fresh.
func (s *Store) EnsureFresh(ctx context.Context, key string) (any, error) {
	fetch, err := s.fetcher(key)
	if err != nil {
		return nil, err
	}
	return s.cache.EnsureFresh(ctx, key, fetch)
}

// Books returns a private copy of the fresh book list.
func (s *Store) Books(ctx context.Context) ([]library.Book, error) {
	v, err := s.EnsureFresh(ctx, library.KeyBooks)
	if err != nil {
		return nil, err
	}
	books, _ := v.([]library.Book)
	return library.CloneBooks(books), nil
}

// Stats returns the fresh statistics.
func (s *Store) Stats(ctx context.Context) (library.Statistics, error) {
	v, err := s.EnsureFresh(ctx, library.KeyStats)
	if err != nil {
		return library.Statistics{}, err
	}
	stats, _ := v.(library.Statistics)
	return stats.Clone(), nil
}

// Mutate runs req through the optimistic mutation pipeline. On failure the
// cache has already been rolled back.
func (s *Store) Mutate(ctx context.Context, req mutation.Request) mutation.Result {
	return s.pipeline.Mutate(ctx, req)
}

// Search feeds the debounced metadata lookup.
func (s *Store) Search(query string) {
	s.lookup.Search(query)
}

// LookupResults delivers current-generation lookup results.
func (s *Store) LookupResults() <-chan lookup.Result {
	return s.lookup.Results()
}

// Subscribe registers fn for changes to key. See cache.Cache.Subscribe.
func (s *Store) Subscribe(key string, fn cache.Listener) func() {
	return s.cache.Subscribe(key, fn)
}

// Invalidate marks key and its dependents stale.
func (s *Store) Invalidate(key string) []string {
	return s.graph.Propagate(key)
}

// Refresh marks the collection stale and refetches books and statistics
// concurrently. The outcome feeds the offline indicator.
func (s *Store) Refresh(ctx context.Context) error {
	s.graph.Propagate(library.KeyBooks)

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range []string{library.KeyBooks, library.KeyStats} {
		g.Go(func() error {
			if _, err := s.EnsureFresh(gctx, key); err != nil {
				return fmt.Errorf("refresh %s: %w", key, err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	s.lastUpdated = s.now()
	if err != nil {
		s.lastError = err
		s.consecutiveFailures++
	} else {
		s.lastError = nil
		s.consecutiveFailures = 0
	}
	failures := s.consecutiveFailures
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("refresh failed", zap.Int("consecutive_failures", failures), zap.Error(err))
	}
	return err
}

// Snapshot assembles a copy of everything presentation code renders.
func (s *Store) Snapshot() Snapshot {
	books := s.cache.Get(library.KeyBooks)
	stats := s.cache.Get(library.KeyStats)

	snap := Snapshot{
		BooksStatus: books.Status,
		BooksError:  books.Err,
		StatsStatus: stats.Status,
		StatsError:  stats.Err,
	}
	if list, ok := cache.Value[[]library.Book](books); ok {
		snap.Books = library.CloneBooks(list)
	}
	if st, ok := cache.Value[library.Statistics](stats); ok {
		snap.Stats = st.Clone()
		snap.HasStats = true
	}
	snap.RecentAdditions = library.RecentCount(snap.Books, s.now(), RecentWindow)
	snap.Lookup, snap.HasLookup = s.lookup.Latest()

	s.mu.RLock()
	snap.LastUpdated = s.lastUpdated
	snap.LastError = s.lastError
	snap.ConsecutiveFailures = s.consecutiveFailures
	s.mu.RUnlock()

	return snap
}

// Close stops the lookup controller and tears down the cache.
func (s *Store) Close() {
	s.lookup.Close()
	s.cache.Close()
}

func (s *Store) fetcher(key string) (cache.Fetcher, error) {
	switch key {
	case library.KeyBooks:
		return func(ctx context.Context) (any, error) {
			return s.backend.ListBooks(ctx)
		}, nil
	case library.KeyStats:
		return func(ctx context.Context) (any, error) {
			return s.backend.FetchStats(ctx)
		}, nil
	default:
		return nil, fmt.Errorf("unknown resource key %q", key)
	}
}

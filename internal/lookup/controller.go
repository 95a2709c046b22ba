// Package lookup debounces metadata searches typed by the user.
//
// A Controller is built once and lives as long as the screen that owns it.
// Every Search starts a new generation and restarts a quiet-period timer;
// only the last query of a burst is dispatched. A response whose generation
// is no longer current is dropped without touching visible state, so a
// keystroke made while a lookup is in flight cancels it even before the next
// dispatch. Superseded requests are also aborted through their context, but
// the generation check alone is what keeps results in order.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/metrics"
)

// DefaultQuiet is the quiet period used when Options.Quiet is zero.
const DefaultQuiet = 500 * time.Millisecond

// Propagator marks a key and its dependents stale.
type Propagator interface {
	Propagate(key string) []string
}

// ResultType tags a Result.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultError
)

func (t ResultType) String() string {
	if t == ResultSuccess {
		return "success"
	}
	return "error"
}

// Result is the outcome of the current lookup.
type Result struct {
	Type       ResultType
	Query      string
	Generation uint64
	Payload    library.LookupResult
	Message    string
	Err        error
}

// Options configure a Controller.
type Options struct {
	Quiet   time.Duration
	Persist bool
	// Graph receives a books invalidation when a lookup result was saved
	// into the collection. Optional.
	Graph   Propagator
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Controller turns bursts of keystrokes into single lookups.
type Controller struct {
	svc     library.LookupService
	quiet   time.Duration
	persist bool
	graph   Propagator
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	cancel     context.CancelFunc
	latest     *Result
	results    chan Result
	closed     bool

	base context.Context
	stop context.CancelFunc
}

// New builds a Controller around svc.
func New(svc library.LookupService, opts Options) (*Controller, error) {
	if svc == nil {
		return nil, fmt.Errorf("lookup controller requires a lookup service")
	}
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		svc:     svc,
		quiet:   opts.Quiet,
		persist: opts.Persist,
		graph:   opts.Graph,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		results: make(chan Result, 1),
		base:    base,
		stop:    stop,
	}, nil
}

// Search records query, supersedes every earlier lookup and (re)starts the
// quiet period. A blank query only cancels what is pending or in flight; with
// nothing outstanding it changes nothing.
func (c *Controller) Search(query string) {
	q := strings.TrimSpace(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	outstanding := c.timer != nil || c.cancel != nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if q == "" {
		if outstanding {
			c.generation++
		}
		return
	}
	c.generation++
	gen := c.generation
	c.timer = time.AfterFunc(c.quiet, func() { c.dispatch(gen, q) })
}

// Results delivers completed lookups. Only the most recent undelivered
// result is kept; older ones are replaced.
func (c *Controller) Results() <-chan Result {
	return c.results
}

// Latest returns the most recent current-generation result, if any.
func (c *Controller) Latest() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return Result{}, false
	}
	return *c.latest, true
}

// Generation is the current lookup session. Each non-blank Search advances
// it, as does a blank one that cancels outstanding work.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Close stops the timer, aborts any in-flight lookup and closes Results.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.stop()
	close(c.results)
}

func (c *Controller) dispatch(gen uint64, query string) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.mu.Unlock()

	c.metrics.Lookup(metrics.LookupDispatched)
	c.logger.Debug("lookup dispatched", zap.String("query", query), zap.Uint64("generation", gen))

	res, err := c.svc.Lookup(ctx, query, c.persist)
	c.complete(gen, query, res, err)
}

func (c *Controller) complete(gen uint64, query string, res library.LookupResult, err error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.metrics.Lookup(metrics.OutcomeDiscarded)
		c.logger.Debug("stale lookup discarded", zap.String("query", query), zap.Uint64("generation", gen))
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	r := Result{Type: ResultSuccess, Query: query, Generation: gen, Payload: res}
	if err != nil {
		r = Result{Type: ResultError, Query: query, Generation: gen, Message: err.Error(), Err: err}
	}
	c.latest = &r
	c.publishLocked(r)
	c.mu.Unlock()

	if err != nil {
		c.metrics.Lookup(metrics.OutcomeError)
		c.logger.Warn("lookup failed", zap.String("query", query), zap.Error(err))
		return
	}
	c.metrics.Lookup(metrics.OutcomeSuccess)
	c.logger.Debug("lookup complete",
		zap.String("query", query),
		zap.Bool("found", res.Found),
		zap.Bool("saved", res.SavedToCollection))
	if res.SavedToCollection && c.graph != nil {
		c.graph.Propagate(library.KeyBooks)
	}
}

// publishLocked replaces any undelivered result with r.
func (c *Controller) publishLocked(r Result) {
	select {
	case c.results <- r:
		return
	default:
	}
	select {
	case <-c.results:
	default:
	}
	select {
	case c.results <- r:
	default:
	}
}

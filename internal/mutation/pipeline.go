// Package mutation applies create, update and delete requests against the
// book collection with optimistic cache patches.
//
// A mutation moves idle -> applying -> committed, or applying -> rolled_back.
// Validation runs before anything touches the cache; a rejected request
// stays idle. On failure the cached list is restored and the target key is
// invalidated so the next read reconciles with the server. On success the
// server record replaces the placeholder and the invalidation graph marks
// derived keys stale.
package mutation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/metrics"
)

// Store is the part of the resource cache the pipeline writes through.
type Store interface {
	Get(key string) cache.Entry
	SetOptimistic(key string, patch func(any) any)
	CommitFunc(key string, fn func(any) any)
	Invalidate(key string) bool
}

// Propagator marks a key and its dependents stale.
type Propagator interface {
	Propagate(key string) []string
}

// Kind selects the mutation.
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// State is the position of a mutation in Idle -> Applying -> {Committed, RolledBack}.
type State int

const (
	StateIdle State = iota
	StateApplying
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplying:
		return "applying"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Request describes one mutation. ID is ignored for creates; Input is ignored
// for deletes.
type Request struct {
	Kind  Kind
	ID    int64
	Input library.BookInput
}

// Result is the terminal outcome of a mutation. On failure the cache has
// already been rolled back when the Result is returned.
type Result struct {
	Kind  Kind
	State State
	Book  library.Book
	Err   error
}

// OK reports whether the mutation committed.
func (r Result) OK() bool {
	return r.State == StateCommitted && r.Err == nil
}

// Options wire a Pipeline.
type Options struct {
	Books   library.BookService
	Store   Store
	Graph   Propagator
	Key     string // cache key holding []library.Book; defaults to library.KeyBooks
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// NewCorrelation overrides placeholder correlation ids.
	NewCorrelation func() string
	Now            func() time.Time
}

// Pipeline applies book mutations optimistically, confirms them with the
// collection service, and either commits the server's record or rolls back.
// It never retries.
type Pipeline struct {
	books   library.BookService
	store   Store
	graph   Propagator
	key     string
	logger  *zap.Logger
	metrics *metrics.Metrics
	newCorr func() string
	now     func() time.Time
	tempSeq atomic.Int64
}

// pending lives for the duration of one mutation.
type pending struct {
	kind       Kind
	state      State
	optimistic []library.Book
	snapshot   []library.Book
	inverse    func([]library.Book) []library.Book
}

// New builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Books == nil {
		return nil, fmt.Errorf("mutation pipeline requires a book service")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("mutation pipeline requires a store")
	}
	p := &Pipeline{
		books:   opts.Books,
		store:   opts.Store,
		graph:   opts.Graph,
		key:     opts.Key,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		newCorr: opts.NewCorrelation,
		now:     opts.Now,
	}
	if p.key == "" {
		p.key = library.KeyBooks
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.newCorr == nil {
		p.newCorr = uuid.NewString
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Mutate dispatches req and reports its terminal state.
func (p *Pipeline) Mutate(ctx context.Context, req Request) Result {
	switch req.Kind {
	case KindCreate:
		return p.create(ctx, req.Input)
	case KindUpdate:
		return p.update(ctx, req.ID, req.Input)
	case KindDelete:
		return p.remove(ctx, req.ID)
	default:
		return Result{Kind: req.Kind, State: StateIdle, Err: fmt.Errorf("unknown mutation kind %d", req.Kind)}
	}
}

// Create adds a book. The returned record carries the server-assigned id.
func (p *Pipeline) Create(ctx context.Context, in library.BookInput) (library.Book, error) {
	r := p.create(ctx, in)
	return r.Book, r.Err
}

// Update replaces the writable fields of book id.
func (p *Pipeline) Update(ctx context.Context, id int64, in library.BookInput) (library.Book, error) {
	r := p.update(ctx, id, in)
	return r.Book, r.Err
}

// Delete removes book id.
func (p *Pipeline) Delete(ctx context.Context, id int64) error {
	return p.remove(ctx, id).Err
}

func (p *Pipeline) create(ctx context.Context, in library.BookInput) Result {
	if err := in.Validate(); err != nil {
		return p.reject(KindCreate, err)
	}

	corr := p.newCorr()
	placeholder := in.Apply(library.Book{
		ID:          -p.tempSeq.Add(1),
		Correlation: corr,
		CreatedAt:   p.now(),
	})
	pm := &pending{
		kind: KindCreate,
		inverse: func(books []library.Book) []library.Book {
			if idx := indexOf(books, byCorrelation(corr)); idx >= 0 {
				return removeAt(books, idx)
			}
			return books
		},
	}
	p.apply(pm, func(books []library.Book) []library.Book {
		return appendBook(books, placeholder)
	})

	book, err := p.books.CreateBook(ctx, in)
	if err != nil {
		return p.rollBack(pm, err)
	}
	return p.commit(pm, book, func(books []library.Book) []library.Book {
		return settle(books, corr, book)
	})
}

func (p *Pipeline) update(ctx context.Context, id int64, in library.BookInput) Result {
	if err := in.Validate(); err != nil {
		return p.reject(KindUpdate, err)
	}

	var before library.Book
	found := false
	pm := &pending{
		kind: KindUpdate,
		inverse: func(books []library.Book) []library.Book {
			if !found {
				return books
			}
			if idx := indexOf(books, byID(id)); idx >= 0 {
				return replaceAt(books, idx, before)
			}
			return books
		},
	}
	p.apply(pm, func(books []library.Book) []library.Book {
		idx := indexOf(books, byID(id))
		if idx < 0 {
			return books
		}
		before, found = books[idx], true
		return replaceAt(books, idx, in.Apply(before))
	})

	book, err := p.books.UpdateBook(ctx, id, in)
	if err != nil {
		return p.rollBack(pm, err)
	}
	return p.commit(pm, book, func(books []library.Book) []library.Book {
		if idx := indexOf(books, byID(id)); idx >= 0 {
			return replaceAt(books, idx, book)
		}
		return books
	})
}

func (p *Pipeline) remove(ctx context.Context, id int64) Result {
	var removed library.Book
	at := -1
	pm := &pending{
		kind: KindDelete,
		inverse: func(books []library.Book) []library.Book {
			if at < 0 || indexOf(books, byID(id)) >= 0 {
				return books
			}
			return insertAt(books, at, removed)
		},
	}
	p.apply(pm, func(books []library.Book) []library.Book {
		idx := indexOf(books, byID(id))
		if idx < 0 {
			return books
		}
		removed, at = books[idx], idx
		return removeAt(books, idx)
	})

	if err := p.books.DeleteBook(ctx, id); err != nil {
		return p.rollBack(pm, err)
	}
	return p.commit(pm, removed, func(books []library.Book) []library.Book {
		if idx := indexOf(books, byID(id)); idx >= 0 {
			return removeAt(books, idx)
		}
		return books
	})
}

// apply installs the optimistic patch, capturing the pre-mutation list in
// the same atomic step.
func (p *Pipeline) apply(pm *pending, patch func([]library.Book) []library.Book) {
	pm.state = StateApplying
	p.store.SetOptimistic(p.key, func(v any) any {
		pm.snapshot = booksOf(v)
		pm.optimistic = patch(pm.snapshot)
		return pm.optimistic
	})
}

// rollBack restores the pre-mutation list. When nothing else touched the
// list since the optimistic patch the snapshot is reinstated as-is;
// otherwise only this mutation's effect is inverted so concurrent mutations
// survive. The key itself is then marked stale; dependents are not.
func (p *Pipeline) rollBack(pm *pending, cause error) Result {
	p.store.SetOptimistic(p.key, func(v any) any {
		cur := booksOf(v)
		if sameList(cur, pm.optimistic) {
			return pm.snapshot
		}
		return pm.inverse(cur)
	})
	p.store.Invalidate(p.key)
	pm.state = StateRolledBack

	p.metrics.Mutation(pm.kind.String(), pm.state.String())
	p.logger.Warn("mutation rolled back",
		zap.String("kind", pm.kind.String()),
		zap.String("error_kind", library.KindOf(cause).String()),
		zap.Error(cause))
	return Result{Kind: pm.kind, State: pm.state, Err: cause}
}

func (p *Pipeline) commit(pm *pending, book library.Book, settle func([]library.Book) []library.Book) Result {
	patch := func(v any) any { return settle(booksOf(v)) }
	if p.store.Get(p.key).Version == 0 {
		// No authoritative list yet; keep the result provisional so the
		// partial list is never reported as fresh.
		p.store.SetOptimistic(p.key, patch)
	} else {
		p.store.CommitFunc(p.key, patch)
	}
	pm.state = StateCommitted

	var stale []string
	if p.graph != nil {
		stale = p.graph.Propagate(p.key)
	} else {
		p.store.Invalidate(p.key)
	}

	p.metrics.Mutation(pm.kind.String(), pm.state.String())
	p.logger.Info("mutation committed",
		zap.String("kind", pm.kind.String()),
		zap.Int64("id", book.ID),
		zap.Strings("invalidated", stale))
	return Result{Kind: pm.kind, State: pm.state, Book: book}
}

func (p *Pipeline) reject(kind Kind, err error) Result {
	p.metrics.Mutation(kind.String(), "rejected")
	p.logger.Debug("mutation rejected", zap.String("kind", kind.String()), zap.Error(err))
	return Result{Kind: kind, State: StateIdle, Err: err}
}

// sameList reports whether a and b are the same slice value, not merely equal.
func sameList(a, b []library.Book) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

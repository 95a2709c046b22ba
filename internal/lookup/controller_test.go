package lookup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/invalidation"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/metrics"
)

const quiet = 20 * time.Millisecond

// fakeLookup answers from a table. Queries listed in gates block until their
// channel is closed, ignoring cancellation, to model a response that arrives
// late.
type fakeLookup struct {
	mu      sync.Mutex
	queries []string
	persist []bool
	answers map[string]library.LookupResult
	errs    map[string]error
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		answers: map[string]library.LookupResult{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 8),
	}
}

func (f *fakeLookup) Lookup(_ context.Context, query string, persist bool) (library.LookupResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.persist = append(f.persist, persist)
	gate := f.gates[query]
	f.mu.Unlock()

	f.entered <- query
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[query], f.errs[query]
}

func (f *fakeLookup) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func found(title string) library.LookupResult {
	return library.LookupResult{Found: true, Record: library.VolumeInfo{Title: title, Authors: []string{"Frank Herbert"}}}
}

func receive(t *testing.T, c *Controller) Result {
	t.Helper()
	select {
	case r := <-c.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no lookup result delivered")
		return Result{}
	}
}

func TestSearch_BurstDispatchesOnlyLastQuery(t *testing.T) {
	svc := newFakeLookup()
	svc.answers["Foobar"] = found("Foobar")
	c, err := New(svc, Options{Quiet: quiet})
	require.NoError(t, err)
	defer c.Close()

	c.Search("Foo")
	c.Search("Foobar")

	r := receive(t, c)
	assert.Equal(t, ResultSuccess, r.Type)
	assert.Equal(t, "Foobar", r.Query)
	assert.Equal(t, uint64(2), r.Generation)
	assert.Equal(t, "Foobar", r.Payload.Record.Title)

	time.Sleep(3 * quiet)
	assert.Equal(t, []string{"Foobar"}, svc.dispatched())
	assert.Equal(t, uint64(2), c.Generation())
}

func TestSearch_LateResponseNeverBecomesVisible(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newFakeLookup()
	svc.answers["Foo"] = found("Foo")
	svc.answers["Foobar"] = found("Foobar")
	fooGate := make(chan struct{})
	svc.gates["Foo"] = fooGate

	c, err := New(svc, Options{Quiet: quiet, Metrics: m})
	require.NoError(t, err)
	defer c.Close()

	c.Search("Foo")
	require.Equal(t, "Foo", <-svc.entered)

	c.Search("Foobar")
	r := receive(t, c)
	assert.Equal(t, "Foobar", r.Query)

	close(fooGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.OutcomeDiscarded)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "Foobar", latest.Query)
	assert.Equal(t, uint64(2), latest.Generation)
	select {
	case r := <-c.Results():
		t.Fatalf("stale result delivered: %+v", r)
	default:
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.LookupDispatched)))
}

func TestSearch_ResponseDuringNextQuietPeriodIsDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newFakeLookup()
	svc.answers["Foo"] = found("Foo")
	svc.answers["Foobar"] = found("Foobar")
	fooGate := make(chan struct{})
	svc.gates["Foo"] = fooGate

	// Long enough that Foo lands well before Foobar is sent.
	slow := 10 * quiet
	c, err := New(svc, Options{Quiet: slow, Metrics: m})
	require.NoError(t, err)
	defer c.Close()

	c.Search("Foo")
	require.Equal(t, "Foo", <-svc.entered)

	c.Search("Foobar")
	close(fooGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.OutcomeDiscarded)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, ok := c.Latest()
	assert.False(t, ok, "Foo must never become visible")
	assert.Equal(t, []string{"Foo"}, svc.dispatched())

	r := receive(t, c)
	assert.Equal(t, "Foobar", r.Query)
	assert.Equal(t, uint64(2), r.Generation)
}

func TestSearch_ClearingQueryDiscardsInFlightLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newFakeLookup()
	svc.answers["Foo"] = found("Foo")
	fooGate := make(chan struct{})
	svc.gates["Foo"] = fooGate

	c, err := New(svc, Options{Quiet: quiet, Metrics: m})
	require.NoError(t, err)
	defer c.Close()

	c.Search("Foo")
	require.Equal(t, "Foo", <-svc.entered)

	c.Search("  ")
	close(fooGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.OutcomeDiscarded)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, ok := c.Latest()
	assert.False(t, ok)
	select {
	case r := <-c.Results():
		t.Fatalf("cleared lookup delivered: %+v", r)
	default:
	}
	assert.Equal(t, uint64(2), c.Generation())
}

func TestSearch_EmptyQueryIsNoOp(t *testing.T) {
	svc := newFakeLookup()
	c, err := New(svc, Options{Quiet: quiet})
	require.NoError(t, err)
	defer c.Close()

	c.Search("")
	c.Search("   \t")
	time.Sleep(3 * quiet)

	assert.Empty(t, svc.dispatched())
	assert.Zero(t, c.Generation())
	_, ok := c.Latest()
	assert.False(t, ok)
}

func TestSearch_EmptyQueryClearsPendingTimer(t *testing.T) {
	svc := newFakeLookup()
	c, err := New(svc, Options{Quiet: quiet})
	require.NoError(t, err)
	defer c.Close()

	c.Search("Foo")
	c.Search("")
	time.Sleep(3 * quiet)

	assert.Empty(t, svc.dispatched())
	assert.Equal(t, uint64(2), c.Generation(), "clearing supersedes the pending query")
}

func TestSearch_ErrorIsTypedResult(t *testing.T) {
	svc := newFakeLookup()
	svc.errs["nothing"] = &library.Error{Kind: library.KindNotFound, Op: "lookup", Status: 404, Message: "Book not found"}
	c, err := New(svc, Options{Quiet: quiet})
	require.NoError(t, err)
	defer c.Close()

	c.Search("nothing")
	r := receive(t, c)
	assert.Equal(t, ResultError, r.Type)
	assert.Contains(t, r.Message, "Book not found")
	assert.ErrorIs(t, r.Err, library.ErrNotFound)
}

func TestSearch_PersistedResultInvalidatesBooks(t *testing.T) {
	store := cache.New(cache.Options{})
	store.Commit(library.KeyBooks, []library.Book{{ID: 1, Title: "A"}})
	store.Commit(library.KeyStats, library.Statistics{TotalBooks: 1})
	graph := invalidation.New(store, library.Dependencies(), nil)

	svc := newFakeLookup()
	saved := found("Dune")
	saved.SavedToCollection = true
	svc.answers["dune"] = saved
	svc.answers["dune messiah"] = found("Dune Messiah")

	c, err := New(svc, Options{Quiet: quiet, Persist: true, Graph: graph})
	require.NoError(t, err)
	defer c.Close()

	c.Search("dune messiah")
	receive(t, c)
	assert.Equal(t, cache.StatusFresh, store.Get(library.KeyBooks).Status, "unsaved result leaves the cache alone")

	c.Search("dune")
	receive(t, c)
	require.Eventually(t, func() bool {
		return store.Get(library.KeyStats).Status == cache.StatusStale
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, cache.StatusStale, store.Get(library.KeyBooks).Status)
	assert.Equal(t, []bool{true, true}, svc.persist)
}

func TestClose_StopsPendingDispatch(t *testing.T) {
	svc := newFakeLookup()
	c, err := New(svc, Options{Quiet: quiet})
	require.NoError(t, err)

	c.Search("Foo")
	c.Close()
	c.Close()
	c.Search("Bar")
	time.Sleep(3 * quiet)

	assert.Empty(t, svc.dispatched())
	_, open := <-c.Results()
	assert.False(t, open)
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	c, err := New(newFakeLookup(), Options{})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, DefaultQuiet, c.quiet)
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "error", ResultError.String())
}

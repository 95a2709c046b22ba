package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("books", OutcomeSuccess, time.Millisecond)
		m.Coalesced("books")
		m.Discarded("books")
		m.Invalidated("books")
		m.Mutation("create", "committed")
		m.Lookup(LookupDispatched)
	})
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch("books", OutcomeSuccess, time.Millisecond)
	m.ObserveFetch("books", OutcomeSuccess, time.Millisecond)
	m.ObserveFetch("stats", OutcomeError, time.Millisecond)
	m.Coalesced("books")
	m.Mutation("delete", "rolled_back")
	m.Lookup(OutcomeDiscarded)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheFetchesTotal.WithLabelValues("books", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFetchesTotal.WithLabelValues("stats", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheCoalescedTotal.WithLabelValues("books")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("delete", "rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues(OutcomeDiscarded)))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

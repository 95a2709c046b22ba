// Package metrics exposes Prometheus instruments for the client core.
//
// Every method is safe on a nil *Metrics so components can run without
// instrumentation (tests, embedded use).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for cache, mutation and lookup activity.
type Metrics struct {
	// Cache
	CacheFetchesTotal       *prometheus.CounterVec
	CacheCoalescedTotal     *prometheus.CounterVec
	CacheDiscardedTotal     *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	FetchDuration           *prometheus.HistogramVec

	// Mutations
	MutationsTotal *prometheus.CounterVec

	// Lookups
	LookupsTotal *prometheus.CounterVec
}

// Fetch outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
)

// Lookup outcomes beyond the fetch ones.
const (
	LookupDispatched = "dispatched"
)

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Fetches issued by the resource cache, by key and outcome",
		}, []string{"key", "outcome"}),
		CacheCoalescedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Reads that joined an in-flight fetch instead of issuing one",
		}, []string{"key"}),
		CacheDiscardedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Subsystem: "cache",
			Name:      "discarded_total",
			Help:      "Fetch results dropped because a newer fetch superseded them",
		}, []string{"key"}),
		CacheInvalidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries transitioned to stale",
		}, []string{"key"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of cache fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"key"}),
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "mutations_total",
			Help:      "Mutations by kind and final state",
		}, []string{"kind", "state"}),
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "lookups_total",
			Help:      "Metadata lookups by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveFetch records one completed fetch.
func (m *Metrics) ObserveFetch(key, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CacheFetchesTotal.WithLabelValues(key, outcome).Inc()
	m.FetchDuration.WithLabelValues(key).Observe(elapsed.Seconds())
}

// Coalesced records a read that shared an in-flight fetch.
func (m *Metrics) Coalesced(key string) {
	if m == nil {
		return
	}
	m.CacheCoalescedTotal.WithLabelValues(key).Inc()
}

// Discarded records a superseded fetch result.
func (m *Metrics) Discarded(key string) {
	if m == nil {
		return
	}
	m.CacheDiscardedTotal.WithLabelValues(key).Inc()
}

// Invalidated records a fresh->stale transition.
func (m *Metrics) Invalidated(key string) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.WithLabelValues(key).Inc()
}

// Mutation records a finished mutation.
func (m *Metrics) Mutation(kind, state string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(kind, state).Inc()
}

// Lookup records a lookup lifecycle event.
func (m *Metrics) Lookup(outcome string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
}

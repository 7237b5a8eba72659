// Package metrics exposes Prometheus collectors for the ledger engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup outcomes.
const (
	OutcomeFresh   = "fresh"
	OutcomeStale   = "stale"
	OutcomeExpired = "expired"
	OutcomeMiss    = "miss"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	CacheInvalidations prometheus.Counter
	FetchDuration      *prometheus.HistogramVec
	BackgroundFailures prometheus.Counter
	SettlementChanges  *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to keep instances independent.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripledger",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Group state lookups by freshness outcome.",
		}, []string{"outcome"}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripledger",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache entries invalidated by mutations or peer events.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripledger",
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of persistence fetches behind the cache.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		BackgroundFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripledger",
			Subsystem: "cache",
			Name:      "background_refresh_failures_total",
			Help:      "Stale-triggered refreshes that failed.",
		}),
		SettlementChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripledger",
			Name:      "settlement_transitions_total",
			Help:      "Settlement lifecycle transitions by resulting status.",
		}, []string{"status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripledger",
			Name:      "events_published_total",
			Help:      "Group change events published, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.CacheLookups,
		m.CacheInvalidations,
		m.FetchDuration,
		m.BackgroundFailures,
		m.SettlementChanges,
		m.EventsPublished,
	)
	return m
}

// Lookup records a cache lookup outcome.
func (m *Metrics) Lookup(outcome string) {
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// Fetched records one persistence fetch.
func (m *Metrics) Fetched(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Invalidated records one cache invalidation.
func (m *Metrics) Invalidated() {
	m.CacheInvalidations.Inc()
}

// BackgroundFailed records a failed stale-triggered refresh.
func (m *Metrics) BackgroundFailed() {
	m.BackgroundFailures.Inc()
}

// SettlementTransition records a settlement reaching status.
func (m *Metrics) SettlementTransition(status string) {
	m.SettlementChanges.WithLabelValues(status).Inc()
}

// Published records an event publish attempt.
func (m *Metrics) Published(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}

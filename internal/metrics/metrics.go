// Package metrics records run statistics on a private Prometheus registry.
// A batch run has no scrape endpoint, so the registry is written once as a
// node_exporter textfile at the end of the run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventscout"

// Query outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// Enrichment failure kinds.
const (
	KindDescription = "description"
	KindKeywords    = "keywords"
)

// Metrics holds the run's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry       *prometheus.Registry
	queries        *prometheus.CounterVec
	enrichFailures *prometheus.CounterVec
	fetched        prometheus.Counter
	duplicates     prometheus.Counter
	exported       prometheus.Counter
	queryDuration  prometheus.Histogram
	lastRun        prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Queries processed, by outcome.",
	}, []string{"outcome"})
	m.enrichFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_failures_total",
		Help:      "Enrichment steps that fell back to a placeholder, by kind.",
	}, []string{"kind"})
	m.fetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_fetched_total",
		Help:      "Raw records returned by sources.",
	})
	m.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_dropped_total",
		Help:      "Events dropped as duplicates.",
	})
	m.exported = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_exported_total",
		Help:      "Rows written to the workbook.",
	})
	m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Wall time per query including enrichment.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_completed_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})

	m.registry.MustRegister(
		m.queries,
		m.enrichFailures,
		m.fetched,
		m.duplicates,
		m.exported,
		m.queryDuration,
		m.lastRun,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// ObserveQuery counts a finished query and its duration.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// AddFetched counts raw records.
func (m *Metrics) AddFetched(n int) {
	if m == nil {
		return
	}

	m.fetched.Add(float64(n))
}

// AddDuplicates counts dropped duplicates.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}

	m.duplicates.Add(float64(n))
}

// EnrichmentFailed counts one fallback of the given kind.
func (m *Metrics) EnrichmentFailed(kind string) {
	if m == nil {
		return
	}

	m.enrichFailures.WithLabelValues(kind).Inc()
}

// AddExported counts rows written.
func (m *Metrics) AddExported(n int) {
	if m == nil {
		return
	}

	m.exported.Add(float64(n))
}

// MarkRunCompleted records the run end time.
func (m *Metrics) MarkRunCompleted(t time.Time) {
	if m == nil {
		return
	}

	m.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	return prometheus.WriteToTextfile(path, m.registry)
}

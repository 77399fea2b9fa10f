// Package metrics exposes Prometheus collectors for ingestion runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reviews"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	RunExecuting       prometheus.Gauge
	CandidatesFound    *prometheus.CounterVec
	CandidatesRejected *prometheus.CounterVec
	ReviewsAdded       prometheus.Counter
	PersistFailures    prometheus.Counter
	SourceErrors       *prometheus.CounterVec
	FallbackActivated  prometheus.Counter
	ClassifiedGenres   *prometheus.CounterVec
}

// New creates collectors on a private registry, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer creates collectors on the given registerer; gatherer backs Handler.
func NewWithRegisterer(reg prometheus.Registerer, gatherer *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: gatherer,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by trigger and final status",
		}, []string{"trigger", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"trigger"}),
		RunExecuting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_executing",
			Help:      "1 while a pipeline run is executing",
		}),
		CandidatesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_found_total",
			Help:      "Candidates returned by the source, per query",
		}, []string{"query"}),
		CandidatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_rejected_total",
			Help:      "Candidates rejected, by stage and rule",
		}, []string{"stage", "rule"}),
		ReviewsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reviews_added_total",
			Help:      "Reviews persisted by the pipeline",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "persist_failures_total",
			Help:      "Inserts that failed and were skipped",
		}),
		SourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Remote search failures by kind",
		}, []string{"kind"}),
		FallbackActivated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fallback_activations_total",
			Help:      "Runs that switched to the synthetic generator",
		}),
		ClassifiedGenres: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "genres_total",
			Help:      "Assigned genres",
		}, []string{"genre"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(trigger, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(trigger, status).Inc()
	m.RunDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// SetExecuting flips the executing gauge.
func (m *Metrics) SetExecuting(executing bool) {
	if m == nil {
		return
	}
	if executing {
		m.RunExecuting.Set(1)
	} else {
		m.RunExecuting.Set(0)
	}
}

func (m *Metrics) Found(query string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CandidatesFound.WithLabelValues(query).Add(float64(n))
}

func (m *Metrics) Rejected(stage, rule string) {
	if m == nil {
		return
	}
	m.CandidatesRejected.WithLabelValues(stage, rule).Inc()
}

func (m *Metrics) Added() {
	if m == nil {
		return
	}
	m.ReviewsAdded.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) SourceError(kind string) {
	if m == nil {
		return
	}
	m.SourceErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.FallbackActivated.Inc()
}

func (m *Metrics) Genre(genre string) {
	if m == nil {
		return
	}
	m.ClassifiedGenres.WithLabelValues(genre).Inc()
}

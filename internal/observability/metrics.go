package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// speed limit service.
type Metrics struct {
	PollCycles        prometheus.Counter
	PollCycleDuration prometheus.Histogram
	PollerRunning     prometheus.Gauge
	ExtractionErrors  prometheus.Counter

	// Resolution metrics.
	Resolutions    *prometheus.CounterVec // labels: provider, outcome={success,no_data,degraded}
	FallbackActive prometheus.Gauge

	// Provider client metrics.
	ProviderRequestDuration *prometheus.HistogramVec // label: provider
	ProviderFailures        *prometheus.CounterVec   // labels: provider, kind

	CacheLookups      *prometheus.CounterVec // label: result={hit,miss}
	OutcomesPublished prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "poll_cycles_total",
			Help:      "Total completed poll cycles.",
		}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speedlimit",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of a complete extract-resolve-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speedlimit",
			Name:      "poller_running",
			Help:      "1 when the polling loop is active, 0 when shut down.",
		}),
		ExtractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "extraction_errors_total",
			Help:      "Poll cycles aborted by coordinate extraction failures.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "resolutions_total",
			Help:      "Resolutions by active provider and outcome.",
		}, []string{"provider", "outcome"}),
		FallbackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speedlimit",
			Name:      "fallback_active",
			Help:      "1 when the last cycle was served by the OpenStreetMap fallback.",
		}),
		ProviderRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "speedlimit",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "provider_failures_total",
			Help:      "Provider query failures by provider and failure kind.",
		}, []string{"provider", "kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "cache_lookups_total",
			Help:      "Provider cache lookups by result.",
		}, []string{"result"}),
		OutcomesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speedlimit",
			Name:      "outcomes_published_total",
			Help:      "Resolution outcomes published to the Kafka topic.",
		}),
	}

	prometheus.MustRegister(
		m.PollCycles,
		m.PollCycleDuration,
		m.PollerRunning,
		m.ExtractionErrors,
		m.Resolutions,
		m.FallbackActive,
		m.ProviderRequestDuration,
		m.ProviderFailures,
		m.CacheLookups,
		m.OutcomesPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PollCycles:              prometheus.NewCounter(prometheus.CounterOpts{Namespace: "speedlimit", Name: "poll_cycles_total"}),
		PollCycleDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "speedlimit", Name: "poll_cycle_duration_seconds"}),
		PollerRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "speedlimit", Name: "poller_running"}),
		ExtractionErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "speedlimit", Name: "extraction_errors_total"}),
		Resolutions:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "speedlimit", Name: "resolutions_total"}, []string{"provider", "outcome"}),
		FallbackActive:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "speedlimit", Name: "fallback_active"}),
		ProviderRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "speedlimit", Name: "provider_request_duration_seconds"}, []string{"provider"}),
		ProviderFailures:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "speedlimit", Name: "provider_failures_total"}, []string{"provider", "kind"}),
		CacheLookups:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "speedlimit", Name: "cache_lookups_total"}, []string{"result"}),
		OutcomesPublished:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "speedlimit", Name: "outcomes_published_total"}),
	}
}

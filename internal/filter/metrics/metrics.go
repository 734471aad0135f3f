// Package metrics collects run metrics on a private Prometheus registry and
// exports them for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/gateways/fetch"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

const namespace = "rr_filter"

// Metrics holds the collectors for one run.
type Metrics struct {
	registry *prometheus.Registry

	LinesTotal      *prometheus.CounterVec
	DemotedTotal    prometheus.Counter
	DeletionsTotal  *prometheus.CounterVec
	LookupsTotal    *prometheus.CounterVec
	FetchLinesTotal *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	RulesKept       prometheus.Gauge
	RunDuration     prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	reg := promauto.With(registry)

	return &Metrics{
		registry: registry,
		LinesTotal: reg.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_total",
				Help:      "Input lines by category",
			},
			[]string{"category"},
		),
		DemotedTotal: reg.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "demoted_total",
			Help:      "Domain-rules kept verbatim because their domain was malformed",
		}),
		DeletionsTotal: reg.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletions_total",
				Help:      "Dropped rules by reason",
			},
			[]string{"reason"},
		),
		LookupsTotal: reg.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Domain validations by outcome and cache use",
			},
			[]string{"result", "cache"},
		),
		FetchLinesTotal: reg.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_lines_total",
				Help:      "Lines read per source",
			},
			[]string{"source"},
		),
		FetchFailures: reg.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Sources that could not be retrieved",
			},
			[]string{"source"},
		),
		RulesKept: reg.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_kept",
			Help:      "Rules written by the last run",
		}),
		RunDuration: reg.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastSuccess: reg.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last run completed",
		}),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveLine(c domain.Category) {
	m.LinesTotal.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) ObserveDemotion() {
	m.DemotedTotal.Inc()
}

func (m *Metrics) ObserveDeletion(r domain.DropReason) {
	m.DeletionsTotal.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) ObserveLookup(resolvable, cached bool) {
	result, cache := "unresolvable", "miss"
	if resolvable {
		result = "resolvable"
	}
	if cached {
		cache = "hit"
	}
	m.LookupsTotal.WithLabelValues(result, cache).Inc()
}

func (m *Metrics) ObserveFetch(source string, lines int, err error) {
	if err != nil {
		m.FetchFailures.WithLabelValues(source).Inc()
		return
	}
	m.FetchLinesTotal.WithLabelValues(source).Add(float64(lines))
}

// ObserveRun records the outcome of a completed run.
func (m *Metrics) ObserveRun(kept int, elapsed time.Duration, finished time.Time) {
	m.RulesKept.Set(float64(kept))
	m.RunDuration.Set(elapsed.Seconds())
	m.LastSuccess.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

var (
	_ cleaner.Recorder = (*Metrics)(nil)
	_ fetch.Observer   = (*Metrics)(nil)
)

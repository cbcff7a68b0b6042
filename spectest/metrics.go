package spectest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/specmerge/errors"
)

// Metrics collects batch counters on a private registry
type Metrics struct {
	registry *prometheus.Registry
	cases    *prometheus.CounterVec
	stages   *prometheus.HistogramVec
}

// NewMetrics creates the batch metrics. cacheHits, when not nil, is
// exported as specmerge_cache_hits_total.
func NewMetrics(cacheHits func() uint64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmerge_cases_total",
				Help: "Spec test cases processed, by result",
			},
			[]string{"result"},
		),
		stages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specmerge_stage_duration_seconds",
				Help:    "Time spent per case in each pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
	m.registry.MustRegister(m.cases, m.stages)

	if cacheHits != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "specmerge_cache_hits_total",
				Help: "Disassembly requests served from cache",
			},
			func() float64 { return float64(cacheHits()) },
		))
	}
	return m
}

// Registry exposes the registry, e.g. for an HTTP handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStage(stage Stage, d time.Duration) {
	m.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) countCase(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.cases.WithLabelValues(result).Inc()
}

// WriteFile writes the metrics in text exposition format
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "write metrics "+path)
	}
	return nil
}

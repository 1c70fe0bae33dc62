package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"microbench/internal/benchmark"
	"microbench/internal/report"
)

// Metrics represents the collection of benchmark Prometheus metrics.
type Metrics struct {
	Registry *prometheus.Registry

	CellsTotal      *prometheus.CounterVec
	UnstableTotal   *prometheus.CounterVec
	CellNsPerOp     *prometheus.GaugeVec
	CellCV          *prometheus.GaugeVec
	CellIterations  *prometheus.GaugeVec
	CellWallSeconds *prometheus.HistogramVec
	CellsInProgress prometheus.Gauge
}

// NewMetrics creates the benchmark metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.CellsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microbench_cells_total",
			Help: "Cells executed, by outcome",
		},
		[]string{"suite", "status"},
	)

	m.UnstableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microbench_cells_unstable_total",
			Help: "Cells whose measurement was flagged unstable",
		},
		[]string{"suite", "reason"},
	)

	m.CellNsPerOp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "microbench_cell_ns_per_op",
			Help: "Outlier-rejected mean nanoseconds per call",
		},
		[]string{"suite", "cell"},
	)

	m.CellCV = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "microbench_cell_cv",
			Help: "Coefficient of variation of the kept samples",
		},
		[]string{"suite", "cell"},
	)

	m.CellIterations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "microbench_cell_iterations",
			Help: "Calibrated calls per timed batch",
		},
		[]string{"suite", "cell"},
	)

	m.CellWallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "microbench_cell_wall_seconds",
			Help:    "Wall-clock time spent on one cell including calibration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"suite"},
	)

	m.CellsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "microbench_cells_in_progress",
			Help: "Cells currently running",
		},
	)

	m.Registry.MustRegister(
		m.CellsTotal,
		m.UnstableTotal,
		m.CellNsPerOp,
		m.CellCV,
		m.CellIterations,
		m.CellWallSeconds,
		m.CellsInProgress,
	)
	return m
}

// Record stores one result.
func (m *Metrics) Record(suite string, r benchmark.Result) {
	m.CellsTotal.WithLabelValues(suite, report.StatusLabel(r)).Inc()
	m.CellWallSeconds.WithLabelValues(suite).Observe(r.Wall.Seconds())
	if r.Warning != nil {
		m.UnstableTotal.WithLabelValues(suite, string(r.Warning.Reason)).Inc()
	}
	if r.Stats != nil {
		m.CellNsPerOp.WithLabelValues(suite, r.Name).Set(r.NsPerOp())
		m.CellCV.WithLabelValues(suite, r.Name).Set(r.Stats.CV)
	}
	if r.Calibration != nil {
		m.CellIterations.WithLabelValues(suite, r.Name).Set(float64(r.Calibration.Iterations))
	}
}

// Observer returns an engine observer that records every finished cell
// of suite.
func (m *Metrics) Observer(suite string) benchmark.Observer {
	return &observer{m: m, suite: suite}
}

type observer struct {
	m     *Metrics
	suite string
}

func (o *observer) CellStarted(string, int, int) { o.m.CellsInProgress.Inc() }

func (o *observer) CellFinished(r benchmark.Result, _, _ int) {
	o.m.CellsInProgress.Dec()
	o.m.Record(o.suite, r)
}

// Push sends the registry to a Prometheus Pushgateway under job, grouped
// by run id.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.Registry).
		Grouping("run", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

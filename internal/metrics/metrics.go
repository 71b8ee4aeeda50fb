// Package metrics exposes pipeline counters on a private Prometheus
// registry that can be exported to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fip"

// Fix results.
const (
	FixApplied = "applied"
	FixRefused = "refused"
	FixFailed  = "failed"
)

// Run statuses.
const (
	RunSuccess = "success"
	RunFailed  = "failed"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	findingsTotal  *prometheus.CounterVec
	producerErrors *prometheus.CounterVec
	fixesTotal     *prometheus.CounterVec
	healthScore    prometheus.Gauge
	filesAnalyzed  *prometheus.GaugeVec
	insights       prometheus.Gauge
	lastRun        prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by status",
			},
			[]string{"status"},
		),

		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),

		findingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Total number of findings by producer and severity",
			},
			[]string{"producer", "severity"},
		),

		producerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "producer_errors_total",
				Help:      "Total number of producer failures",
			},
			[]string{"producer"},
		),

		fixesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fixes_total",
				Help:      "Total number of fix applications by result",
			},
			[]string{"result"},
		),

		healthScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_score",
				Help:      "Health score of the last run (0-100)",
			},
		),

		filesAnalyzed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "files_analyzed",
				Help:      "Files analysed by the last run, by strategy",
			},
			[]string{"strategy"},
		),

		insights: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "insights",
				Help:      "Compound insights held by the correlation hub",
			},
		),

		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunSummary is what one pipeline run reports.
type RunSummary struct {
	Status        string
	Duration      time.Duration
	FinishedAt    time.Time
	Strategy      string
	FilesAnalyzed int
	HealthScore   int
	Insights      int
}

// RecordRun records the outcome of a run.
func (m *Metrics) RecordRun(s RunSummary) {
	m.runsTotal.WithLabelValues(s.Status).Inc()
	m.runDuration.Observe(s.Duration.Seconds())
	m.healthScore.Set(float64(s.HealthScore))
	m.filesAnalyzed.Reset()
	m.filesAnalyzed.WithLabelValues(s.Strategy).Set(float64(s.FilesAnalyzed))
	m.insights.Set(float64(s.Insights))
	m.lastRun.Set(float64(s.FinishedAt.Unix()))
}

// RecordFinding counts one finding.
func (m *Metrics) RecordFinding(producer, severity string) {
	m.findingsTotal.WithLabelValues(producer, severity).Inc()
}

// RecordProducerError counts one producer failure.
func (m *Metrics) RecordProducerError(producer string) {
	m.producerErrors.WithLabelValues(producer).Inc()
}

// RecordFix counts one fix application with result FixApplied, FixRefused
// or FixFailed.
func (m *Metrics) RecordFix(result string) {
	m.fixesTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path,
// replacing it atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

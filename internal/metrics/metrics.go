// Package metrics exposes Prometheus collectors for imports and the
// backend calls they make.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rowsProcessed counts rows by entity and outcome (success, rejected, failed).
	rowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Total number of imported rows by entity and outcome",
	}, []string{"entity", "outcome"})

	// conflictRetries counts field-drop retries by entity, field and result.
	conflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_conflict_retries_total",
		Help: "Total number of conflict retries by entity, dropped field and result",
	}, []string{"entity", "field", "result"})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_total",
		Help: "Total number of finished import runs by entity and status",
	}, []string{"entity", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_run_duration_seconds",
		Help:    "Time taken by an import run by entity",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"entity"})

	// fileRows tracks the size of uploaded files.
	fileRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_file_rows_count",
		Help:    "Number of data rows in uploaded files",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
	})

	refreshFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_refresh_failures_total",
		Help: "Total number of post-upload list refreshes that gave up",
	}, []string{"entity"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "import_active_runs",
		Help: "Number of import runs in progress",
	})
)

// Recorder provides methods to record import metrics
type Recorder struct{}

// NewRecorder creates a new metrics recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordRow records the outcome of one row
func (m *Recorder) RecordRow(entity, outcome string) {
	rowsProcessed.WithLabelValues(entity, outcome).Inc()
}

// RecordConflictRetry records a retry without a conflicting field
func (m *Recorder) RecordConflictRetry(entity, field string, success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	conflictRetries.WithLabelValues(entity, field, result).Inc()
}

// RecordRun records a finished run
func (m *Recorder) RecordRun(entity, status string, duration time.Duration) {
	runsFinished.WithLabelValues(entity, status).Inc()
	runDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordFileRows records the number of data rows of an upload
func (m *Recorder) RecordFileRows(n int) {
	fileRows.Observe(float64(n))
}

// RecordRefreshFailure records a refresh that exhausted its attempts
func (m *Recorder) RecordRefreshFailure(entity string) {
	refreshFailures.WithLabelValues(entity).Inc()
}

// IncrementActiveRuns increments the in-progress gauge
func (m *Recorder) IncrementActiveRuns() {
	activeRuns.Inc()
}

// DecrementActiveRuns decrements the in-progress gauge
func (m *Recorder) DecrementActiveRuns() {
	activeRuns.Dec()
}

package script

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metric collectors for script loading and execution
type Metrics struct {
	executionDuration *prometheus.HistogramVec
	executionTotal    *prometheus.CounterVec
	recoveries        *prometheus.CounterVec
	loads             *prometheus.CounterVec
	bulkLoadFailures  prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheSize         prometheus.Gauge
	cacheInvalidated  prometheus.Counter
	scriptsRegistered prometheus.Gauge
}

// NewMetrics creates script metrics registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates script metrics with a custom Prometheus registry (for testing)
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "script_execution_duration_seconds",
				Help:    "Histogram of script execution durations including load and recovery round trips",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"script_name"},
		),
		executionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_executions_total",
				Help: "Total number of script executions",
			},
			[]string{"script_name", "result"},
		),
		recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_recoveries_total",
				Help: "Total number of scripts reloaded after the store reported NOSCRIPT",
			},
			[]string{"script_name"},
		),
		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_loads_total",
				Help: "Total number of ensure-loaded checks by outcome (exists, upload)",
			},
			[]string{"mode"},
		),
		bulkLoadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_bulk_load_failures_total",
				Help: "Total number of background bulk load passes that stopped on an error",
			},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_digest_cache_hits_total",
				Help: "Total number of executions that found a cached digest",
			},
		),
		cacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_digest_cache_misses_total",
				Help: "Total number of executions that had to load the script first",
			},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "script_digest_cache_size",
				Help: "Current number of cached script digests",
			},
		),
		cacheInvalidated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_digest_cache_invalidations_total",
				Help: "Total number of wholesale digest cache invalidations",
			},
		),
		scriptsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scripts_registered",
				Help: "Number of registered scripts",
			},
		),
	}
}

// RecordExecution records a script execution with duration and result
func (m *Metrics) RecordExecution(scriptName string, durationSeconds float64, success bool) {
	m.executionDuration.WithLabelValues(scriptName).Observe(durationSeconds)

	result := "success"
	if !success {
		result = "failure"
	}
	m.executionTotal.WithLabelValues(scriptName, result).Inc()
}

// RecordRecovery records a NOSCRIPT reload
func (m *Metrics) RecordRecovery(scriptName string) {
	m.recoveries.WithLabelValues(scriptName).Inc()
}

// RecordLoad records an ensure-loaded outcome
func (m *Metrics) RecordLoad(uploaded bool) {
	mode := "exists"
	if uploaded {
		mode = "upload"
	}
	m.loads.WithLabelValues(mode).Inc()
}

// RecordBulkLoadFailure records a failed bulk load pass
func (m *Metrics) RecordBulkLoadFailure() {
	m.bulkLoadFailures.Inc()
}

// SetRegisteredScripts sets the number of registered scripts
func (m *Metrics) SetRegisteredScripts(count int) {
	m.scriptsRegistered.Set(float64(count))
}

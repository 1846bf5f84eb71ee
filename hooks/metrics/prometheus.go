package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds Prometheus metric collectors for the store connection
type PrometheusMetrics struct {
	connects         prometheus.Counter
	connectionErrors prometheus.Counter
	connected        prometheus.Gauge
	lastConnect      prometheus.Gauge
}

// NewPrometheusMetrics creates connection metrics registered with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		connects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "store_connects_total",
				Help: "Total number of established store connections",
			},
		),
		connectionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "store_connection_errors_total",
				Help: "Total number of store connection failures",
			},
		),
		connected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_connected",
				Help: "1 while the store connection is healthy, 0 otherwise",
			},
		),
		lastConnect: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_last_connect_timestamp_seconds",
				Help: "Unix timestamp of the last established store connection",
			},
		),
	}
}

// RecordConnect marks the store as connected
func (pm *PrometheusMetrics) RecordConnect(at time.Time) {
	pm.connects.Inc()
	pm.connected.Set(1)
	pm.lastConnect.Set(float64(at.Unix()))
}

// RecordConnectionError marks the store as disconnected
func (pm *PrometheusMetrics) RecordConnectionError(err error) {
	pm.connectionErrors.Inc()
	pm.connected.Set(0)
}

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/citytwin/metric"
)

// Metrics holds Prometheus metrics for the telemetry consumer
type Metrics struct {
	recordsConsumed  *prometheus.CounterVec
	recordsDropped   *prometheus.CounterVec
	subscribeRetries *prometheus.CounterVec
	streamsActive    prometheus.Gauge
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers consumer metrics. A nil registry disables
// them entirely.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		recordsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "telemetry",
			Name:      "records_consumed_total",
			Help:      "Telemetry records successfully applied to state",
		}, []string{"stream"}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "telemetry",
			Name:      "records_dropped_total",
			Help:      "Telemetry records dropped as malformed or unidentifiable",
		}, []string{"stream", "reason"}),
		subscribeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "telemetry",
			Name:      "subscribe_retries_total",
			Help:      "Subscription attempts that failed and were retried",
		}, []string{"stream"}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "telemetry",
			Name:      "streams_active",
			Help:      "Input streams with a live subscription",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "telemetry",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last consumed record",
		}),
	}

	_ = registry.RegisterCounterVec("telemetry", "records_consumed", m.recordsConsumed)
	_ = registry.RegisterCounterVec("telemetry", "records_dropped", m.recordsDropped)
	_ = registry.RegisterCounterVec("telemetry", "subscribe_retries", m.subscribeRetries)
	_ = registry.RegisterGauge("telemetry", "streams_active", m.streamsActive)
	_ = registry.RegisterGauge("telemetry", "last_activity", m.lastActivity)

	return m
}

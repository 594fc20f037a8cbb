package twin

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/citytwin/metric"
)

// Metrics holds Prometheus metrics for the snapshot publisher
type Metrics struct {
	snapshotsPublished prometheus.Counter
	cyclesSkipped      prometheus.Counter
	publishFailures    prometheus.Counter
	buildDuration      prometheus.Histogram
	publishDuration    prometheus.Histogram
	snapshotEntities   prometheus.Gauge
	snapshotBytes      prometheus.Histogram
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		snapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "snapshots_published_total",
			Help:      "Snapshot documents acknowledged by JetStream",
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "cycles_skipped_total",
			Help:      "Publish ticks skipped because the previous cycle was still running",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "publish_failures_total",
			Help:      "Publish cycles abandoned after a failed or unacknowledged publish",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "build_duration_seconds",
			Help:      "Time to snapshot state and build the document",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "publish_duration_seconds",
			Help:      "Time to publish the document and receive the JetStream ack",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		snapshotEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "snapshot_entities",
			Help:      "Entities in the most recently built snapshot",
		}),
		snapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "twin",
			Name:      "snapshot_bytes",
			Help:      "Encoded snapshot document size",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}

	_ = registry.RegisterCounter("twin", "snapshots_published", m.snapshotsPublished)
	_ = registry.RegisterCounter("twin", "cycles_skipped", m.cyclesSkipped)
	_ = registry.RegisterCounter("twin", "publish_failures", m.publishFailures)
	_ = registry.RegisterHistogram("twin", "build_duration", m.buildDuration)
	_ = registry.RegisterHistogram("twin", "publish_duration", m.publishDuration)
	_ = registry.RegisterGauge("twin", "snapshot_entities", m.snapshotEntities)
	_ = registry.RegisterHistogram("twin", "snapshot_bytes", m.snapshotBytes)

	return m
}

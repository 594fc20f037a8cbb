// Package metric provides Prometheus-based metrics collection and an HTTP
// server for aggregator observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, record throughput, NATS health) and
// component-specific metrics that the ingestion and publishing components
// register at initialization. An HTTP server exposes everything in Prometheus
// format.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("telemetry-input", 2)
//	core.RecordMessageReceived("telemetry-input", "speed")
//
// Components register their own collectors through the MetricsRegistrar
// interface; duplicate names within a component are rejected to surface
// wiring mistakes early.
package metric

// Package component defines the contracts that aggregator components satisfy:
// discoverability (metadata, ports, config schema, health, flow metrics),
// lifecycle management (Initialize, Start, Stop), and dependency injection.
//
// The service layer treats every input and output component uniformly through
// LifecycleComponent: Initialize runs synchronous setup with no context,
// Start receives the service context and spawns the component's goroutines,
// and Stop drains them within the given timeout.
//
// Dependencies carries the shared NATS client, metrics registry, and logger
// so components never construct platform infrastructure themselves.
package component

// Package service assembles the aggregator from its parts.
//
// New builds the full pipeline from validated configuration: the NATS
// client, the state store, the telemetry consumer, the snapshot publisher,
// and the optional metrics and websocket surfaces. Run owns the lifecycle:
// connect with a bounded retry budget (exhaustion is fatal), start outputs
// before inputs, block on the context, then stop everything in reverse
// order with a per-component timeout.
package service

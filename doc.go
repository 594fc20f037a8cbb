// Package citytwin implements a snapshot aggregator for a city digital twin.
//
// The service consumes independent telemetry streams over NATS (road-edge
// speed, weather and camera sensors, vehicle telemetry, building monitoring),
// merges them into a thread-safe in-memory state store, and publishes a
// fully-derived city snapshot document on a fixed interval.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│        Telemetry Consumers           │  one queue-group consumer
//	│  (speed, weather, camera,            │  per input stream
//	│   vehicle, building)                 │
//	└──────────────────────────────────────┘
//	            ↓ typed upserts
//	┌──────────────────────────────────────┐
//	│           State Store                │  coarse-locked entity state
//	│  (districts, edges, vehicles,        │  + per-facet freshness index
//	│   buildings, freshness index)        │
//	└──────────────────────────────────────┘
//	            ↓ reap + deep copy
//	┌──────────────────────────────────────┐
//	│         Snapshot Builder             │  pure projection into the
//	│  (districts, publicTransport,        │  published document schema
//	│   emergencyServices)                 │
//	└──────────────────────────────────────┘
//	            ↓ interval tick, single-flight
//	┌──────────────────────────────────────┐
//	│       Snapshot Publisher             │  JetStream publish with
//	│  (Idle → Building → Publishing)      │  bounded ack wait
//	└──────────────────────────────────────┘
//
// Packages:
//
//   - state: entity state store, freshness index, staleness reaper
//   - snapshot: pure state-to-document transformation
//   - input/telemetry: stream consumers feeding the store
//   - output/twin: interval scheduler and snapshot publisher
//   - output/websocket: live snapshot feed for dashboards
//   - service: wiring and lifecycle orchestration
//   - natsclient, component, config, errors, metric: shared infrastructure
package citytwin

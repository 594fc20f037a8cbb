// Package state implements the aggregator's in-memory state store and its
// staleness reaper.
//
// The store is the single shared mutable resource in the process: every
// ingestion goroutine mutates it through typed upserts and the scheduler
// reads it through Snapshot. One coarse mutex serializes all operations,
// which keeps the contract simple: a reader always sees fully-applied
// records, and writers to disjoint entities never lose updates.
//
// Three entity classes live here. Edges merge per facet (speed, weather,
// camera each overwrite only themselves), vehicles are full-replace records,
// and buildings merge sensor readings by type under metadata fixed at first
// sighting. A separate freshness index tracks the last update time of every
// (kind, id, facet) triple.
//
// Reap ages the freshness index: entries older than the TTL are dropped.
// By default the underlying data stays (staleness is suppressed in the
// index, not enforced as deletion) and WithStaleDataEviction switches the
// store to delete the data as well. Snapshot always reaps first, then
// returns a deep copy that shares no memory with the store.
package state

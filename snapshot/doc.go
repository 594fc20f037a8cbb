// Package snapshot builds the city digital-twin document from a state
// snapshot.
//
// The builder is a pure transformation: it reads a deep-copied
// state.StateSnapshot, a clock value and run stats, and emits a Document in
// the downstream consumer's JSON schema. All map iteration happens over
// sorted keys, so two builds of the same inputs produce byte-identical
// output. Mapping tables (road condition to congestion level, district
// display names, building category assignment, emergency unit types) live in
// mapping.go.
package snapshot

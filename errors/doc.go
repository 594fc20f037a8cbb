// Package errors provides standardized error handling for CityTwin components.
//
// # Overview
//
// The package implements a three-class error classification system matching
// how the aggregator reacts to failures: Transient (temporary, retryable),
// Invalid (bad input, dropped and never retried), and Fatal (unrecoverable,
// stop the process).
//
// The aggregator's failure taxonomy maps onto these classes:
//
//   - validation failures (record missing a required identity field) are
//     Invalid: the record is dropped and logged, processing continues
//   - transport setup failures are Transient: connection attempts are retried
//     with a bounded fixed delay
//   - publish failures (acknowledgment timeout) are Transient but the cycle
//     owning them is abandoned rather than retried; the next tick produces an
//     independent snapshot
//   - outbound connection failure after retries is Fatal and terminates startup
//
// # Error Wrapping Pattern
//
// All wrapping follows the format "component.method: action failed: %w":
//
//	return errors.WrapInvalid(errors.ErrMissingIdentity,
//	    "state.Store", "UpsertVehicle", "identity validation")
//
// Classification survives wrapping chains and works with errors.Is/As.
package errors

// Package retry provides bounded retry with fixed or exponential delay.
//
// The aggregator uses two shapes of retry budget:
//
//   - retry.Fixed(n, d): transport setup (consumer subscriptions, producer
//     connection) retries exactly n times with a constant delay d; when the
//     budget is exhausted the caller decides whether that is fatal (producer)
//     or stream-local (consumer).
//   - retry.DefaultConfig(): exponential backoff with jitter for operations
//     where convergence matters more than a hard bound.
//
// Publish cycles never retry: a failed cycle is abandoned and the next tick
// produces an independent snapshot, so Do is not used on that path.
//
// Errors wrapped with NonRetryable short-circuit the budget.
package retry

// Package natsclient wraps the NATS Go client with connection lifecycle
// management, JetStream helpers, and bounded-acknowledgement publishing for
// the aggregator's transport layer.
//
// # Connection Lifecycle
//
// Connect performs a single connection attempt; retry policy belongs to the
// caller so that consumers and the producer can apply their own budgets.
// The client tracks state through Disconnected, Connecting, Connected, and
// Reconnecting, with callbacks available for each transition. Close drains
// in-flight messages before tearing the connection down, bounded by the
// caller's context deadline.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("citytwin-aggregator"),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// # JetStream Publishing
//
// PublishToStream and PublishMsgToStream wait for the JetStream server
// acknowledgement, bounded by the passed context. Callers that cannot wait
// indefinitely pass a context with a deadline; an expired deadline means the
// publish failed and the caller decides what to do with the payload.
//
//	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := client.PublishToStream(pubCtx, "city.twin.snapshot", payload)
//
// # Queue Group Consumption
//
// ChanQueueSubscribe joins a queue group so that horizontally scaled
// aggregator instances split the ingestion traffic, each record delivered to
// exactly one member.
package natsclient

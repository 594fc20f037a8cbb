// Package websocket provides the live snapshot feed.
//
// The feed is a thin fan-out: the twin publisher hands it each successfully
// published document and it broadcasts the document to every connected
// client, wrapped in a typed envelope. Delivery is intentionally at most
// once. Each client has a small send buffer; when it is full the client
// misses that snapshot and picks up again with the next one. Snapshots are
// full-state documents, so a missed frame carries no lasting cost.
package websocket

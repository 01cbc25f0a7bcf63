// Package rtwire implements the core of a reactive real-time client:
// transport abstraction over WebSocket, SSE, and WebTransport with
// adaptive selection; a connection lifecycle engine with reconnection,
// heartbeat, and a circuit breaker; a correlated RPC layer with
// subscriptions; and a reactive context that exposes connection state,
// messages, and presence as observable signals for a UI layer.
//
// The package does not implement a server, does not guarantee
// exactly-once delivery, and relies entirely on the underlying transport
// (TLS/QUIC) for encryption.
package rtwire

// Package transport manages observer WebSocket connections: it
// authenticates them through an external token-verification capability,
// accepts subscribe/unsubscribe control messages, pushes matching events
// as they are published, and runs a ping/pong heartbeat to detect dead
// connections.
//
// A connection that fails authentication is rejected before any
// subscription state exists. On heartbeat timeout or disconnect, every
// subscription owned by the connection is removed immediately.
package transport

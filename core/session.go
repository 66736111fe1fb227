package core

import "time"

// Sink is the outbound half of a client connection. The registry holds a
// non-owning reference; the transport owns the underlying socket.
type Sink interface {
	Send(frame []byte) error
	Close(code int, reason string) error
}

// Session represents an authenticated connection
type Session struct {
	Identity      string    // Per-connection token, primary key of the registry
	Address       string    // Verified account address, rotates on re-authentication
	LastNonce     string    // Challenge consumed by the last successful sign-in
	Active        bool      // Cleared by the liveness sweep, set by inbound traffic
	Recipient     bool      // Whether this session opted in to receive broadcasts
	LastBroadcast time.Time // Zero value means never
	Conn          Sink
}

// Package transport isolates the core coordination engine from any
// particular wire transport. Human sessions talk to a Channel; bots never
// use one. Only this package knows about WebSockets.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Recv/Send once the channel has been closed,
// locally or by the peer.
var ErrClosed = errors.New("transport: channel closed")

// Channel is a full-duplex, message-oriented connection to one client. A
// session owns exactly one Channel for its lifetime.
type Channel interface {
	// Recv blocks for the next text frame, or returns an error if ctx is
	// done, the peer disconnects, or the channel is closed.
	Recv(ctx context.Context) ([]byte, error)

	// Send writes one text frame, or returns an error if the channel is
	// closed or the write deadline elapses.
	Send(ctx context.Context, data []byte) error

	// Ping round-trips a liveness probe, returning an error if the peer
	// doesn't answer before ctx is done.
	Ping(ctx context.Context) error

	// Close tears down the underlying connection. Safe to call more than
	// once.
	Close() error
}

// Factory accepts a new Channel and spawns the human session that owns its
// lifetime. It is the
// external collaborator the coordination engine is built against; transport
// plumbing (listeners, TLS, upgrade handshakes) lives above this seam.
type Factory func(ch Channel)

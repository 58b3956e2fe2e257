package transporter

import (
	"context"
)

// Endpoint is a dial target: one address plus the transport mode used to
// reach it.
type Endpoint struct {
	// Addr is host:port
	Addr string

	// ServerName is the TLS SNI host; ignored on plain transport
	ServerName string

	// Secure wraps the socket in TLS
	Secure bool
}

// Transporter is the lowest layer of the connection stack: one raw socket
// carrying request bytes out and response bytes back. Reads and writes are
// blocking; Abort must be safe to call from any goroutine at any time,
// including while another goroutine sits inside a blocked Read. That is the
// whole interruption protocol.
type Transporter interface {
	Dial(ctx context.Context, endpoint Endpoint) error
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Abort(reason error)
	Connected() bool
}

/*
Package connection sits between the subscriber and the raw socket. It owns the
connection lifecycle (dial, reuse, forced abort) and speaks the long-poll
request/response protocol, handing finished response bodies up to the caller.
*/
package connection

import (
	"context"

	"github.com/pnlite/pnlite/connection/transporter"
)

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type Connection interface {
	// EnsureConnected dials the endpoint if the connection is down and then
	// performs the request exchange. On an already-live connection it reuses
	// the socket. Returns the Content-Length of the pending response body.
	EnsureConnected(ctx context.Context, endpoint transporter.Endpoint, request []byte) (int, error)

	// SendRequest performs the request exchange on the live connection.
	// Returns the Content-Length of the pending response body.
	SendRequest(request []byte) (int, error)

	// ReadBody reads exactly n bytes of response body from the live
	// connection.
	ReadBody(n int) ([]byte, error)

	// Abort forcibly tears the socket down. Safe from any goroutine while
	// another is blocked inside SendRequest, EnsureConnected or ReadBody;
	// the blocked call returns with an error.
	Abort(reason error)

	State() State
}

package connection

import (
	"errors"
	"fmt"
)

// ErrKilled is what readers see when the client was deliberately shut down
// while they were blocked on the wire. Callers use it to tell an intentional
// stop apart from a transport failure.
var ErrKilled = errors.New("client killed")

// The TransportError wraps any socket-level failure: dial, write, read, or a
// response so broken we could not even frame it. The connection is always
// torn down before one of these is returned, so the next call starts from
// scratch.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection failed during %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// The MalformedResponseError is used when the peer spoke well-formed framing
// but the payload inside was not a subscribe envelope we recognize. The
// connection is torn down because we can no longer trust the stream position.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

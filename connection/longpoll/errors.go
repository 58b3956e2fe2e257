package longpoll

import "fmt"

// FramingError covers every way a response header block can fail to yield a
// body length: the peer closing before the terminator, or a terminator with
// no Content-Length line. The connection manager treats all of them as
// grounds for a fresh connect.
type FramingError struct {
	Reason string
}

func (f *FramingError) Error() string {
	return fmt.Sprintf("malformed response header: %s", f.Reason)
}

func (f *FramingError) Unwrap() error { return nil }

// EnvelopeError means the body framed correctly but did not decode as the
// two-element [messages, timetoken] array.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("malformed subscribe envelope: %s", e.Reason)
}

func (e *EnvelopeError) Unwrap() error { return nil }

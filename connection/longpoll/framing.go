package longpoll

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The real service sends a handful of short header lines; anything past this
// budget without a terminator is garbage, not a header.
const maxHeaderBytes = 8 * 1024

// Subscribe bodies are message batches, never bulk transfers; a declared
// length past this budget is garbage, not a body, and must never reach an
// allocation.
const maxBodyBytes = 4 * 1024 * 1024

// Header is the outcome of framing one response: the declared body length,
// plus the status line so callers can log surprises.
type Header struct {
	StatusLine    string
	ContentLength int
}

// ReadHeader consumes octets one at a time until the CRLFCRLF terminator is
// seen, then extracts the declared Content-Length. Single-byte reads keep the
// stream positioned exactly at the first body byte, which matters because one
// keep-alive socket carries many responses back to back and we must never
// read ahead into the next body.
func ReadHeader(r io.Reader) (*Header, error) {
	var hdr bytes.Buffer
	octet := make([]byte, 1)

	for {
		n, err := r.Read(octet)
		if n > 0 {
			hdr.WriteByte(octet[0])

			if bytes.HasSuffix(hdr.Bytes(), []byte(headerTerminator)) {
				break
			}

			if hdr.Len() >= maxHeaderBytes {
				return nil, &FramingError{Reason: fmt.Sprintf("no terminator within %d bytes", maxHeaderBytes)}
			}
		}

		if err != nil {
			return nil, &FramingError{Reason: fmt.Sprintf("peer closed mid-header: %s", err)}
		}
	}

	return parseHeader(hdr.String())
}

func parseHeader(raw string) (*Header, error) {
	lines := strings.Split(strings.TrimSuffix(raw, headerTerminator), crlf)

	header := &Header{StatusLine: lines[0]}

	for _, line := range lines[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}

		length, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || length < 0 {
			return nil, &FramingError{Reason: fmt.Sprintf("unparseable Content-Length %q", strings.TrimSpace(value))}
		}
		if length > maxBodyBytes {
			return nil, &FramingError{Reason: fmt.Sprintf("Content-Length %d exceeds the %d byte body budget", length, maxBodyBytes)}
		}

		header.ContentLength = length
		return header, nil
	}

	return nil, &FramingError{Reason: "no Content-Length in response header"}
}

// ReadBody reads exactly n bytes, retrying partial reads against the
// remaining count. The peer closing early is a framing failure like any
// other.
func ReadBody(r io.Reader, n int) ([]byte, error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &FramingError{Reason: fmt.Sprintf("peer closed mid-body: %s", err)}
	}
	return body, nil
}

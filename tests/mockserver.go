/*
Package tests holds a scriptable stand-in for the remote pub/sub origin. It
speaks just enough of the long-poll wire protocol to exercise a real client
over a real socket: it frames incoming subscribe requests, then answers each
one from a canned script.
*/
package tests

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Response is one scripted answer. The zero value is an instant 200 OK with
// an empty body.
type Response struct {
	// Status is the status portion of the first line, "200 OK" when empty
	Status string

	// Body is written with a matching Content-Length unless OmitLength is set
	Body string

	// Delay holds the poll open before answering, like a quiet channel does
	Delay time.Duration

	// OmitLength sends a header block with no Content-Length line
	OmitLength bool

	// CloseAfter drops the connection right after this response
	CloseAfter bool

	// Hangup drops the connection instead of answering at all
	Hangup bool
}

// Envelope renders a subscribe response body from raw JSON message payloads.
func Envelope(timetoken string, messages ...string) string {
	return fmt.Sprintf(`[[%s],"%s"]`, strings.Join(messages, ","), timetoken)
}

type MockOrigin struct {
	listener net.Listener

	Addr string

	// Requests receives each raw request block as it arrives
	Requests chan string

	scriptLock sync.Mutex
	script     []Response
	pos        int

	conns int64
}

// NewMockOrigin starts the origin on an ephemeral port with a fixed response
// script. Requests beyond the script are held open forever, which is exactly
// what a real origin does with a quiet channel.
func NewMockOrigin(script ...Response) (*MockOrigin, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to setup origin listener: %w", err)
	}

	origin := &MockOrigin{
		listener: listener,
		Addr:     listener.Addr().String(),
		Requests: make(chan string, 16),
		script:   script,
	}

	go origin.serve()

	return origin, nil
}

func (m *MockOrigin) Shutdown() {
	m.listener.Close()
}

// ConnCount is how many connections the origin has accepted so far. A client
// that reconnects shows up here as a second connection.
func (m *MockOrigin) ConnCount() int {
	return int(atomic.LoadInt64(&m.conns))
}

// Extend appends more responses to the script after startup.
func (m *MockOrigin) Extend(script ...Response) {
	m.scriptLock.Lock()
	defer m.scriptLock.Unlock()
	m.script = append(m.script, script...)
}

func (m *MockOrigin) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		atomic.AddInt64(&m.conns, 1)
		go m.handle(conn)
	}
}

func (m *MockOrigin) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		request, err := readRequest(reader)
		if err != nil {
			return
		}

		select {
		case m.Requests <- request:
		default:
		}

		response, ok := m.next()
		if !ok {
			// script exhausted: hold the poll open until the client
			// gives up or tears the socket down
			if _, err := reader.Peek(1); err != nil {
				return
			}
			continue
		}

		if response.Hangup {
			return
		}

		if response.Delay > 0 {
			time.Sleep(response.Delay)
		}

		if err := writeResponse(conn, response); err != nil {
			return
		}

		if response.CloseAfter {
			return
		}
	}
}

func (m *MockOrigin) next() (Response, bool) {
	m.scriptLock.Lock()
	defer m.scriptLock.Unlock()

	if m.pos >= len(m.script) {
		return Response{}, false
	}

	response := m.script[m.pos]
	m.pos++
	return response, true
}

// readRequest frames one request block off the wire. Subscribe requests are
// GETs, so the block ends at the blank line and carries no body.
func readRequest(reader *bufio.Reader) (string, error) {
	var request strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", err
		}
		request.WriteByte(b)

		if strings.HasSuffix(request.String(), "\r\n\r\n") {
			return request.String(), nil
		}
	}
}

func writeResponse(conn net.Conn, response Response) error {
	status := response.Status
	if status == "" {
		status = "200 OK"
	}

	var raw strings.Builder
	fmt.Fprintf(&raw, "HTTP/1.1 %s\r\n", status)
	if !response.OmitLength {
		fmt.Fprintf(&raw, "Content-Length: %d\r\n", len(response.Body))
	}
	raw.WriteString("Connection: keep-alive\r\n\r\n")
	raw.WriteString(response.Body)

	_, err := conn.Write([]byte(raw.String()))
	return err
}

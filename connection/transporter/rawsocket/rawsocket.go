/*
The RawSocket package establishes and ferries raw bytes across the underlying
TCP connection, optionally wrapped in TLS. In terms of the overall connection
layer architecture, this package is at the lowest layer, providing the raw
bytes to the protocol handler for it to parse and handle.
*/

package rawsocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pnlite/pnlite/connection/transporter"
	"github.com/pnlite/pnlite/logger"
)

const dialTimeout = 15 * time.Second

type RawSocket struct {
	logger *logger.Logger

	// lock guards the connection state below. It is never held across a
	// blocking Read, Write, or Dial, otherwise Abort could not get in to
	// interrupt them.
	lock sync.Mutex

	// conn is what we read and write; tcp is the raw socket underneath,
	// kept separately so Abort can reach it even when conn is a TLS wrapper.
	conn net.Conn
	tcp  *net.TCPConn

	// dialCancel is set for the duration of an in-flight Dial so Abort can
	// cut the connect or handshake short; aborted records that it did, so
	// Dial never publishes a conn that Abort already disowned.
	dialCancel context.CancelFunc
	aborted    bool
}

func New(logger *logger.Logger) transporter.Transporter {
	return &RawSocket{
		logger: logger,
	}
}

func (s *RawSocket) Dial(ctx context.Context, endpoint transporter.Endpoint) error {
	// One budget covers the whole dial, TCP connect and TLS handshake both.
	// Until a conn is published there is nothing for Abort to close, so the
	// cancel is registered where Abort can fire it to cut the dial short.
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	s.lock.Lock()
	s.aborted = false
	s.dialCancel = cancel
	s.lock.Unlock()

	defer func() {
		s.lock.Lock()
		s.dialCancel = nil
		s.lock.Unlock()
	}()

	var dialer net.Dialer

	rawConn, err := dialer.DialContext(dialCtx, "tcp", endpoint.Addr)
	if err != nil {
		return fmt.Errorf("error dialing %s: %w", endpoint.Addr, err)
	}

	tcp, ok := rawConn.(*net.TCPConn)
	if !ok {
		rawConn.Close()
		return fmt.Errorf("dialed %s but got a %T instead of a tcp connection", endpoint.Addr, rawConn)
	}

	conn := net.Conn(tcp)
	if endpoint.Secure {
		tlsConn := tls.Client(tcp, &tls.Config{ServerName: endpoint.ServerName})
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			tcp.Close()
			return fmt.Errorf("error in tls handshake with %s: %w", endpoint.Addr, err)
		}
		conn = tlsConn
	}

	s.lock.Lock()
	aborted := s.aborted
	if !aborted {
		s.conn = conn
		s.tcp = tcp
	}
	s.lock.Unlock()

	if aborted {
		// An abort landed while we were still dialing; it claimed this
		// socket, so close it instead of publishing it.
		tcp.SetLinger(0)
		conn.Close()
		if conn != net.Conn(tcp) {
			tcp.Close()
		}
		return fmt.Errorf("dial of %s was aborted before it finished", endpoint.Addr)
	}

	s.logger.Infof("Socket connection to %s started", endpoint.Addr)
	return nil
}

// Read pulls whatever bytes the peer has sent, blocking until at least one
// arrives. A concurrent Abort tears the socket down underneath us, which
// makes this return with an error.
func (s *RawSocket) Read(p []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, fmt.Errorf("cannot read because the socket is closed")
	}
	return conn.Read(p)
}

func (s *RawSocket) Write(p []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, fmt.Errorf("cannot write because the socket is closed")
	}
	return conn.Write(p)
}

// Abort forcibly shuts the socket down. Safe to call from any goroutine,
// repeatedly, and while another goroutine is blocked in Read or Dial; that
// goroutine wakes up with an error. Setting linger to zero makes the close
// immediate rather than waiting on unsent data.
func (s *RawSocket) Abort(reason error) {
	s.lock.Lock()
	conn, tcp := s.conn, s.tcp
	s.conn = nil
	s.tcp = nil
	cancel := s.dialCancel
	if conn == nil && cancel != nil {
		// Nothing to close yet, but a dial is in flight; poison it so the
		// conn it produces is discarded, and cut it short below.
		s.aborted = true
	}
	s.lock.Unlock()

	if conn == nil {
		if cancel != nil {
			s.logger.Infof("Socket dial abandoned because: %s", reason)
			cancel()
		}
		return
	}

	s.logger.Infof("Socket connection closing because: %s", reason)

	if tcp != nil {
		tcp.SetLinger(0)
	}
	conn.Close()
	if tcp != nil && conn != net.Conn(tcp) {
		// conn was a TLS wrapper; make sure the raw socket underneath is
		// gone too so any blocked reader is released.
		tcp.Close()
	}
}

func (s *RawSocket) Connected() bool {
	return s.current() != nil
}

func (s *RawSocket) current() net.Conn {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.conn
}

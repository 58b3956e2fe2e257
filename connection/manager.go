package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pnlite/pnlite/connection/longpoll"
	"github.com/pnlite/pnlite/connection/transporter"
	"github.com/pnlite/pnlite/logger"
)

// Manager drives one transporter through the long-poll exchange: write the
// request bytes, frame the response header, and hand the body length up so
// the caller can decide when to pull the body. Any failure mid-exchange
// poisons the stream position, so the manager tears the socket down before
// reporting it.
type Manager struct {
	logger *logger.Logger
	client transporter.Transporter

	// stateLock guards state only. It is never held across blocking I/O so
	// that Abort can always get in.
	stateLock sync.Mutex
	state     State
}

func New(logger *logger.Logger, client transporter.Transporter) *Manager {
	return &Manager{
		logger: logger,
		client: client,
		state:  Disconnected,
	}
}

func (m *Manager) EnsureConnected(ctx context.Context, endpoint transporter.Endpoint, request []byte) (int, error) {
	if m.State() == Connected {
		return m.SendRequest(request)
	}

	m.logger.Infof("Connecting to %s", endpoint.Addr)

	if err := m.client.Dial(ctx, endpoint); err != nil {
		return 0, &TransportError{Op: "dial", Err: err}
	}
	m.setState(Connected)

	return m.exchange(request)
}

func (m *Manager) SendRequest(request []byte) (int, error) {
	if m.State() != Connected {
		return 0, &TransportError{Op: "send", Err: fmt.Errorf("connection is down")}
	}
	return m.exchange(request)
}

func (m *Manager) ReadBody(n int) ([]byte, error) {
	body, err := longpoll.ReadBody(m.client, n)
	if err != nil {
		return nil, m.fail("body read", err)
	}
	return body, nil
}

func (m *Manager) Abort(reason error) {
	m.client.Abort(reason)
	m.setState(Disconnected)
}

func (m *Manager) State() State {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	return m.state
}

// exchange writes one request and frames the response header. The returned
// int is the Content-Length the peer promised; the body is still sitting on
// the wire for ReadBody to collect.
func (m *Manager) exchange(request []byte) (int, error) {
	if _, err := m.client.Write(request); err != nil {
		return 0, m.fail("send", err)
	}

	header, err := longpoll.ReadHeader(m.client)
	if err != nil {
		return 0, m.fail("header read", err)
	}

	// Subscribe responses carry their error detail in the body, so a non-OK
	// status is not fatal by itself. Surface it for debugging only.
	if !strings.Contains(header.StatusLine, "200") {
		m.logger.Debugf("Response status: %s", header.StatusLine)
	}

	return header.ContentLength, nil
}

// fail closes the socket and marks us disconnected so the next call starts
// from a clean dial.
func (m *Manager) fail(op string, err error) error {
	transportErr := &TransportError{Op: op, Err: err}
	m.Abort(transportErr)
	return transportErr
}

func (m *Manager) setState(state State) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	m.state = state
}

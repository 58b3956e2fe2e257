package rawsocket

import (
	"fmt"
	"net"

	"github.com/pnlite/pnlite/logger"
)

type MockTcpServer struct {
	logger   *logger.Logger
	listener net.Listener

	Addr          string
	ReceivedBytes chan []byte
}

// NewMockTcpServer starts a plain TCP echo server on an ephemeral port. Every
// chunk a client sends is published on ReceivedBytes and written straight
// back to the client.
func NewMockTcpServer(logger *logger.Logger) *MockTcpServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Errorf("failed to setup listener")
	}

	mockServer := &MockTcpServer{
		logger:        logger,
		listener:      listener,
		Addr:          fmt.Sprintf("127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port),
		ReceivedBytes: make(chan []byte, 8),
	}

	go mockServer.serve()

	return mockServer
}

func (m *MockTcpServer) Shutdown() {
	m.listener.Close()
}

func (m *MockTcpServer) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go m.echo(conn)
	}
}

func (m *MockTcpServer) echo(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		received := make([]byte, n)
		copy(received, buf[:n])
		m.ReceivedBytes <- received

		if _, err := conn.Write(received); err != nil {
			m.logger.Errorf("Error writing echo back to client: %s", err)
			return
		}
	}
}

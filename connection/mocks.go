package connection

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pnlite/pnlite/connection/transporter"
)

type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) EnsureConnected(ctx context.Context, endpoint transporter.Endpoint, request []byte) (int, error) {
	args := m.Called(ctx, endpoint, request)
	return args.Int(0), args.Error(1)
}

func (m *MockConnection) SendRequest(request []byte) (int, error) {
	args := m.Called(request)
	return args.Int(0), args.Error(1)
}

func (m *MockConnection) ReadBody(n int) ([]byte, error) {
	args := m.Called(n)
	if body, ok := args.Get(0).([]byte); ok {
		return body, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnection) Abort(reason error) {
	m.Called(reason)
}

func (m *MockConnection) State() State {
	args := m.Called()
	return args.Get(0).(State)
}

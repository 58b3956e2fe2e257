package transporter

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockTransporter struct {
	mock.Mock
}

func (m *MockTransporter) Dial(ctx context.Context, endpoint Endpoint) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockTransporter) Read(p []byte) (int, error) {
	args := m.Called(p)
	if fill, ok := args.Get(0).([]byte); ok {
		n := copy(p, fill)
		return n, args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockTransporter) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockTransporter) Abort(reason error) {
	m.Called(reason)
}

func (m *MockTransporter) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

package sinkmock

import (
	"context"

	"github.com/JaragonCR/envoy/pkg/sink"
	"github.com/stretchr/testify/mock"
)

// MockSink is a testify mock of the sink.Sink interface.
type MockSink struct {
	mock.Mock
}

var _ sink.Sink = (*MockSink)(nil)

func (m *MockSink) PublishProduction(ctx context.Context, deviceID string, powerW, energyKWH float64) error {
	args := m.Called(ctx, deviceID, powerW, energyKWH)
	return args.Error(0)
}

func (m *MockSink) PublishConsumption(ctx context.Context, deviceID string, powerW, energyKWH float64) error {
	args := m.Called(ctx, deviceID, powerW, energyKWH)
	return args.Error(0)
}

func (m *MockSink) PublishGrid(ctx context.Context, deviceID string, powerW float64, exporting bool) error {
	args := m.Called(ctx, deviceID, powerW, exporting)
	return args.Error(0)
}

package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListDevices(ctx context.Context) ([]types.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Device), args.Error(1)
}

func (m *MockDatabase) CreateDevice(ctx context.Context, device types.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockDatabase) GetPreferences(ctx context.Context, deviceID string) (types.Preferences, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(types.Preferences), args.Error(1)
}

func (m *MockDatabase) SetPreferences(ctx context.Context, deviceID string, prefs types.Preferences) error {
	args := m.Called(ctx, deviceID, prefs)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}

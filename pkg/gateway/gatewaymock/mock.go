package gatewaymock

import (
	"context"

	"github.com/JaragonCR/envoy/pkg/gateway"
	"github.com/JaragonCR/envoy/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of the gateway.Client interface.
type MockClient struct {
	mock.Mock
}

var _ gateway.Client = (*MockClient)(nil)

func (m *MockClient) FetchProduction(ctx context.Context, prefs types.Preferences) (gateway.ProductionDocument, error) {
	args := m.Called(ctx, prefs)
	return args.Get(0).(gateway.ProductionDocument), args.Error(1)
}

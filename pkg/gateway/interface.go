package gateway

import (
	"context"

	"github.com/JaragonCR/envoy/pkg/types"
)

// Client fetches the raw production telemetry document from an Envoy gateway.
type Client interface {
	// FetchProduction performs one authenticated fetch of the production
	// document. It returns ErrConfigurationIncomplete without touching the
	// network when the preferences are missing an address or token, a
	// StatusError for transport/HTTP failures, and a DecodeError when the
	// body is not well-formed JSON.
	FetchProduction(ctx context.Context, prefs types.Preferences) (ProductionDocument, error)
}

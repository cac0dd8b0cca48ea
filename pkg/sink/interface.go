package sink

import (
	"context"
	"errors"
)

// ErrChannelUnsupported is returned (possibly wrapped) when the downstream
// device schema does not declare the channel being published. The caller
// treats it as a non-fatal warning and continues with the other channels.
var ErrChannelUnsupported = errors.New("channel not supported by sink")

// Sink publishes normalized readings to the external device-state service as
// up to three logical channels. There is no transactional guarantee across
// channels; a partial emission self-corrects on the next successful cycle.
type Sink interface {
	// PublishProduction publishes instantaneous production power (W) and
	// today's production energy (kWh).
	PublishProduction(ctx context.Context, deviceID string, powerW, energyKWH float64) error

	// PublishConsumption publishes instantaneous consumption power (W) and
	// today's consumption energy (kWh).
	PublishConsumption(ctx context.Context, deviceID string, powerW, energyKWH float64) error

	// PublishGrid publishes the absolute grid power (W) and whether the site
	// is currently exporting to the grid.
	PublishGrid(ctx context.Context, deviceID string, powerW float64, exporting bool) error
}

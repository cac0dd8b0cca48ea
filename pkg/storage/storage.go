package storage

import (
	"context"
	"errors"

	"github.com/JaragonCR/envoy/pkg/types"
)

// ErrDeviceNotFound is returned when a device has no record in the store.
var ErrDeviceNotFound = errors.New("device not found")

// Database defines the interface for the persisted preference store. The
// preferences themselves are written out-of-band (by the operator through the
// API or directly in the store); the pollers only ever read them and compare
// against the last observed values for change detection.
type Database interface {
	// Devices
	ListDevices(ctx context.Context) ([]types.Device, error)
	CreateDevice(ctx context.Context, device types.Device) error

	// Preferences
	GetPreferences(ctx context.Context, deviceID string) (types.Preferences, error)
	SetPreferences(ctx context.Context, deviceID string, prefs types.Preferences) error

	// Lifecycle
	Close() error
}

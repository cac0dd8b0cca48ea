package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaragonCR/envoy/pkg/gateway"
	"github.com/JaragonCR/envoy/pkg/sink"
	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/types"
)

// Configured sets up the poller Map and registers its flags.
func Configured(g gateway.Client, s sink.Sink, db storage.Database) *Map {
	interval := lflag.Duration("poll-interval", 5*time.Minute, "Interval between gateway polls")

	m := NewMap(g, s, db)

	lflag.Do(func() {
		m.interval = *interval
		m.metrics = NewMetrics(prometheus.DefaultRegisterer)
	})

	return m
}

// Map manages one Poller per device.
type Map struct {
	mu      sync.Mutex
	pollers map[string]*Poller
	ctx     context.Context

	gateway  gateway.Client
	sink     sink.Sink
	storage  storage.Database
	metrics  *Metrics
	interval time.Duration
}

// NewMap creates a new poller Map.
func NewMap(g gateway.Client, s sink.Sink, db storage.Database) *Map {
	return &Map{
		pollers:  make(map[string]*Poller),
		gateway:  g,
		sink:     s,
		storage:  db,
		interval: 5 * time.Minute,
	}
}

// Start launches a poller for every registered device and remembers the
// context so pollers created later for new devices start immediately.
func (m *Map) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	devices, err := m.storage.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		m.Device(d.ID)
	}
	return nil
}

// Device returns the poller for the given deviceID.
// If the deviceID is new, it creates a new poller instance.
func (m *Map) Device(deviceID string) *Poller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deviceID == "" {
		deviceID = types.DeviceIDNone
	}

	if p, ok := m.pollers[deviceID]; ok {
		return p
	}

	p := NewPoller(deviceID, m.gateway, m.sink, m.storage, m.metrics, m.interval)
	if m.ctx != nil {
		p.Start(m.ctx)
	}
	m.pollers[deviceID] = p
	return p
}

// SetPoller sets the poller for a specific device. This is primarily used for testing.
func (m *Map) SetPoller(deviceID string, p *Poller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollers[deviceID] = p
}

// StopAll stops every running poller and waits for them to exit.
func (m *Map) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pollers {
		p.Stop()
	}
}

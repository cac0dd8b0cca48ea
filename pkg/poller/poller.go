package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JaragonCR/envoy/pkg/gateway"
	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/sink"
	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/types"
)

// cycleTimeout bounds a single poll cycle, including the gateway fetch and
// all sink publishes.
const cycleTimeout = time.Minute

// Poller drives the fetch/extract/publish pipeline for a single gateway.
// Cycles for a device never interleave: the periodic loop, preference-change
// triggers, and manual refreshes all serialize on the same mutex. Triggers
// that arrive while a cycle is running coalesce into a single pending cycle.
type Poller struct {
	deviceID string
	gateway  gateway.Client
	sink     sink.Sink
	storage  storage.Database
	metrics  *Metrics
	interval time.Duration

	trigger   chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once

	// runMu serializes cycles across the loop and manual refreshes
	runMu sync.Mutex

	mu        sync.Mutex
	last      *types.Reading
	lastPrefs types.Preferences
}

// NewPoller creates a Poller for the given device. Call Start to begin the
// periodic loop.
func NewPoller(deviceID string, g gateway.Client, s sink.Sink, db storage.Database, m *Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		deviceID: deviceID,
		gateway:  g,
		sink:     s,
		storage:  db,
		metrics:  m,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop and immediately schedules a startup cycle.
// It returns right away; the loop runs until Stop or the context is canceled.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		p.Trigger()
		go p.loop(ctx)
	})
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}

// Trigger requests an asynchronous poll cycle. If a cycle is already pending
// the request is coalesced into it.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.trigger:
		}
		// failures are logged inside runCycle
		_, _ = p.runCycle(ctx)
	}
}

// Refresh runs a poll cycle synchronously and returns the resulting reading.
// It waits for any in-flight cycle to finish first.
func (p *Poller) Refresh(ctx context.Context) (types.Reading, error) {
	return p.runCycle(ctx)
}

// NotifyPreferences compares prefs against the last observed preferences and
// schedules a poll cycle if anything changed.
func (p *Poller) NotifyPreferences(prefs types.Preferences) {
	p.mu.Lock()
	changed := prefs != p.lastPrefs
	p.mu.Unlock()
	if changed {
		p.Trigger()
	}
}

// LastReading returns the most recent successful reading, if any.
func (p *Poller) LastReading() (types.Reading, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return types.Reading{}, false
	}
	return *p.last, true
}

func (p *Poller) runCycle(ctx context.Context) (types.Reading, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	prefs, err := p.storage.GetPreferences(ctx, p.deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load preferences",
			slog.String("deviceID", p.deviceID),
			slog.Any("error", err),
		)
		p.metrics.observeCycle(p.deviceID, "storage_error")
		return types.Reading{}, err
	}
	p.mu.Lock()
	p.lastPrefs = prefs
	p.mu.Unlock()

	doc, err := p.gateway.FetchProduction(ctx, prefs)
	if err != nil {
		if errors.Is(err, gateway.ErrConfigurationIncomplete) {
			log.Ctx(ctx).WarnContext(ctx, "skipping poll, gateway not configured",
				slog.String("deviceID", p.deviceID),
			)
			p.metrics.observeCycle(p.deviceID, "skipped")
			return types.Reading{}, err
		}
		var de *gateway.DecodeError
		if errors.As(err, &de) {
			// keep the raw body so a schema change is diagnosable from logs
			body := de.Body
			if len(body) > 1024 {
				body = body[:1024]
			}
			log.Ctx(ctx).ErrorContext(ctx, "failed to decode gateway response",
				slog.String("deviceID", p.deviceID),
				slog.String("body", string(body)),
				slog.Any("error", err),
			)
			p.metrics.observeCycle(p.deviceID, "decode_error")
		} else {
			log.Ctx(ctx).ErrorContext(ctx, "failed to fetch from gateway",
				slog.String("deviceID", p.deviceID),
				slog.Any("error", err),
			)
			p.metrics.observeCycle(p.deviceID, "fetch_error")
		}
		return types.Reading{}, err
	}

	reading := gateway.Extract(ctx, doc)
	reading.Timestamp = time.Now().UTC()

	p.publish(ctx, reading)

	p.mu.Lock()
	p.last = &reading
	p.mu.Unlock()
	p.metrics.observeCycle(p.deviceID, "ok")
	p.metrics.observeReading(p.deviceID, reading)
	return reading, nil
}

// publish pushes the reading to the three sink channels. A channel the sink
// does not support is logged and skipped; it never fails the cycle.
func (p *Poller) publish(ctx context.Context, r types.Reading) {
	publishes := []struct {
		channel string
		fn      func() error
	}{
		{"production", func() error {
			return p.sink.PublishProduction(ctx, p.deviceID, r.Production.PowerW, r.Production.EnergyTodayWH/1000)
		}},
		{"consumption", func() error {
			return p.sink.PublishConsumption(ctx, p.deviceID, r.Consumption.PowerW, r.Consumption.EnergyTodayWH/1000)
		}},
		{"grid", func() error {
			return p.sink.PublishGrid(ctx, p.deviceID, r.Grid.PowerW, r.Grid.Exporting)
		}},
	}
	for _, pub := range publishes {
		if err := pub.fn(); err != nil {
			if errors.Is(err, sink.ErrChannelUnsupported) {
				log.Ctx(ctx).WarnContext(ctx, "sink does not support channel",
					slog.String("deviceID", p.deviceID),
					slog.String("channel", pub.channel),
				)
				continue
			}
			log.Ctx(ctx).WarnContext(ctx, "failed to publish reading",
				slog.String("deviceID", p.deviceID),
				slog.String("channel", pub.channel),
				slog.Any("error", err),
			)
		}
	}
}

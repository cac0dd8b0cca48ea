package poller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaragonCR/envoy/pkg/types"
)

// Metrics tracks poll outcomes and the most recent reading per device.
type Metrics struct {
	cycles       *prometheus.CounterVec
	productionW  *prometheus.GaugeVec
	consumptionW *prometheus.GaugeVec
	gridW        *prometheus.GaugeVec
	lastPoll     *prometheus.GaugeVec
}

// NewMetrics creates and registers the poller metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_poll_cycles_total",
			Help: "Total poll cycles by result",
		}, []string{"device", "result"}),
		productionW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envoy_production_watts",
			Help: "Most recent solar production in watts",
		}, []string{"device"}),
		consumptionW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envoy_consumption_watts",
			Help: "Most recent house consumption in watts",
		}, []string{"device"}),
		gridW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envoy_grid_watts",
			Help: "Most recent net grid flow in watts (negative when exporting)",
		}, []string{"device"}),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envoy_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll",
		}, []string{"device"}),
	}
	reg.MustRegister(m.cycles, m.productionW, m.consumptionW, m.gridW, m.lastPoll)
	return m
}

func (m *Metrics) observeCycle(deviceID, result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(deviceID, result).Inc()
}

func (m *Metrics) observeReading(deviceID string, r types.Reading) {
	if m == nil {
		return
	}
	m.productionW.WithLabelValues(deviceID).Set(r.Production.PowerW)
	m.consumptionW.WithLabelValues(deviceID).Set(r.Consumption.PowerW)
	m.gridW.WithLabelValues(deviceID).Set(r.Grid.NetW)
	m.lastPoll.WithLabelValues(deviceID).Set(float64(r.Timestamp.Unix()))
}

package types

import "time"

// DeviceIDNone is used when running in single-device mode.
const DeviceIDNone = "none"

// Device represents a single monitored Envoy gateway.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preferences holds the externally supplied per-device configuration: where
// the gateway lives on the LAN and the split bearer token used to talk to it.
// The token is stored in two fragments because the companion app's preference
// fields cap out below the token length; it is reassembled before every poll.
type Preferences struct {
	Address        string `json:"address"`
	TokenFragmentA string `json:"tokenFragmentA"`
	TokenFragmentB string `json:"tokenFragmentB"`
}

// Complete reports whether the preferences are sufficient to poll: the
// address and at least one token fragment must be present.
func (p Preferences) Complete() bool {
	return p.Address != "" && (p.TokenFragmentA != "" || p.TokenFragmentB != "")
}

// ProductionMetrics are sourced from the calibrated energy-meter ("eim")
// entry of the production document.
type ProductionMetrics struct {
	PowerW            float64 `json:"powerW"`
	EnergyTodayWH     float64 `json:"energyTodayWH"`
	EnergyLast7DaysWH float64 `json:"energyLast7DaysWH"`
	EnergyLifetimeWH  float64 `json:"energyLifetimeWH"`
}

// ConsumptionMetrics are sourced from the "total-consumption" entry.
type ConsumptionMetrics struct {
	PowerW        float64 `json:"powerW"`
	EnergyTodayWH float64 `json:"energyTodayWH"`
}

// GridFlow is derived from the signed "net-consumption" entry.
// NetW keeps the raw sign (negative means the site is exporting); PowerW is
// its magnitude and Exporting is strictly true only for negative values, so
// a balanced zero reading classifies as importing.
type GridFlow struct {
	NetW      float64 `json:"netW"`
	PowerW    float64 `json:"powerW"`
	Exporting bool    `json:"exporting"`
}

// Reading is the normalized result of one successful poll cycle. It is
// immutable once computed; the emission adapter consumes it and the poller
// keeps the most recent one for the status API.
type Reading struct {
	Timestamp   time.Time          `json:"timestamp"`
	Production  ProductionMetrics  `json:"production"`
	Consumption ConsumptionMetrics `json:"consumption"`
	Grid        GridFlow           `json:"grid"`
}

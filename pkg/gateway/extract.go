package gateway

import (
	"context"
	"log/slog"
	"math"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/types"
)

const (
	// meterTypeEIM selects the calibrated energy-meter production entry. It
	// is preferred over the raw "inverters" category because the meter
	// applies reactive-power and true-RMS correction.
	meterTypeEIM = "eim"

	measurementTotalConsumption = "total-consumption"
	measurementNetConsumption   = "net-consumption"
)

// Extract folds the production and consumption collections into a normalized
// Reading. The first entry per category wins; an absent category yields zero
// metrics rather than an error, since a site without that meter simply has
// nothing to report. Production and consumption values are floored at zero
// (negative readings at night are meter noise, not real negative flow); the
// net-consumption value keeps its sign because the sign carries the
// import/export direction.
func Extract(ctx context.Context, doc ProductionDocument) types.Reading {
	var r types.Reading

	var foundProduction bool
	for _, m := range doc.Production {
		if m.Type != meterTypeEIM {
			continue
		}
		foundProduction = true
		r.Production = types.ProductionMetrics{
			PowerW:            clampZero(m.WNow),
			EnergyTodayWH:     clampZero(m.WhToday),
			EnergyLast7DaysWH: clampZero(m.WhLastSevenDays),
			EnergyLifetimeWH:  clampZero(m.WhLifetime),
		}
		break
	}
	if !foundProduction {
		log.Ctx(ctx).DebugContext(ctx, "no eim production entry in document")
	}

	var foundTotal, foundNet bool
	var netW float64
	for _, m := range doc.Consumption {
		switch m.MeasurementType {
		case measurementTotalConsumption:
			if foundTotal {
				continue
			}
			foundTotal = true
			r.Consumption = types.ConsumptionMetrics{
				PowerW:        clampZero(m.WNow),
				EnergyTodayWH: clampZero(m.WhToday),
			}
		case measurementNetConsumption:
			if foundNet {
				continue
			}
			foundNet = true
			netW = m.WNow
		default:
			// unrecognized category, explicitly a no-op
			log.Ctx(ctx).DebugContext(ctx, "skipping unrecognized consumption entry",
				slog.String("measurementType", m.MeasurementType))
		}
	}

	r.Grid = DeriveGridFlow(netW)
	return r
}

// DeriveGridFlow converts the signed net-consumption power into the grid
// magnitude and direction flag. Exporting is strictly true only for negative
// values: an exactly-zero reading represents balanced/no-flow and classifies
// as importing.
func DeriveGridFlow(netW float64) types.GridFlow {
	return types.GridFlow{
		NetW:      netW,
		PowerW:    math.Abs(netW),
		Exporting: netW < 0,
	}
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

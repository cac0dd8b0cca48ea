package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("FullDocument", func(t *testing.T) {
		doc := ProductionDocument{
			Production: []Measurement{
				{Type: "inverters", WNow: 4400},
				{Type: "eim", WNow: 4500, WhToday: 12000, WhLastSevenDays: 80000, WhLifetime: 5000000},
			},
			Consumption: []Measurement{
				{MeasurementType: "total-consumption", WNow: 1200, WhToday: 8000},
				{MeasurementType: "net-consumption", WNow: -3300},
			},
		}

		r := Extract(ctx, doc)
		assert.Equal(t, 4500.0, r.Production.PowerW, "eim entry should win over inverters")
		assert.Equal(t, 12000.0, r.Production.EnergyTodayWH)
		assert.Equal(t, 80000.0, r.Production.EnergyLast7DaysWH)
		assert.Equal(t, 5000000.0, r.Production.EnergyLifetimeWH)
		assert.Equal(t, 1200.0, r.Consumption.PowerW)
		assert.Equal(t, 8000.0, r.Consumption.EnergyTodayWH)
		assert.Equal(t, -3300.0, r.Grid.NetW)
		assert.Equal(t, 3300.0, r.Grid.PowerW)
		assert.True(t, r.Grid.Exporting)
	})

	t.Run("NoEIMEntry", func(t *testing.T) {
		doc := ProductionDocument{
			Production: []Measurement{
				{Type: "inverters", WNow: 4400},
			},
		}

		r := Extract(ctx, doc)
		assert.Zero(t, r.Production.PowerW, "inverters entry should be ignored")
		assert.Zero(t, r.Consumption.PowerW)
		assert.False(t, r.Grid.Exporting, "no net entry means no flow, which reads as importing")
	})

	t.Run("FirstEntryWins", func(t *testing.T) {
		doc := ProductionDocument{
			Production: []Measurement{
				{Type: "eim", WNow: 100},
				{Type: "eim", WNow: 200},
			},
			Consumption: []Measurement{
				{MeasurementType: "net-consumption", WNow: 50},
				{MeasurementType: "net-consumption", WNow: 999},
			},
		}

		r := Extract(ctx, doc)
		assert.Equal(t, 100.0, r.Production.PowerW)
		assert.Equal(t, 50.0, r.Grid.NetW)
	})

	t.Run("NegativeProductionClamped", func(t *testing.T) {
		doc := ProductionDocument{
			Production: []Measurement{
				{Type: "eim", WNow: -12, WhToday: -1},
			},
			Consumption: []Measurement{
				{MeasurementType: "total-consumption", WNow: -5},
				{MeasurementType: "net-consumption", WNow: -20},
			},
		}

		r := Extract(ctx, doc)
		assert.Zero(t, r.Production.PowerW, "night-time meter noise should clamp to zero")
		assert.Zero(t, r.Production.EnergyTodayWH)
		assert.Zero(t, r.Consumption.PowerW)
		assert.Equal(t, -20.0, r.Grid.NetW, "net flow keeps its sign")
	})

	t.Run("UnrecognizedConsumptionIgnored", func(t *testing.T) {
		doc := ProductionDocument{
			Consumption: []Measurement{
				{MeasurementType: "phase-consumption", WNow: 777},
				{MeasurementType: "total-consumption", WNow: 900},
			},
		}

		r := Extract(ctx, doc)
		assert.Equal(t, 900.0, r.Consumption.PowerW)
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		r := Extract(ctx, ProductionDocument{})
		assert.Zero(t, r.Production.PowerW)
		assert.Zero(t, r.Consumption.PowerW)
		assert.Zero(t, r.Grid.NetW)
		assert.False(t, r.Grid.Exporting)
	})
}

func TestDeriveGridFlow(t *testing.T) {
	t.Run("Exporting", func(t *testing.T) {
		g := DeriveGridFlow(-3300)
		assert.Equal(t, -3300.0, g.NetW)
		assert.Equal(t, 3300.0, g.PowerW)
		assert.True(t, g.Exporting)
	})

	t.Run("Importing", func(t *testing.T) {
		g := DeriveGridFlow(1500)
		assert.Equal(t, 1500.0, g.NetW)
		assert.Equal(t, 1500.0, g.PowerW)
		assert.False(t, g.Exporting)
	})

	t.Run("ZeroIsImporting", func(t *testing.T) {
		g := DeriveGridFlow(0)
		assert.Zero(t, g.PowerW)
		assert.False(t, g.Exporting)
	})
}

func TestAssembleToken(t *testing.T) {
	assert.Equal(t, "abcdef", AssembleToken("abc", "def"))
	assert.Equal(t, "abcdef", AssembleToken(" abc\n", "\tdef "))
	assert.Equal(t, "abc", AssembleToken("abc", ""))
	assert.Equal(t, "def", AssembleToken("", "def"))
	assert.Equal(t, "", AssembleToken(" ", "\n"))
}

package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/kigalisim/internal/value"
)

func TestSimulationState_EnsureSubstanceIsIdempotent(t *testing.T) {
	s := NewSimulationState(2025)
	p1 := s.EnsureSubstance("Domestic Refrigeration", "HFC-134a")
	p2 := s.EnsureSubstance("Domestic Refrigeration", "HFC-134a")

	require.Same(t, p1, p2, "EnsureSubstance should return the same Parameterization on repeat calls")
	require.True(t, s.HasSubstance("Domestic Refrigeration", "HFC-134a"))
	require.Len(t, s.Substances(), 1)
}

func TestSimulationState_GetStreamComputesSalesFromComponents(t *testing.T) {
	s := NewSimulationState(2025)
	s.EnsureSubstance("app", "sub")
	s.setRaw("app", "sub", StreamDomestic, value.New(60, value.UnitKg))
	s.setRaw("app", "sub", StreamImport, value.New(40, value.UnitKg))
	s.setRaw("app", "sub", StreamRecycleRecharge, value.New(5, value.UnitKg))
	s.setRaw("app", "sub", StreamRecycleEol, value.New(5, value.UnitKg))

	sales, err := s.GetStream("app", "sub", StreamSales)
	require.NoError(t, err)
	require.True(t, sales.Amount.Equal(decimal.NewFromInt(110)), "sales = domestic + import + recycle, got %s", sales.Amount)

	recycle, err := s.GetStream("app", "sub", StreamRecycle)
	require.NoError(t, err)
	require.True(t, recycle.Amount.Equal(decimal.NewFromInt(10)))
}

func TestSimulationState_WriteEnableableRejectsNonZeroWhenDisabled(t *testing.T) {
	s := NewSimulationState(2025)
	p := s.EnsureSubstance("app", "sub")

	err := s.Update(StreamUpdate{App: "app", Substance: "sub", Stream: StreamDomestic, Value: value.New(10, value.UnitKg)})
	require.ErrorIs(t, err, ErrStreamNotEnabled)

	p.MarkStreamAsEnabled(StreamDomestic)
	err = s.Update(StreamUpdate{App: "app", Substance: "sub", Stream: StreamDomestic, Value: value.New(10, value.UnitKg)})
	require.NoError(t, err)
}

func TestSimulationState_WriteWithRecyclingSubtractedNetsProRataShare(t *testing.T) {
	s := NewSimulationState(2025)
	p := s.EnsureSubstance("app", "sub")
	p.MarkStreamAsEnabled(StreamDomestic)
	p.MarkStreamAsEnabled(StreamImport)

	require.NoError(t, s.Update(StreamUpdate{App: "app", Substance: "sub", Stream: StreamDomestic, Value: value.New(60, value.UnitKg)}))
	require.NoError(t, s.Update(StreamUpdate{App: "app", Substance: "sub", Stream: StreamImport, Value: value.New(40, value.UnitKg)}))
	s.setRaw("app", "sub", StreamRecycleRecharge, value.New(10, value.UnitKg))

	err := s.Update(StreamUpdate{
		App: "app", Substance: "sub", Stream: StreamDomestic,
		Value: value.New(60, value.UnitKg), SubtractRecycling: true,
	})
	require.NoError(t, err)

	got := s.rawStream("app", "sub", StreamDomestic)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(54)), "60 - (10 * 60/100) = 54, got %s", got.Amount)
}

func TestSimulationState_WriteRecycleSplitFallsBackToEvenSplitWhenEmpty(t *testing.T) {
	s := NewSimulationState(2025)
	s.EnsureSubstance("app", "sub")

	require.NoError(t, s.writeRecycleSplit("app", "sub", value.New(10, value.UnitKg)))

	recharge := s.rawStream("app", "sub", StreamRecycleRecharge)
	eol := s.rawStream("app", "sub", StreamRecycleEol)
	require.True(t, recharge.Amount.Equal(decimal.NewFromFloat(5)))
	require.True(t, eol.Amount.Equal(decimal.NewFromFloat(5)))
}

func TestSimulationState_WritePriorEquipmentRescalesBasesAboveTolerance(t *testing.T) {
	s := NewSimulationState(2025)
	p := s.EnsureSubstance("app", "sub")
	p.RechargeBasePopulation = decimal.NewFromInt(100)
	p.AppliedRechargeAmount = decimal.NewFromInt(50)
	s.setRaw("app", "sub", StreamPriorEquipment, value.New(100, value.UnitUnits))

	require.NoError(t, s.writePriorEquipment("app", "sub", p, value.New(200, value.UnitUnits), true))

	require.True(t, p.RechargeBasePopulation.Equal(decimal.NewFromInt(200)))
	require.True(t, p.AppliedRechargeAmount.Equal(decimal.NewFromInt(100)))
}

func TestSimulationState_WritePriorEquipmentIgnoresSmallDeltas(t *testing.T) {
	s := NewSimulationState(2025)
	p := s.EnsureSubstance("app", "sub")
	p.RechargeBasePopulation = decimal.NewFromInt(100)
	s.setRaw("app", "sub", StreamPriorEquipment, value.New(100, value.UnitUnits))

	require.NoError(t, s.writePriorEquipment("app", "sub", p, value.New(100.00001, value.UnitUnits), true))
	require.True(t, p.RechargeBasePopulation.Equal(decimal.NewFromInt(100)), "delta below tolerance should not rescale")
}

package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/kigalisim/internal/value"
)

// TestIncrementYear_RedistributesRecyclingMatchesScenario6 matches §8
// seed scenario 6: next year's domestic equals this year's stored value
// plus this year's recycle times the domestic share, less induction
// times the domestic share.
func TestIncrementYear_RedistributesRecyclingMatchesScenario6(t *testing.T) {
	e := NewEngine(2025, 2026)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("sub", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(100, value.UnitKg), AlwaysMatch))

	e.state.setRaw("app", "sub", StreamRecycleRecharge, value.New(10, value.UnitKg))
	e.state.setRaw("app", "sub", StreamRecycleEol, value.New(0, value.UnitKg))
	e.state.setRaw("app", "sub", StreamInductionRecharge, value.New(2, value.UnitKg))

	domesticBefore := e.state.rawStream("app", "sub", StreamDomestic)

	require.NoError(t, e.IncrementYear())

	domesticAfter := e.state.rawStream("app", "sub", StreamDomestic)
	// only domestic enabled, so its share of both recycle and induction is 100%.
	want := domesticBefore.Amount.Add(decimal.NewFromInt(10)).Sub(decimal.NewFromInt(2))
	require.True(t, domesticAfter.Amount.Equal(want), "expected %s, got %s", want, domesticAfter.Amount)
}

// TestIncrementYear_RollsEquipmentAndAgesCohort matches §4.7 step 2: new
// units enter at age 1, the existing cohort ages by one year, and the
// result is the weighted mean of both.
func TestIncrementYear_RollsEquipmentAndAgesCohort(t *testing.T) {
	e := NewEngine(2025, 2026)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("sub", false))

	e.state.setRaw("app", "sub", StreamPriorEquipment, value.New(100, value.UnitUnits))
	e.state.setRaw("app", "sub", StreamEquipment, value.New(300, value.UnitUnits))
	e.state.setRaw("app", "sub", StreamAge, value.New(3, value.UnitYears))

	require.NoError(t, e.IncrementYear())

	priorEquipment := e.state.rawStream("app", "sub", StreamPriorEquipment)
	require.True(t, priorEquipment.Amount.Equal(decimal.NewFromInt(300)))

	age := e.state.rawStream("app", "sub", StreamAge)
	// ((3+1)*100 + 1*200) / 300 = 600/300 = 2.0
	require.True(t, age.Amount.Equal(decimal.NewFromInt(2)), "expected age 2, got %s", age.Amount)
}

// TestIncrementYear_FailsPastEndYear matches the RangeExhausted error.
func TestIncrementYear_FailsPastEndYear(t *testing.T) {
	e := NewEngine(2025, 2025)
	require.ErrorIs(t, e.IncrementYear(), ErrRangeExhausted)
}

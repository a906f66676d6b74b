package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/kigalisim/internal/value"
)

// TestCapDisplacesByUnits matches §8 seed scenario 4: capping A's sales to
// zero units and displacing by units into B moves units, not kg, so B's
// kg increase reflects B's own initial charge rather than A's.
func TestCapDisplacesByUnits(t *testing.T) {
	e := NewEngine(2025, 2025)
	e.SetStanza("BAU")
	e.SetApplication("Domestic Refrigeration")

	require.NoError(t, e.SetSubstance("A", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.InitialCharge(value.New(0.2, value.UnitKg), StreamDomestic, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(200, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("Domestic Refrigeration")
	require.NoError(t, e.SetSubstance("B", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.InitialCharge(value.New(0.1, value.UnitKg), StreamDomestic, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(10, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("Domestic Refrigeration")
	require.NoError(t, e.SetSubstance("A", false))

	require.NoError(t, e.Cap(StreamSales, value.New(0, value.UnitUnits), AlwaysMatch, "B", DisplacementByUnits))

	aDomestic := e.state.rawStream("Domestic Refrigeration", "A", StreamDomestic)
	require.True(t, aDomestic.Amount.Equal(decimal.Zero), "A's new-unit share should go to zero, got %s", aDomestic.Amount)

	// 200kg / 0.2kg-per-unit = 1000 units displaced; at B's 0.1kg/unit
	// charge that is 100kg added to B's sales, not 200kg.
	bSales, err := e.state.GetStream("Domestic Refrigeration", "B", StreamSales)
	require.NoError(t, err)
	require.True(t, bSales.Amount.Equal(decimal.NewFromInt(110)), "expected 10 + 100 = 110 kg, got %s", bSales.Amount)
}

// TestCapDisplacesByVolumeOntoCorrespondingStream matches §4.6: a
// volume-based displacement subtracts the same kg amount from the
// other substance's corresponding stream, not its aggregate sales
// split. B's domestic/import enabled shares are lopsided (100%
// domestic) so a sales-routed write would land entirely on domestic;
// a corresponding-stream write must land on import instead.
func TestCapDisplacesByVolumeOntoCorrespondingStream(t *testing.T) {
	e := NewEngine(2025, 2025)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("A", false))
	require.NoError(t, e.Enable(StreamImport, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamImport, value.New(500, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("B", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.Enable(StreamImport, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(100, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("A", false))
	require.NoError(t, e.Cap(StreamImport, value.New(300, value.UnitKg), AlwaysMatch, "B", DisplacementByVolume))

	bDomestic := e.state.rawStream("app", "B", StreamDomestic)
	require.True(t, bDomestic.Amount.Equal(decimal.NewFromInt(100)), "domestic must be untouched, got %s", bDomestic.Amount)

	bImport := e.state.rawStream("app", "B", StreamImport)
	require.True(t, bImport.Amount.Equal(decimal.NewFromInt(200)), "expected the full 200kg displaced onto import, got %s", bImport.Amount)
}

// TestCapSelfDisplacementRejected matches the §4.5 tie-break policy: a
// cap naming its own substance as the displacement target must fail.
func TestCapSelfDisplacementRejected(t *testing.T) {
	e := NewEngine(2025, 2025)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("sub", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))

	err := e.Cap(StreamDomestic, value.New(0, value.UnitKg), AlwaysMatch, "sub", DisplacementEquivalent)
	require.ErrorIs(t, err, ErrSelfDisplacement)
}

// TestReplaceSelfReplacementRejected matches the §4.5 tie-break policy
// for replace.
func TestReplaceSelfReplacementRejected(t *testing.T) {
	e := NewEngine(2025, 2025)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("sub", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))

	err := e.Replace(value.New(10, value.UnitKg), StreamDomestic, "sub", AlwaysMatch)
	require.ErrorIs(t, err, ErrSelfReplacement)
}

// TestReplaceMovesMassBetweenSubstances matches §4.6 replace: mass
// removed from the source appears, unchanged, on the destination's sales.
func TestReplaceMovesMassBetweenSubstances(t *testing.T) {
	e := NewEngine(2025, 2025)
	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("HFC-134a", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(100, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("R-600a", false))
	require.NoError(t, e.Enable(StreamDomestic, AlwaysMatch))
	require.NoError(t, e.SetStream(StreamDomestic, value.New(0, value.UnitKg), AlwaysMatch))

	e.SetStanza("BAU")
	e.SetApplication("app")
	require.NoError(t, e.SetSubstance("HFC-134a", false))

	require.NoError(t, e.Replace(value.New(10, value.UnitKg), StreamDomestic, "R-600a", AlwaysMatch))

	src := e.state.rawStream("app", "HFC-134a", StreamDomestic)
	require.True(t, src.Amount.Equal(decimal.NewFromInt(90)))

	dst, err := e.state.GetStream("app", "R-600a", StreamSales)
	require.NoError(t, err)
	require.True(t, dst.Amount.Equal(decimal.NewFromInt(10)))
}

package value

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeContext struct {
	gwp             decimal.Decimal
	hasGWP          bool
	energyIntensity decimal.Decimal
	hasEnergy       bool
	initialCharge   decimal.Decimal
	hasCharge       bool
}

func (f fakeContext) GWP() (decimal.Decimal, bool) { return f.gwp, f.hasGWP }
func (f fakeContext) EnergyIntensity() (decimal.Decimal, bool) {
	return f.energyIntensity, f.hasEnergy
}
func (f fakeContext) InitialCharge(stream string) (decimal.Decimal, bool) {
	return f.initialCharge, f.hasCharge
}

func TestRoundTripKgMt(t *testing.T) {
	c := NewConverter()
	v := New(25000, UnitKg)

	mt, err := c.ConvertTo(v, UnitMt, fakeContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mt.Amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected 25 mt, got %s", mt.Amount)
	}

	back, err := c.ConvertTo(mt, UnitKg, fakeContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(v) {
		t.Fatalf("round trip kg->mt->kg mismatch: got %s, want %s", back, v)
	}
}

func TestMassToEmissionsUsesGWP(t *testing.T) {
	c := NewConverter()
	v := New(1, UnitKg)
	ctx := fakeContext{gwp: decimal.NewFromInt(1430), hasGWP: true}

	kgco2e, err := c.ConvertTo(v, UnitKgCO2e, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !kgco2e.Amount.Equal(decimal.NewFromInt(1430)) {
		t.Fatalf("expected 1430 kgCO2e, got %s", kgco2e.Amount)
	}
}

func TestMassToEmissionsMissingGWP(t *testing.T) {
	c := NewConverter()
	_, err := c.ConvertTo(New(1, UnitKg), UnitKgCO2e, fakeContext{})
	if !errors.Is(err, ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
}

func TestMassToUnitsViaInitialCharge(t *testing.T) {
	c := NewConverter()
	ctx := fakeContext{initialCharge: decimal.NewFromFloat(0.15), hasCharge: true}

	units, err := c.ConvertTo(New(13050, UnitKg), UnitUnits, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !units.Amount.Equal(decimal.NewFromInt(87000)) {
		t.Fatalf("expected 87000 units, got %s", units.Amount)
	}
}

func TestMassToUnitsZeroInitialCharge(t *testing.T) {
	c := NewConverter()
	ctx := fakeContext{initialCharge: decimal.Zero, hasCharge: true}

	_, err := c.ConvertTo(New(10, UnitKg), UnitUnits, ctx)
	if !errors.Is(err, ErrZeroInitialCharge) {
		t.Fatalf("expected ErrZeroInitialCharge, got %v", err)
	}
}

func TestOverridingStateGetterPinsInitialCharge(t *testing.T) {
	base := fakeContext{initialCharge: decimal.NewFromFloat(0.2), hasCharge: true}
	pinned := decimal.NewFromFloat(0.1)
	override := OverridingConverterStateGetter{Base: base, AmortizedUnitVolume: &pinned}

	got, ok := override.InitialCharge("domestic")
	if !ok || !got.Equal(pinned) {
		t.Fatalf("expected pinned initial charge 0.1, got %s ok=%v", got, ok)
	}
}

func TestUnconvertiblePairReturnsUnitMismatch(t *testing.T) {
	c := NewConverter()
	_, err := c.ConvertTo(New(1, "%"), UnitKg, fakeContext{})
	if !errors.Is(err, ErrUnitMismatch) {
		t.Fatalf("expected ErrUnitMismatch, got %v", err)
	}
}

func TestArithmeticMatchingUnits(t *testing.T) {
	a := New(10, UnitKg)
	b := New(5, UnitKg)
	if sum := a.Add(b); sum.Float64() != 15 {
		t.Fatalf("expected 15, got %v", sum.Float64())
	}
	if diff := a.Sub(b); diff.Float64() != 5 {
		t.Fatalf("expected 5, got %v", diff.Float64())
	}
}

func TestArithmeticMismatchedUnitsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched unit arithmetic")
		}
	}()
	New(1, UnitKg).Add(New(1, UnitMt))
}

func TestClampNonNegative(t *testing.T) {
	v := New(-5, UnitKg)
	clamped, wasClamped := v.ClampNonNegative()
	if !wasClamped {
		t.Fatal("expected clamping to occur")
	}
	if !clamped.IsZero() {
		t.Fatalf("expected zero after clamp, got %s", clamped.Amount)
	}

	pos := New(5, UnitKg)
	same, wasClamped := pos.ClampNonNegative()
	if wasClamped {
		t.Fatal("did not expect clamping on positive value")
	}
	if same.Float64() != 5 {
		t.Fatalf("expected unchanged value, got %v", same.Float64())
	}
}

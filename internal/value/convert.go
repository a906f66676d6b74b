package value

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Dimensional family constants recognized by the converter. Everything
// else is treated as an opaque, unconvertible unit token.
const (
	UnitKg       = "kg"
	UnitMt       = "mt"
	UnitUnits    = "units"
	UnitTCO2e    = "tCO2e"
	UnitKgCO2e   = "kgCO2e"
	UnitKwh      = "kwh"
	UnitPercent  = "%"
	UnitYears    = "years"
	UnitYearsInv = "years^-1"
)

var mtPerKg = decimal.NewFromInt(1000) // 1 mt = 1000 kg

// ConversionContext resolves the dimensional context (GWP, initial
// charge, energy intensity) needed to cross unit families.
// The spec calls this the "state-getter": the default implementation is
// backed by the simulation state's current scope; OverridingConverterStateGetter
// lets call sites pin a specific value instead (unit-based sales,
// cross-substance displacement).
type ConversionContext interface {
	// GWP returns the substance's global warming potential normalized to
	// kgCO2e per kg, and whether one is configured.
	GWP() (decimal.Decimal, bool)

	// EnergyIntensity returns kwh per unit, and whether one is configured.
	EnergyIntensity() (decimal.Decimal, bool)

	// InitialCharge returns kg per unit for the named stream
	// (domestic/import/export), and whether one is configured. ConvertTo
	// passes an empty stream name for plain units<->mass conversions.
	InitialCharge(stream string) (decimal.Decimal, bool)
}

// OverridingConverterStateGetter wraps a base ConversionContext and,
// when AmortizedUnitVolume is non-nil, forces every InitialCharge
// lookup to that single kg/unit figure regardless of stream — used for
// unit-based sales writes and unit-based cross-substance displacement
// (§4.4, §4.6), where the spec requires pinning to one substance's
// initial charge rather than resolving per-stream.
type OverridingConverterStateGetter struct {
	Base                ConversionContext
	AmortizedUnitVolume *decimal.Decimal
}

func (o OverridingConverterStateGetter) GWP() (decimal.Decimal, bool) {
	return o.Base.GWP()
}

func (o OverridingConverterStateGetter) EnergyIntensity() (decimal.Decimal, bool) {
	return o.Base.EnergyIntensity()
}

func (o OverridingConverterStateGetter) InitialCharge(stream string) (decimal.Decimal, bool) {
	if o.AmortizedUnitVolume != nil {
		return *o.AmortizedUnitVolume, true
	}
	return o.Base.InitialCharge(stream)
}

// Converter performs unit conversions for the numeric core. It is a
// stateless value type: all context flows through the ConversionContext
// argument passed to ConvertTo, never stored on the Converter itself.
type Converter struct{}

// NewConverter returns a ready-to-use Converter.
func NewConverter() Converter {
	return Converter{}
}

// ConvertTo converts v to targetUnits using ctx to resolve any needed
// dimensional context. It returns ErrUnitMismatch when no conversion
// path exists, and ErrMissingContext/ErrZeroInitialCharge when a path
// exists in principle but the required context is absent or zero.
func (c Converter) ConvertTo(v Value, targetUnits string, ctx ConversionContext) (Value, error) {
	if v.Units == targetUnits {
		return v, nil
	}

	switch {
	case isMass(v.Units) && isMass(targetUnits):
		return c.convertMass(v, targetUnits), nil

	case isMass(v.Units) && isEmissions(targetUnits):
		return c.massToEmissions(v, targetUnits, ctx)
	case isEmissions(v.Units) && isMass(targetUnits):
		return c.emissionsToMass(v, targetUnits, ctx)

	case isMass(v.Units) && targetUnits == UnitUnits:
		return c.massToUnits(v, ctx, "")
	case v.Units == UnitUnits && isMass(targetUnits):
		return c.unitsToMass(v, targetUnits, ctx, "")

	case v.Units == UnitUnits && targetUnits == UnitKwh:
		return c.unitsToEnergy(v, ctx)
	case v.Units == UnitKwh && targetUnits == UnitUnits:
		return c.energyToUnits(v, ctx)

	case isMass(v.Units) && targetUnits == UnitKwh:
		units, err := c.massToUnits(v, ctx, "")
		if err != nil {
			return Value{}, err
		}
		return c.unitsToEnergy(units, ctx)
	case v.Units == UnitKwh && isMass(targetUnits):
		units, err := c.energyToUnits(v, ctx)
		if err != nil {
			return Value{}, err
		}
		return c.unitsToMass(units, targetUnits, ctx, "")

	case v.Units == UnitYears && targetUnits == UnitYears:
		return v, nil
	}

	return Value{}, fmt.Errorf("%w: %s -> %s", ErrUnitMismatch, v.Units, targetUnits)
}

// ConvertToStream is like ConvertTo but for the mass<->units family
// pins the initial charge lookup to the named stream, matching §4.4's
// per-substream initial charge rule.
func (c Converter) ConvertToStream(v Value, targetUnits string, ctx ConversionContext, stream string) (Value, error) {
	switch {
	case isMass(v.Units) && targetUnits == UnitUnits:
		return c.massToUnits(v, ctx, stream)
	case v.Units == UnitUnits && isMass(targetUnits):
		return c.unitsToMass(v, targetUnits, ctx, stream)
	default:
		return c.ConvertTo(v, targetUnits, ctx)
	}
}

func isMass(units string) bool {
	return units == UnitKg || units == UnitMt
}

func isEmissions(units string) bool {
	return units == UnitTCO2e || units == UnitKgCO2e
}

func (c Converter) convertMass(v Value, target string) Value {
	if v.Units == target {
		return v
	}
	if v.Units == UnitKg && target == UnitMt {
		return Value{Amount: v.Amount.Div(mtPerKg), Units: UnitMt}
	}
	// UnitMt -> UnitKg
	return Value{Amount: v.Amount.Mul(mtPerKg), Units: UnitKg}
}

func (c Converter) massToEmissions(v Value, target string, ctx ConversionContext) (Value, error) {
	gwp, ok := ctx.GWP()
	if !ok {
		return Value{}, fmt.Errorf("%w: emissions conversion needs GWP", ErrMissingContext)
	}
	kg := c.convertMass(v, UnitKg)
	kgco2e := kg.Amount.Mul(gwp)
	switch target {
	case UnitKgCO2e:
		return Value{Amount: kgco2e, Units: UnitKgCO2e}, nil
	case UnitTCO2e:
		return Value{Amount: kgco2e.Div(mtPerKg), Units: UnitTCO2e}, nil
	default:
		return Value{}, fmt.Errorf("%w: %s -> %s", ErrUnitMismatch, v.Units, target)
	}
}

func (c Converter) emissionsToMass(v Value, target string, ctx ConversionContext) (Value, error) {
	gwp, ok := ctx.GWP()
	if !ok || gwp.IsZero() {
		return Value{}, fmt.Errorf("%w: emissions conversion needs nonzero GWP", ErrMissingContext)
	}
	var kgco2e decimal.Decimal
	switch v.Units {
	case UnitKgCO2e:
		kgco2e = v.Amount
	case UnitTCO2e:
		kgco2e = v.Amount.Mul(mtPerKg)
	default:
		return Value{}, fmt.Errorf("%w: %s -> %s", ErrUnitMismatch, v.Units, target)
	}
	kg := Value{Amount: kgco2e.Div(gwp), Units: UnitKg}
	return c.convertMass(kg, target), nil
}

func (c Converter) massToUnits(v Value, ctx ConversionContext, stream string) (Value, error) {
	charge, ok := ctx.InitialCharge(stream)
	if !ok {
		return Value{}, fmt.Errorf("%w: mass-to-units conversion needs initial charge", ErrMissingContext)
	}
	if charge.IsZero() {
		return Value{}, ErrZeroInitialCharge
	}
	kg := c.convertMass(v, UnitKg)
	return Value{Amount: kg.Amount.Div(charge), Units: UnitUnits}, nil
}

func (c Converter) unitsToMass(v Value, target string, ctx ConversionContext, stream string) (Value, error) {
	charge, ok := ctx.InitialCharge(stream)
	if !ok {
		return Value{}, fmt.Errorf("%w: units-to-mass conversion needs initial charge", ErrMissingContext)
	}
	kg := Value{Amount: v.Amount.Mul(charge), Units: UnitKg}
	return c.convertMass(kg, target), nil
}

func (c Converter) unitsToEnergy(v Value, ctx ConversionContext) (Value, error) {
	intensity, ok := ctx.EnergyIntensity()
	if !ok {
		return Value{}, fmt.Errorf("%w: units-to-energy conversion needs energy intensity", ErrMissingContext)
	}
	return Value{Amount: v.Amount.Mul(intensity), Units: UnitKwh}, nil
}

func (c Converter) energyToUnits(v Value, ctx ConversionContext) (Value, error) {
	intensity, ok := ctx.EnergyIntensity()
	if !ok || intensity.IsZero() {
		return Value{}, fmt.Errorf("%w: energy-to-units conversion needs nonzero energy intensity", ErrMissingContext)
	}
	return Value{Amount: v.Amount.Div(intensity), Units: UnitUnits}, nil
}

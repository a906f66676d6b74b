// Package value implements the fixed-precision numeric core of the
// simulation engine: a (decimal, units) pair with arithmetic that never
// promotes to binary floating point at a decision point.
//
// Units are tokens such as kg, mt, units, tCO2e, kgCO2e, kwh, %, years,
// years^-1, kg/unit, composed with / and *. Conversion between unit
// families is implemented in convert.go.
package value

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Keep headroom through chained conversions; shopspring/decimal
	// defaults to 16 digits of division precision, below the 20-digit
	// floor this engine requires.
	decimal.DivisionPrecision = 24
}

// Value is an exact decimal amount carrying its unit string. Value is a
// plain data type: arithmetic returns a new Value rather than mutating
// the receiver.
type Value struct {
	Amount decimal.Decimal
	Units  string
}

// Zero returns the zero value in the given units.
func Zero(units string) Value {
	return Value{Amount: decimal.Zero, Units: units}
}

// New builds a Value from a float64. Only use at the boundary where
// primitive inputs arrive from the script interpreter (§6.1); internal
// arithmetic always stays in decimal.Decimal.
func New(amount float64, units string) Value {
	return Value{Amount: decimal.NewFromFloat(amount), Units: units}
}

// NewFromDecimal builds a Value directly from a decimal.Decimal.
func NewFromDecimal(amount decimal.Decimal, units string) Value {
	return Value{Amount: amount, Units: units}
}

// Float64 returns the amount as a float64, for display and serialization
// only. Never feed this back into engine decision logic.
func (v Value) Float64() float64 {
	f, _ := v.Amount.Float64()
	return f
}

// IsZero reports whether the amount is exactly zero.
func (v Value) IsZero() bool {
	return v.Amount.IsZero()
}

// IsNegative reports whether the amount is strictly less than zero.
func (v Value) IsNegative() bool {
	return v.Amount.IsNegative()
}

// Sign returns -1, 0, or 1.
func (v Value) Sign() int {
	return v.Amount.Sign()
}

// Add returns v + other. Panics if units differ; callers must convert
// first via ConvertTo — this keeps the invariant that arithmetic never
// silently crosses unit families.
func (v Value) Add(other Value) Value {
	v.mustMatchUnits(other)
	return Value{Amount: v.Amount.Add(other.Amount), Units: v.Units}
}

// Sub returns v - other, same-units rule as Add.
func (v Value) Sub(other Value) Value {
	v.mustMatchUnits(other)
	return Value{Amount: v.Amount.Sub(other.Amount), Units: v.Units}
}

// Neg returns -v.
func (v Value) Neg() Value {
	return Value{Amount: v.Amount.Neg(), Units: v.Units}
}

// ClampNonNegative floors the amount at zero, preserving units. Used
// wherever a recalc step must enforce invariant 1 (no negative streams
// outside an explicitly-allowed displacement path).
func (v Value) ClampNonNegative() (Value, bool) {
	if v.Amount.IsNegative() {
		return Value{Amount: decimal.Zero, Units: v.Units}, true
	}
	return v, false
}

// Scale multiplies the amount by a dimensionless decimal factor,
// preserving units. Used for percentage-of-value computations once the
// percent has already been resolved to a plain ratio.
func (v Value) Scale(factor decimal.Decimal) Value {
	return Value{Amount: v.Amount.Mul(factor), Units: v.Units}
}

// ScaleFloat is Scale taking a float64 ratio, for convenience at call
// sites that already hold a plain ratio (e.g. a pct/100 split factor).
func (v Value) ScaleFloat(factor float64) Value {
	return v.Scale(decimal.NewFromFloat(factor))
}

// Equal reports exact equality of amount and units.
func (v Value) Equal(other Value) bool {
	return v.Units == other.Units && v.Amount.Equal(other.Amount)
}

// String renders "<value> <units>", the wire format used by the CSV
// serializer (§6.2).
func (v Value) String() string {
	return fmt.Sprintf("%s %s", v.Amount.String(), v.Units)
}

func (v Value) mustMatchUnits(other Value) {
	if v.Units != other.Units {
		panic(fmt.Sprintf("value: mismatched units in arithmetic: %q vs %q", v.Units, other.Units))
	}
}

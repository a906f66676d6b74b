package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/value"
)

// Recovery/yield/induction stage names (§3, §6.1).
const (
	StageEOL      = "EOL"
	StageRecharge = "RECHARGE"
)

// assumeMode values (§3).
const (
	AssumeModeContinued    = "continued"
	AssumeModeOnlyRecharge = "onlyRecharge"
)

var hundred = decimal.NewFromInt(100)

// Parameterization holds the per-(application, substance) configuration
// and stepwise bookkeeping described in §3 "Parameterization". It is
// not time-keyed in the sense of per-year history; commands mutate it
// in place, and ResetStateAtTimestep clears the per-step bookkeeping at
// each year boundary.
type Parameterization struct {
	// InitialCharge is kg/unit, keyed by sales stream name (domestic,
	// import, export).
	InitialCharge map[string]decimal.Decimal

	// GHGIntensity is tCO2e/mt (nil means unconfigured).
	GHGIntensity *decimal.Decimal

	// EnergyIntensity is kwh/unit (nil means unconfigured).
	EnergyIntensity *decimal.Decimal

	// RechargeRate is the accumulated population fraction serviced this
	// year, as a plain ratio (not ×100).
	RechargeRate decimal.Decimal

	// RechargeIntensity is kg/unit, weight-averaged across accumulateRecharge calls.
	RechargeIntensity decimal.Decimal

	// RetirementRate is the annual hazard rate as a plain ratio.
	RetirementRate decimal.Decimal

	// Recovery, Yield, Induction are keyed by stage (EOL, RECHARGE), as
	// plain ratios. Induction defaults to 1 (100%) per stage.
	Recovery  map[string]decimal.Decimal
	Yield     map[string]decimal.Decimal
	Induction map[string]decimal.Decimal

	// HasReplacement: whether retirement implies automatic unit replacement.
	HasReplacement bool

	// AssumeMode controls sales carry-over when no fresh command arrives this year.
	AssumeMode string

	// LastSpecifiedValue remembers, per stream, the most recent value
	// the user explicitly set (drives % cap/floor/change semantics and
	// carry-over).
	LastSpecifiedValue map[string]value.Value

	// Enabled tracks which enableable streams have been enable()'d.
	Enabled map[string]bool

	// Stepwise cumulative bases (§3, §4.4.2), reset selectively at year end.
	RechargeBasePopulation   decimal.Decimal
	AppliedRechargeAmount    decimal.Decimal
	RetirementBasePopulation decimal.Decimal
	AppliedRetirementAmount  decimal.Decimal

	RecyclingCalculatedThisStep bool
	RetireCalculatedThisStep    bool
	HasReplacementThisStep      bool
	SalesIntentFreshlySet       bool
}

// NewParameterization returns a zero-initialized Parameterization with
// induction defaulted to 100% per stage, per §3.
func NewParameterization() *Parameterization {
	return &Parameterization{
		InitialCharge: make(map[string]decimal.Decimal),
		Recovery:      make(map[string]decimal.Decimal),
		Yield:         make(map[string]decimal.Decimal),
		Induction: map[string]decimal.Decimal{
			StageEOL:      decimal.NewFromInt(1),
			StageRecharge: decimal.NewFromInt(1),
		},
		AssumeMode:          AssumeModeContinued,
		LastSpecifiedValue:  make(map[string]value.Value),
		Enabled:             make(map[string]bool),
	}
}

// AccumulateRecharge implements §4.3's accumulateRecharge: if previously
// unset, store; otherwise rates add and intensities weight-average by
// absolute rate so corrective negative adjustments still merge.
func (p *Parameterization) AccumulateRecharge(rate decimal.Decimal, intensity decimal.Decimal) {
	if p.RechargeRate.IsZero() && p.RechargeIntensity.IsZero() {
		p.RechargeRate = rate
		p.RechargeIntensity = intensity
		return
	}

	r1, r2 := p.RechargeRate.Abs(), rate.Abs()
	denom := r1.Add(r2)
	newRate := p.RechargeRate.Add(rate)
	if denom.IsZero() {
		p.RechargeRate = newRate
		return
	}
	weighted := r1.Mul(p.RechargeIntensity).Add(r2.Mul(intensity)).Div(denom)
	p.RechargeRate = newRate
	p.RechargeIntensity = weighted
}

// SetRecoveryRate is additive within a year (§4.3).
func (p *Parameterization) SetRecoveryRate(rate decimal.Decimal, stage string) {
	p.Recovery[stage] = p.Recovery[stage].Add(rate)
}

// SetYieldRate averages with any prior non-zero value within the same
// year (§4.3, §9 open question: acknowledged approximation, preserved
// to match existing behavior rather than weighted by recovery).
func (p *Parameterization) SetYieldRate(rate decimal.Decimal, stage string) {
	existing, ok := p.Yield[stage]
	if !ok || existing.IsZero() {
		p.Yield[stage] = rate
		return
	}
	p.Yield[stage] = existing.Add(rate).Div(decimal.NewFromInt(2))
}

// SetInductionRate validates and stores the induction rate for a stage.
func (p *Parameterization) SetInductionRate(rate decimal.Decimal, stage string) error {
	if rate.LessThan(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: got %s", ErrInvalidInductionRate, rate.Mul(hundred).String()+"%")
	}
	p.Induction[stage] = rate
	return nil
}

// MarkStreamAsEnabled flips a stream enabled for the remainder of the
// year; once true in a step it stays true (§4.3).
func (p *Parameterization) MarkStreamAsEnabled(stream string) {
	p.Enabled[stream] = true
}

// IsEnabled reports whether stream has been enabled.
func (p *Parameterization) IsEnabled(stream string) bool {
	return p.Enabled[stream]
}

// ResetStateAtTimestep clears per-step flags, the recharge rate and
// intensity accumulators, and the per-stage recovery/yield rates, called
// at the year-transition boundary (§4.7 step 3). Enabled flags, initial
// charge, GWP, energy intensity, and the retirement rate persist across
// years.
func (p *Parameterization) ResetStateAtTimestep() {
	p.RechargeRate = decimal.Zero
	p.RechargeIntensity = decimal.Zero
	p.Recovery = make(map[string]decimal.Decimal)
	p.Yield = make(map[string]decimal.Decimal)

	p.RecyclingCalculatedThisStep = false
	p.RetireCalculatedThisStep = false
	p.HasReplacementThisStep = false
	p.SalesIntentFreshlySet = false
}

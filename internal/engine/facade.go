// Package engine implements the simulation engine core: the stream
// table and parameterization (C4), the keyed simulation state (C5), the
// recalc pipeline (C6), the public Engine facade (C7), cross-substance
// displacement (§4.6), year transition (C9), and result serialization (C8).
package engine

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/scope"
	"github.com/example/kigalisim/internal/value"
)

// YearMatcher is (start?, end?) with optional "onwards" (§6.1). A nil
// Start/End means unbounded on that side.
type YearMatcher struct {
	Start   *int
	End     *int
	Onwards bool
}

// AlwaysMatch is the zero-value matcher: always active.
var AlwaysMatch = YearMatcher{}

// Matches reports whether year falls within the matcher's inclusive range.
func (m YearMatcher) Matches(year int) bool {
	if m.Start != nil && year < *m.Start {
		return false
	}
	if !m.Onwards && m.End != nil && year > *m.End {
		return false
	}
	return true
}

// DisplacementType selects how a cap/floor/replace displacement amount
// is computed (§4.6).
type DisplacementType int

const (
	// DisplacementEquivalent infers the basis from the amount's units.
	DisplacementEquivalent DisplacementType = iota
	// DisplacementByVolume subtracts the same kg amount from the target.
	DisplacementByVolume
	// DisplacementByUnits converts through each substance's own initial charge.
	DisplacementByUnits
)

// Option configures a new Engine.
type Option func(*Engine)

// WithLogger injects a structured logger; warnings (negative clamping,
// yield-merge approximation) are emitted through it at slog.LevelWarn,
// never written directly to stderr (§6.3, §7).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches an optional Prometheus-backed metrics hook.
func WithMetrics(m *EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the single-threaded orchestrator implementing the
// user-level operations (C7). It owns the current scope, the
// simulation state, and its ambient logger/metrics.
type Engine struct {
	state   *SimulationState
	scope   scope.Scope
	vars    *scope.Vars
	logger  *slog.Logger
	metrics *EngineMetrics
	convert value.Converter

	startYear int
	endYear   int

	// runID identifies this Engine instance across the result records
	// it produces, replacing the teacher's
	// fmt.Sprintf("scenario-%d", time.Now().UnixNano()) pattern
	// (scenarios.Scenario.ID) with a proper UUID.
	runID uuid.UUID

	// lastBankKg/lastBankTco2e remember the previous Results() call's
	// bank figures per substance so bankChange* can be reported without
	// SimulationState keeping per-year history (§4.8).
	lastBankKg    map[substanceKey]decimal.Decimal
	lastBankTco2e map[substanceKey]decimal.Decimal
}

// NewEngine constructs an Engine covering [startYear, endYear] inclusive.
func NewEngine(startYear, endYear int, opts ...Option) *Engine {
	e := &Engine{
		state:     NewSimulationState(startYear),
		vars:      scope.NewVars(),
		logger:    slog.New(slog.DiscardHandler),
		convert:   value.NewConverter(),
		startYear: startYear,
		endYear:   endYear,
		runID:     uuid.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentYear implements scope.YearProvider.
func (e *Engine) CurrentYear() int { return e.state.CurrentYear() }

// StartYear implements scope.YearProvider.
func (e *Engine) StartYear() int { return e.startYear }

// Scope returns the engine's current scope.
func (e *Engine) Scope() scope.Scope { return e.scope }

// Substances returns every (application, substance) pair ensured so
// far, in first-ensured order.
func (e *Engine) Substances() []struct{ App, Substance string } {
	return e.state.Substances()
}

// SetStanza navigates to a named stanza (policy/scenario block).
func (e *Engine) SetStanza(name string) {
	e.scope = scope.New(name, "", "")
}

// SetApplication navigates to a named application within the current stanza.
func (e *Engine) SetApplication(name string) {
	e.scope = e.scope.WithApplication(name)
}

// SetSubstance navigates to a named substance within the current
// application. checkValid=true fails on an unregistered pair; otherwise
// the substance is ensured (§4.2, §3 Lifecycle).
func (e *Engine) SetSubstance(name string, checkValid bool) error {
	if checkValid && !e.state.HasSubstance(e.scope.Application, name) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, e.scope.Application, name)
	}
	e.state.EnsureSubstance(e.scope.Application, name)
	e.scope = e.scope.WithSubstance(name)
	return nil
}

func (e *Engine) requireSubstance() (*Parameterization, error) {
	if !e.scope.IsSubstanceScope() {
		return nil, ErrNoSubstanceSelected
	}
	p := e.state.Parameterization(e.scope.Application, e.scope.Substance)
	if p == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, e.scope.Application, e.scope.Substance)
	}
	return p, nil
}

func (e *Engine) kit() RecalcKit {
	kit := NewRecalcKit(e.state)
	kit.Warn = e.warn
	return kit
}

// Enable marks a sales stream enableable for subsequent non-zero writes.
func (e *Engine) Enable(stream string, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	if !IsKnownStream(stream) {
		return fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}
	p.MarkStreamAsEnabled(stream)
	e.countOp("enable")
	return nil
}

// SetStream is the user-visible write (§4.6 setStream): for equipment
// it delegates to the equipment-driven recalc chain, for sales it
// splits via distribution, else it updates with recycling netting.
// After the write it records lastSpecifiedValue and runs the recalc
// chain matching the stream's class.
func (e *Engine) SetStream(name string, v value.Value, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	if !IsKnownStream(name) {
		return fmt.Errorf("%w: %s", ErrUnknownStream, name)
	}

	converted, err := e.resolveSalesValue(p, name, v)
	if err != nil {
		return err
	}

	subtractRecycling := v.Units != value.UnitUnits && (name == StreamDomestic || name == StreamImport)
	if err := e.state.Update(StreamUpdate{
		App: e.scope.Application, Substance: e.scope.Substance,
		Stream: name, Value: converted, SubtractRecycling: subtractRecycling,
	}); err != nil {
		return err
	}

	lastSpecified := v
	if v.Units == value.UnitPercent {
		// Store the resolved absolute value, not the raw percent: a
		// later base lookup (here or in cap/floor) converts
		// lastSpecifiedValue directly and has no case for "%".
		lastSpecified = converted
	}
	p.LastSpecifiedValue[name] = lastSpecified
	if v.Units == value.UnitUnits {
		p.SalesIntentFreshlySet = true
	}

	e.countOp("set")
	return e.runChainForStream(name)
}

// resolveSalesValue converts a units-denominated sales write through an
// overriding state-getter pinned to the stream's initial charge (§4.4
// fifth bullet), failing with ErrZeroInitialCharge when the charge is zero.
// A percent write resolves against the current year's value first (§4.5
// tie-break policy), the same lastSpecifiedValue-or-current base
// ChangeStream uses.
func (e *Engine) resolveSalesValue(p *Parameterization, stream string, v value.Value) (value.Value, error) {
	if v.Units == value.UnitPercent {
		return e.resolvePercentOfCurrent(p, stream, v)
	}

	if v.Units != value.UnitUnits || !(stream == StreamDomestic || stream == StreamImport || stream == StreamExport || stream == StreamSales) {
		target := Streams[stream].CanonicalUnits
		if target == "" {
			return v, nil
		}
		ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
		return e.convert.ConvertTo(v, target, ctx)
	}

	charge, ok := p.InitialCharge[stream]
	if !ok {
		charge, ok = chargeForSalesStreams(p)
	}
	if !ok {
		return value.Value{}, fmt.Errorf("%w: no initial charge configured for %s", value.ErrMissingContext, stream)
	}
	if charge.IsZero() {
		return value.Value{}, fmt.Errorf("%w: initial charge for %s is zero", value.ErrZeroInitialCharge, stream)
	}
	override := value.OverridingConverterStateGetter{
		Base:                e.kit().contextFor(e.scope.Application, e.scope.Substance),
		AmortizedUnitVolume: &charge,
	}
	newUnitMass, err := e.convert.ConvertTo(v, value.UnitKg, override)
	if err != nil {
		return value.Value{}, err
	}

	if stream == StreamDomestic || stream == StreamImport || stream == StreamExport {
		demand := e.virginRechargeDemand(p)
		newUnitMass = value.NewFromDecimal(newUnitMass.Amount.Add(demand), value.UnitKg)
	}
	return newUnitMass, nil
}

// resolvePercentOfCurrent resolves a "%" set() write into an absolute
// value (§4.5 tie-break policy: "% on set/change means of current
// year's value"), using lastSpecifiedValue as the base when the stream
// was already written this year, else the stream's current value.
func (e *Engine) resolvePercentOfCurrent(p *Parameterization, stream string, v value.Value) (value.Value, error) {
	current, err := e.state.GetStream(e.scope.Application, e.scope.Substance, stream)
	if err != nil {
		return value.Value{}, err
	}

	base := current
	if lsv, ok := p.LastSpecifiedValue[stream]; ok {
		ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
		converted, err := e.convert.ConvertTo(lsv, current.Units, ctx)
		if err != nil {
			return value.Value{}, err
		}
		base = converted
	}
	ratio := v.Amount.Div(hundred)
	return base.Scale(ratio), nil
}

// virginRechargeDemand computes the recharge mass not already covered by
// recharge-stage recycling (§4.5 recalcPopulationChange's rechargeDemand
// minus recycleRecharge, floored at zero). A units-specified sales write
// only carries new-unit mass through the initial-charge conversion above,
// so this is added on top to reflect total demand (§8 seed scenario 3).
func (e *Engine) virginRechargeDemand(p *Parameterization) decimal.Decimal {
	priorEquipment, _ := e.state.GetStream(e.scope.Application, e.scope.Substance, StreamPriorEquipment)
	rechargeDemand := priorEquipment.Amount.Mul(p.RechargeRate).Mul(p.RechargeIntensity)
	recycleRecharge := e.state.rawStream(e.scope.Application, e.scope.Substance, StreamRecycleRecharge)
	demand := rechargeDemand.Sub(recycleRecharge.Amount)
	if demand.IsNegative() {
		return decimal.Zero
	}
	return demand
}

func (e *Engine) runChainForStream(stream string) error {
	kit := e.kit()
	switch stream {
	case StreamEquipment:
		return runChain(kit, e.scope, chainForSetEquipment())
	default:
		return runChain(kit, e.scope, chainForSetSalesStream())
	}
}

// ChangeStream applies a delta, absolute or percent, to stream (§4.6
// changeStream). Percent resolves against lastSpecifiedValue if
// present, else the current value in its own units.
func (e *Engine) ChangeStream(stream string, delta value.Value, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}

	current, err := e.state.GetStream(e.scope.Application, e.scope.Substance, stream)
	if err != nil {
		return err
	}

	ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)

	var next value.Value
	if delta.Units == value.UnitPercent {
		base := current
		if lsv, ok := p.LastSpecifiedValue[stream]; ok {
			converted, err := e.convert.ConvertTo(lsv, current.Units, ctx)
			if err != nil {
				return err
			}
			base = converted
		}
		ratio := delta.Amount.Div(hundred)
		next = current.Add(base.Scale(ratio))
	} else {
		convertedDelta, err := e.convert.ConvertTo(delta, current.Units, ctx)
		if err != nil {
			return err
		}
		next = current.Add(convertedDelta)
	}

	e.countOp("change")
	return e.SetStream(stream, next, AlwaysMatch)
}

// Recharge accumulates the recharge rate/intensity, then runs retirement,
// population change, and consumption (chainForRecharge). Sales streams are
// not re-derived by this operation.
func (e *Engine) Recharge(volumeRate decimal.Decimal, intensity value.Value, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}

	ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
	kgPerUnit, err := e.convert.ConvertTo(intensity, value.UnitKg, ctx)
	if err != nil {
		return err
	}
	p.AccumulateRecharge(volumeRate, kgPerUnit.Amount)

	e.countOp("recharge")
	return runChain(e.kit(), e.scope, chainForRecharge())
}

// Retire sets the retirement rate, recalculates retirement, and
// conditionally refreshes implicit recharge if a sales stream was
// unit-specified (§4.6 retire).
func (e *Engine) Retire(rate decimal.Decimal, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	p.RetirementRate = rate

	e.countOp("retire")
	if err := runChain(e.kit(), e.scope, chainForRetire()); err != nil {
		return err
	}
	if p.SalesIntentFreshlySet {
		return runChain(e.kit(), e.scope, []RecalcStep{recalcSales})
	}
	return nil
}

// Recycle accumulates recovery/yield for stage, then recalculates sales,
// population change, and consumption (§4.6 recycle).
func (e *Engine) Recycle(recovery, yield decimal.Decimal, matcher YearMatcher, stage string) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	if prior, ok := p.Yield[stage]; ok && !prior.IsZero() {
		e.warn("recycle: yield rate averaged with the prior rate for this stage", "app", e.scope.Application, "substance", e.scope.Substance, "stage", stage)
	}
	p.SetRecoveryRate(recovery, stage)
	p.SetYieldRate(yield, stage)

	e.countOp("recycle")
	return runChain(e.kit(), e.scope, chainForRecycle())
}

// SetInductionRate validates 0%<=rate<=100% and stores it for stage (§4.6).
func (e *Engine) SetInductionRate(rate decimal.Decimal, stage string) error {
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	return p.SetInductionRate(rate, stage)
}

// Equals sets GWP or energy intensity depending on v's units, then
// triggers an emissions recalc (§4.6 equals).
func (e *Engine) Equals(v value.Value, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}

	switch v.Units {
	case value.UnitKgCO2e, value.UnitTCO2e:
		// tCO2e/mt and kgCO2e/kg are numerically identical ratios.
		gwp := v.Amount
		p.GHGIntensity = &gwp
	case value.UnitKwh:
		intensity := v.Amount
		p.EnergyIntensity = &intensity
	default:
		return fmt.Errorf("%w: equals() needs a GWP or energy-intensity unit, got %s", value.ErrUnitMismatch, v.Units)
	}

	e.countOp("equals")
	return runChain(e.kit(), e.scope, chainForEquals())
}

// InitialCharge sets the per-unit mass placed into new or imported
// units for stream (§3 Parameterization.initialCharge).
func (e *Engine) InitialCharge(v value.Value, stream string, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
	kg, err := e.convert.ConvertTo(v, value.UnitKg, ctx)
	if err != nil {
		return err
	}
	p.InitialCharge[stream] = kg.Amount
	return nil
}

func (e *Engine) countOp(name string) {
	if e.metrics != nil {
		e.metrics.ObserveOperation(name)
	}
}

// warn logs a structured warning and bumps the warnings counter (§7:
// negative clamping, yield-merge approximation).
func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
	if e.metrics != nil {
		e.metrics.ObserveWarning()
	}
}

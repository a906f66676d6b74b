package engine

import (
	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/scope"
	"github.com/example/kigalisim/internal/value"
)

// RecalcKit bundles borrowed handles to the state and unit converter
// for the duration of one operation. It is never stored long-term
// (§9: avoids cyclic references between state and recalc strategies).
type RecalcKit struct {
	State   *SimulationState
	Convert value.Converter
	// Warn reports a negative-stream clamp or other recoverable anomaly
	// (§7). Nil is safe to call through via the warn helper below.
	Warn func(msg string, args ...any)
}

// NewRecalcKit assembles a kit around state for one operation.
func NewRecalcKit(state *SimulationState) RecalcKit {
	return RecalcKit{State: state, Convert: value.NewConverter()}
}

// warn reports through kit.Warn if one was wired, otherwise it is a no-op.
func (kit RecalcKit) warn(msg string, args ...any) {
	if kit.Warn != nil {
		kit.Warn(msg, args...)
	}
}

// RecalcStep is one idempotent recompute strategy, operating on the
// substance named by sc. Chains are built as []RecalcStep by the small
// composer functions below rather than a class hierarchy (§9).
type RecalcStep func(kit RecalcKit, sc scope.Scope) error

// contextFor returns the ConversionContext for one substance, resolved
// against the kit's state.
func (kit RecalcKit) contextFor(app, substance string) value.ConversionContext {
	return substanceContext{state: kit.State, app: app, substance: substance}
}

type substanceContext struct {
	state             *SimulationState
	app, substance string
}

func (c substanceContext) GWP() (decimal.Decimal, bool) {
	p := c.state.Parameterization(c.app, c.substance)
	if p == nil || p.GHGIntensity == nil {
		return decimal.Decimal{}, false
	}
	return *p.GHGIntensity, true
}

func (c substanceContext) EnergyIntensity() (decimal.Decimal, bool) {
	p := c.state.Parameterization(c.app, c.substance)
	if p == nil || p.EnergyIntensity == nil {
		return decimal.Decimal{}, false
	}
	return *p.EnergyIntensity, true
}

func (c substanceContext) InitialCharge(stream string) (decimal.Decimal, bool) {
	p := c.state.Parameterization(c.app, c.substance)
	if p == nil {
		return decimal.Decimal{}, false
	}
	if stream == "" {
		// No stream named (a plain units<->mass conversion): use the
		// charge shared by the sales streams.
		return chargeForSalesStreams(p)
	}
	v, ok := p.InitialCharge[stream]
	return v, ok
}

// chargeForSalesStreams picks the initial charge used to convert sales
// mass into new units: domestic's if configured, else import's, else
// export's. Matches the common case where all enabled streams share a
// single declared charge.
func chargeForSalesStreams(p *Parameterization) (decimal.Decimal, bool) {
	for _, stream := range []string{StreamDomestic, StreamImport, StreamExport} {
		if v, ok := p.InitialCharge[stream]; ok && !v.IsZero() {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}

// recalcRetire computes retired units from retirementRate × priorEquipment
// (using the cumulative base/applied bookkeeping to avoid double-counting
// within a year), then EOL recycling and EOL induction (§4.5 recalcRetire).
func recalcRetire(kit RecalcKit, sc scope.Scope) error {
	p := kit.State.Parameterization(sc.Application, sc.Substance)
	if p == nil {
		return ErrUnknownSubstance
	}
	if p.RetireCalculatedThisStep {
		return nil
	}

	priorEquipment, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamPriorEquipment)
	retiredUnits := priorEquipment.Amount.Mul(p.RetirementRate)

	p.RetirementBasePopulation = priorEquipment.Amount
	p.AppliedRetirementAmount = retiredUnits
	p.RetireCalculatedThisStep = true

	kit.State.setRaw(sc.Application, sc.Substance, StreamRetired, value.NewFromDecimal(retiredUnits, value.UnitUnits))

	charge, hasCharge := chargeForSalesStreams(p)
	if !hasCharge || retiredUnits.IsZero() {
		kit.State.setRaw(sc.Application, sc.Substance, StreamRecycleEol, value.Zero(value.UnitKg))
		kit.State.setRaw(sc.Application, sc.Substance, StreamInductionEol, value.Zero(value.UnitKg))
		return nil
	}

	retiredKg := retiredUnits.Mul(charge)
	recovery := p.Recovery[StageEOL]
	yield := p.Yield[StageEOL]
	recycleEol := retiredKg.Mul(recovery).Mul(yield)

	priorRecycleRecharge := kit.State.rawStream(sc.Application, sc.Substance, StreamRecycleRecharge)
	if err := kit.State.Update(StreamUpdate{App: sc.Application, Substance: sc.Substance, Stream: StreamRecycle, Value: value.NewFromDecimal(recycleEol, value.UnitKg)}); err != nil {
		return err
	}
	// StreamUpdate for "recycle" re-splits recharge/eol proportionally;
	// since this call path only ever contributes EOL recycling, pin the
	// result directly to recycleEol to avoid bleeding into recharge.
	kit.State.setRaw(sc.Application, sc.Substance, StreamRecycleRecharge, priorRecycleRecharge)
	kit.State.setRaw(sc.Application, sc.Substance, StreamRecycleEol, value.NewFromDecimal(recycleEol, value.UnitKg))

	induction := p.Induction[StageEOL]
	inductionEol := recycleEol.Mul(induction)
	kit.State.setRaw(sc.Application, sc.Substance, StreamInductionEol, value.NewFromDecimal(inductionEol, value.UnitKg))

	return nil
}

// recalcPopulationChange derives newEquipment from the sales-driven
// direction: given domestic/import/recycle already written, compute how
// much mass goes to recharge demand (storing implicitRecharge) versus
// new-unit initial charges, then update equipment (§4.5 recalcPopulationChange).
func recalcPopulationChange(kit RecalcKit, sc scope.Scope) error {
	p := kit.State.Parameterization(sc.Application, sc.Substance)
	if p == nil {
		return ErrUnknownSubstance
	}

	priorEquipment, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamPriorEquipment)
	rechargeDemand := priorEquipment.Amount.Mul(p.RechargeRate).Mul(p.RechargeIntensity)

	recycleRecharge := kit.State.rawStream(sc.Application, sc.Substance, StreamRecycleRecharge)
	virginRechargeDemand := rechargeDemand.Sub(recycleRecharge.Amount)
	if virginRechargeDemand.IsNegative() {
		kit.warn("recalcPopulationChange: implicitRecharge clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", virginRechargeDemand.String())
		virginRechargeDemand = decimal.Zero
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamImplicitRecharge, value.NewFromDecimal(virginRechargeDemand, value.UnitKg))

	inductionRecharge := recycleRecharge.Amount.Mul(p.Induction[StageRecharge])
	kit.State.setRaw(sc.Application, sc.Substance, StreamInductionRecharge, value.NewFromDecimal(inductionRecharge, value.UnitKg))

	totalSales, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamSales)
	massForNewUnits := totalSales.Amount.Sub(rechargeDemand)
	if massForNewUnits.IsNegative() {
		kit.warn("recalcPopulationChange: massForNewUnits clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", massForNewUnits.String())
		massForNewUnits = decimal.Zero
	}

	charge, hasCharge := chargeForSalesStreams(p)
	var newEquipment decimal.Decimal
	if hasCharge && !charge.IsZero() {
		newEquipment = massForNewUnits.Div(charge)
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamNewEquipment, value.NewFromDecimal(newEquipment, value.UnitUnits))

	retired := kit.State.rawStream(sc.Application, sc.Substance, StreamRetired)
	equipment := priorEquipment.Amount.Add(newEquipment).Sub(retired.Amount)
	if equipment.IsNegative() {
		kit.warn("recalcPopulationChange: equipment clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", equipment.String())
		equipment = decimal.Zero
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamEquipment, value.NewFromDecimal(equipment, value.UnitUnits))

	return recalcRechargeEmissions(kit, sc)
}

// recalcSales derives implied virgin sales from an equipment-driven
// write: given a newly set equipment level, back out the new units
// created this year and the resulting domestic/import split (§4.5
// recalcSales, the equipment-driven direction).
func recalcSales(kit RecalcKit, sc scope.Scope) error {
	p := kit.State.Parameterization(sc.Application, sc.Substance)
	if p == nil {
		return ErrUnknownSubstance
	}

	priorEquipment, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamPriorEquipment)
	equipment, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamEquipment)
	retired := kit.State.rawStream(sc.Application, sc.Substance, StreamRetired)

	newEquipment := equipment.Amount.Add(retired.Amount).Sub(priorEquipment.Amount)
	if newEquipment.IsNegative() {
		kit.warn("recalcSales: newEquipment clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", newEquipment.String())
		newEquipment = decimal.Zero
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamNewEquipment, value.NewFromDecimal(newEquipment, value.UnitUnits))

	charge, hasCharge := chargeForSalesStreams(p)
	var newUnitMass decimal.Decimal
	if hasCharge {
		newUnitMass = newEquipment.Mul(charge)
	}

	rechargeDemand := priorEquipment.Amount.Mul(p.RechargeRate).Mul(p.RechargeIntensity)
	recycleRecharge := kit.State.rawStream(sc.Application, sc.Substance, StreamRecycleRecharge)
	virginRechargeDemand := rechargeDemand.Sub(recycleRecharge.Amount)
	if virginRechargeDemand.IsNegative() {
		kit.warn("recalcSales: implicitRecharge clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", virginRechargeDemand.String())
		virginRechargeDemand = decimal.Zero
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamImplicitRecharge, value.NewFromDecimal(virginRechargeDemand, value.UnitKg))

	totalVirgin := newUnitMass.Add(virginRechargeDemand)
	dist := DefaultDistribution(kit.State, sc.Application, sc.Substance, p)

	return kit.State.Update(StreamUpdate{
		App: sc.Application, Substance: sc.Substance, Stream: StreamSales,
		Value:        value.NewFromDecimal(totalVirgin, value.UnitKg),
		Distribution: &dist,
	})
}

// recalcConsumption converts virgin and recycled streams to tCO2e via
// the substance's GWP (§4.5 recalcConsumption). Results are not stored
// as separate streams — GWP-denominated consumption is produced
// on-demand by the result serializer (result.go), which calls this same
// converter. When no GWP is configured this step returns nil without
// converting anything; once one is, it runs the conversions so that a
// failing conversion path surfaces during the command rather than only at
// serialization time. Nothing is stored.
func recalcConsumption(kit RecalcKit, sc scope.Scope) error {
	ctx := kit.contextFor(sc.Application, sc.Substance)
	if _, ok := ctx.GWP(); !ok {
		return nil // GWP not configured yet; consumption simply reads as zero until `equals` runs.
	}
	domestic, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamDomestic)
	_, err := kit.Convert.ConvertTo(domestic, value.UnitTCO2e, ctx)
	return err
}

// recalcRechargeEmissions refreshes rechargeEmissions/eolEmissions from
// the current GWP (§4.5 recalcRechargeEmissions / propagateToEolEmissions).
func recalcRechargeEmissions(kit RecalcKit, sc scope.Scope) error {
	p := kit.State.Parameterization(sc.Application, sc.Substance)
	if p == nil {
		return ErrUnknownSubstance
	}
	ctx := kit.contextFor(sc.Application, sc.Substance)
	if _, ok := ctx.GWP(); !ok {
		return nil
	}

	priorEquipment, _ := kit.State.GetStream(sc.Application, sc.Substance, StreamPriorEquipment)
	rechargeDemandKg := priorEquipment.Amount.Mul(p.RechargeRate).Mul(p.RechargeIntensity)
	rechargeTco2e, err := kit.Convert.ConvertTo(value.NewFromDecimal(rechargeDemandKg, value.UnitKg), value.UnitTCO2e, ctx)
	if err != nil {
		return err
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamRechargeEmissions, rechargeTco2e)

	return propagateToEolEmissions(kit, sc)
}

func propagateToEolEmissions(kit RecalcKit, sc scope.Scope) error {
	p := kit.State.Parameterization(sc.Application, sc.Substance)
	if p == nil {
		return ErrUnknownSubstance
	}
	ctx := kit.contextFor(sc.Application, sc.Substance)
	if _, ok := ctx.GWP(); !ok {
		return nil
	}

	retired := kit.State.rawStream(sc.Application, sc.Substance, StreamRetired)
	charge, hasCharge := chargeForSalesStreams(p)
	if !hasCharge {
		return nil
	}
	retiredKg := retired.Amount.Mul(charge)
	recycleEol := kit.State.rawStream(sc.Application, sc.Substance, StreamRecycleEol)
	leakedKg := retiredKg.Sub(recycleEol.Amount)
	if leakedKg.IsNegative() {
		kit.warn("propagateToEolEmissions: leakedKg clamped to zero", "app", sc.Application, "substance", sc.Substance, "value", leakedKg.String())
		leakedKg = decimal.Zero
	}

	eolTco2e, err := kit.Convert.ConvertTo(value.NewFromDecimal(leakedKg, value.UnitKg), value.UnitTCO2e, ctx)
	if err != nil {
		return err
	}
	kit.State.setRaw(sc.Application, sc.Substance, StreamEolEmissions, eolTco2e)
	return nil
}

// Chain composers (§9: small fixed set of variants, no inheritance).

func chainForSetSalesStream() []RecalcStep {
	return []RecalcStep{recalcRetire, recalcPopulationChange, recalcConsumption}
}

func chainForSetEquipment() []RecalcStep {
	return []RecalcStep{recalcRetire, recalcSales, recalcConsumption}
}

func chainForRecharge() []RecalcStep {
	return []RecalcStep{recalcRetire, recalcPopulationChange, recalcConsumption}
}

func chainForRetire() []RecalcStep {
	return []RecalcStep{recalcRetire, recalcPopulationChange}
}

func chainForRecycle() []RecalcStep {
	return []RecalcStep{recalcPopulationChange, recalcConsumption}
}

func chainForEquals() []RecalcStep {
	return []RecalcStep{recalcRechargeEmissions, recalcConsumption}
}

func runChain(kit RecalcKit, sc scope.Scope, steps []RecalcStep) error {
	for _, step := range steps {
		if err := step(kit, sc); err != nil {
			return err
		}
	}
	return nil
}

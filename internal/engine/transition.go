package engine

import (
	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/value"
)

// carriedYearEnd snapshots the pre-mutation recycle/induction totals and
// sales distribution for one substance, captured before step 2 begins so
// that steps 4/5 redistribute using last year's shape rather than a
// shape already reset by ResetStateAtTimestep (§4.7).
type carriedYearEnd struct {
	app, substance        string
	recycle, induction    value.Value
	dist                  SalesStreamDistribution
	hasUserSpecifiedSales bool
	hasEnabledSalesStream bool
}

// IncrementYear advances the simulation by one year, performing the six
// ordered steps of year transition (§4.7): increment the year counter;
// roll equipment/retired into their "prior" slots and update age; reset
// per-step parameterization bookkeeping; redistribute recycling and
// induction back into sales using last year's distribution; and zero
// the per-year recycle/induction substreams.
func (e *Engine) IncrementYear() error {
	if e.endYear > 0 && e.state.CurrentYear()+1 > e.endYear {
		return ErrRangeExhausted
	}

	substances := e.state.Substances()
	carries := make([]carriedYearEnd, 0, len(substances))
	for _, sub := range substances {
		p := e.state.Parameterization(sub.App, sub.Substance)
		recycle, _ := e.state.GetStream(sub.App, sub.Substance, StreamRecycle)
		induction, _ := e.state.GetStream(sub.App, sub.Substance, StreamInduction)
		_, hasDomestic := p.LastSpecifiedValue[StreamDomestic]
		_, hasImport := p.LastSpecifiedValue[StreamImport]
		carries = append(carries, carriedYearEnd{
			app: sub.App, substance: sub.Substance,
			recycle: recycle, induction: induction,
			dist:                  DefaultDistribution(e.state, sub.App, sub.Substance, p),
			hasUserSpecifiedSales: hasDomestic || hasImport,
			hasEnabledSalesStream: p.IsEnabled(StreamDomestic) || p.IsEnabled(StreamImport),
		})
	}

	// Step 1.
	e.state.year++

	// Step 2.
	for _, sub := range substances {
		e.rollEquipmentAndAge(sub.App, sub.Substance)
	}

	// Step 3.
	for _, sub := range substances {
		e.state.Parameterization(sub.App, sub.Substance).ResetStateAtTimestep()
	}

	// Steps 4 and 5.
	for _, c := range carries {
		if !c.recycle.IsZero() && c.hasUserSpecifiedSales && c.hasEnabledSalesStream {
			e.redistributeRecycling(c.app, c.substance, c.recycle, c.dist)
		}
		if !c.induction.IsZero() {
			e.redistributeInduction(c.app, c.substance, c.induction, c.dist)
		}
	}

	// Step 6.
	for _, sub := range substances {
		e.state.setRaw(sub.App, sub.Substance, StreamRecycleRecharge, value.Zero(value.UnitKg))
		e.state.setRaw(sub.App, sub.Substance, StreamRecycleEol, value.Zero(value.UnitKg))
		e.state.setRaw(sub.App, sub.Substance, StreamInductionRecharge, value.Zero(value.UnitKg))
		e.state.setRaw(sub.App, sub.Substance, StreamInductionEol, value.Zero(value.UnitKg))
	}

	e.metrics.ObserveYearTransition()
	return nil
}

// rollEquipmentAndAge moves equipment/retired into their "prior" slots
// and updates age as the weighted mean of the existing cohort aged one
// more year and any newly added units entering at age 1 (§4.7 step 2).
func (e *Engine) rollEquipmentAndAge(app, substance string) {
	equipment := e.state.rawStream(app, substance, StreamEquipment)
	priorEquipment := e.state.rawStream(app, substance, StreamPriorEquipment)
	retired := e.state.rawStream(app, substance, StreamRetired)
	age := e.state.rawStream(app, substance, StreamAge)

	newUnits := equipment.Amount.Sub(priorEquipment.Amount)
	if newUnits.IsNegative() {
		newUnits = decimal.Zero
	}

	agedWeight := priorEquipment.Amount
	totalWeight := agedWeight.Add(newUnits)

	nextAge := decimal.Zero
	if !totalWeight.IsZero() {
		agedComponent := age.Amount.Add(decimal.NewFromInt(1)).Mul(agedWeight)
		newComponent := decimal.NewFromInt(1).Mul(newUnits)
		nextAge = agedComponent.Add(newComponent).Div(totalWeight)
	}

	e.state.setRaw(app, substance, StreamPriorEquipment, equipment)
	e.state.setRaw(app, substance, StreamPriorRetired, retired)
	e.state.setRaw(app, substance, StreamAge, value.NewFromDecimal(nextAge, value.UnitYears))
}

// redistributeRecycling adds recycle*pctDomestic/pctImport back onto
// domestic/import using the distribution captured before this year's
// reset (§4.7 step 4).
func (e *Engine) redistributeRecycling(app, substance string, recycle value.Value, dist SalesStreamDistribution) {
	domesticShare := recycle.ScaleFloat(dist.PctDomestic)
	importShare := recycle.ScaleFloat(dist.PctImport)

	domestic := e.state.rawStream(app, substance, StreamDomestic)
	imp := e.state.rawStream(app, substance, StreamImport)

	e.state.setRaw(app, substance, StreamDomestic, domestic.Add(domesticShare))
	e.state.setRaw(app, substance, StreamImport, imp.Add(importShare))
}

// redistributeInduction subtracts induced mass pro-rata from
// domestic/import, flooring at zero (§4.7 step 5).
func (e *Engine) redistributeInduction(app, substance string, induction value.Value, dist SalesStreamDistribution) {
	domesticShare := induction.ScaleFloat(dist.PctDomestic)
	importShare := induction.ScaleFloat(dist.PctImport)

	domestic := e.state.rawStream(app, substance, StreamDomestic)
	imp := e.state.rawStream(app, substance, StreamImport)

	domesticNext, _ := domestic.Sub(domesticShare).ClampNonNegative()
	importNext, _ := imp.Sub(importShare).ClampNonNegative()

	e.state.setRaw(app, substance, StreamDomestic, domesticNext)
	e.state.setRaw(app, substance, StreamImport, importNext)
}

package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/value"
)

// EngineResult is one serialized (application, substance, year) record
// (C8, §4.8, §6.2).
type EngineResult struct {
	Application  string
	Substance    string
	Year         int
	ScenarioName string
	TrialNumber  int

	// RunID identifies the engine run that produced this record, so
	// records from concurrent trials can be told apart even if
	// ScenarioName/TrialNumber collide across callers.
	RunID uuid.UUID

	DomesticKg value.Value
	ImportKg   value.Value
	ExportKg   value.Value
	RecycleKg  value.Value

	DomesticTco2e value.Value
	ImportTco2e   value.Value
	ExportTco2e   value.Value
	RecycleTco2e  value.Value

	Population    value.Value
	NewPopulation value.Value

	RechargeEmissionsTco2e      value.Value
	EolEmissionsTco2e           value.Value
	InitialChargeEmissionsTco2e value.Value
	InitialChargeKg             value.Value

	EnergyConsumptionKwh value.Value

	BankKg          value.Value
	BankTco2e       value.Value
	BankChangeKg    value.Value
	BankChangeTco2e value.Value

	// Trade supplement (§4.8): the portion of imports attributable to
	// filling new-unit initial charge rather than servicing recharge
	// demand.
	ImportForInitialChargeKg    value.Value
	ImportForInitialChargeTco2e value.Value
	ImportForInitialChargeUnits value.Value
}

// Results serializes the current state of (app, substance) into an
// EngineResult: virgin streams in both kg and tCO2e, population figures,
// recharge/EOL/initial-charge emissions, energy consumption, bank and
// its year-over-year change, and the import trade-attribution
// supplement (§4.8).
func (e *Engine) Results(app, substance string) (EngineResult, error) {
	p := e.state.Parameterization(app, substance)
	if p == nil {
		return EngineResult{}, fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, app, substance)
	}
	ctx := e.kit().contextFor(app, substance)
	charge, hasCharge := chargeForSalesStreams(p)

	domestic := e.state.rawStream(app, substance, StreamDomestic)
	imp := e.state.rawStream(app, substance, StreamImport)
	export := e.state.rawStream(app, substance, StreamExport)
	recycle, _ := e.state.GetStream(app, substance, StreamRecycle)
	equipment := e.state.rawStream(app, substance, StreamEquipment)
	newEquipment := e.state.rawStream(app, substance, StreamNewEquipment)
	rechargeEmissions := e.state.rawStream(app, substance, StreamRechargeEmissions)
	eolEmissions := e.state.rawStream(app, substance, StreamEolEmissions)
	virginRecharge := e.state.rawStream(app, substance, StreamImplicitRecharge)

	result := EngineResult{
		Application: app, Substance: substance, Year: e.CurrentYear(), RunID: e.runID,
		DomesticKg: domestic, ImportKg: imp, ExportKg: export, RecycleKg: recycle,
		Population: equipment, NewPopulation: newEquipment,
		RechargeEmissionsTco2e: rechargeEmissions, EolEmissionsTco2e: eolEmissions,
	}

	if _, ok := ctx.GWP(); ok {
		result.DomesticTco2e = e.mustTco2e(domestic, ctx)
		result.ImportTco2e = e.mustTco2e(imp, ctx)
		result.ExportTco2e = e.mustTco2e(export, ctx)
		result.RecycleTco2e = e.mustTco2e(recycle, ctx)
		if hasCharge {
			result.InitialChargeKg = value.NewFromDecimal(newEquipment.Amount.Mul(charge), value.UnitKg)
			result.InitialChargeEmissionsTco2e = e.mustTco2e(result.InitialChargeKg, ctx)
		} else {
			result.InitialChargeKg = value.Zero(value.UnitKg)
			result.InitialChargeEmissionsTco2e = value.Zero(value.UnitTCO2e)
		}
	} else {
		zero := value.Zero(value.UnitTCO2e)
		result.DomesticTco2e, result.ImportTco2e, result.ExportTco2e = zero, zero, zero
		result.RecycleTco2e, result.InitialChargeEmissionsTco2e = zero, zero
		if hasCharge {
			result.InitialChargeKg = value.NewFromDecimal(newEquipment.Amount.Mul(charge), value.UnitKg)
		} else {
			result.InitialChargeKg = value.Zero(value.UnitKg)
		}
	}

	if _, ok := ctx.EnergyIntensity(); ok {
		if v, err := e.convert.ConvertTo(equipment, value.UnitKwh, ctx); err == nil {
			result.EnergyConsumptionKwh = v
		} else {
			result.EnergyConsumptionKwh = value.Zero(value.UnitKwh)
		}
	} else {
		result.EnergyConsumptionKwh = value.Zero(value.UnitKwh)
	}

	var bankKg decimal.Decimal
	if hasCharge {
		bankKg = equipment.Amount.Mul(charge)
	}
	result.BankKg = value.NewFromDecimal(bankKg, value.UnitKg)
	result.BankTco2e = e.mustTco2e(result.BankKg, ctx)
	e.applyBankChange(app, substance, bankKg, result.BankTco2e.Amount, &result)

	e.computeTradeSupplement(p, domestic, imp, virginRecharge, ctx, &result)

	return result, nil
}

// mustTco2e converts v to tCO2e, returning a zero Value rather than an
// error when the substance has no configured GWP.
func (e *Engine) mustTco2e(v value.Value, ctx value.ConversionContext) value.Value {
	converted, err := e.convert.ConvertTo(v, value.UnitTCO2e, ctx)
	if err != nil {
		return value.Zero(value.UnitTCO2e)
	}
	return converted
}

func (e *Engine) applyBankChange(app, substance string, bankKg, bankTco2e decimal.Decimal, result *EngineResult) {
	if e.lastBankKg == nil {
		e.lastBankKg = make(map[substanceKey]decimal.Decimal)
		e.lastBankTco2e = make(map[substanceKey]decimal.Decimal)
	}
	key := substanceKey{App: app, Substance: substance}

	prevKg, hadPrev := e.lastBankKg[key]
	prevTco2e := e.lastBankTco2e[key]
	if hadPrev {
		result.BankChangeKg = value.NewFromDecimal(bankKg.Sub(prevKg), value.UnitKg)
		result.BankChangeTco2e = value.NewFromDecimal(bankTco2e.Sub(prevTco2e), value.UnitTCO2e)
	} else {
		result.BankChangeKg = value.Zero(value.UnitKg)
		result.BankChangeTco2e = value.Zero(value.UnitTCO2e)
	}

	e.lastBankKg[key] = bankKg
	e.lastBankTco2e[key] = bankTco2e
}

// computeTradeSupplement implements §4.8's exact formula: virgin
// recharge demand is totalRecharge minus recycleRecharge (already
// stored as implicitRecharge); the import share of that demand is
// totalImport/(totalDomestic+totalImport); import-for-initial-charge is
// totalImport minus share*virginRecharge, converted to tCO2e via GWP and
// to units via the import stream's own initial charge.
func (e *Engine) computeTradeSupplement(p *Parameterization, domestic, imp, virginRecharge value.Value, ctx value.ConversionContext, result *EngineResult) {
	denom := domestic.Amount.Add(imp.Amount)
	importShare := decimal.Zero
	if !denom.IsZero() {
		importShare = imp.Amount.Div(denom)
	}

	importForInitialCharge := imp.Amount.Sub(importShare.Mul(virginRecharge.Amount))
	if importForInitialCharge.IsNegative() {
		importForInitialCharge = decimal.Zero
	}
	result.ImportForInitialChargeKg = value.NewFromDecimal(importForInitialCharge, value.UnitKg)
	result.ImportForInitialChargeTco2e = e.mustTco2e(result.ImportForInitialChargeKg, ctx)

	if importCharge, ok := p.InitialCharge[StreamImport]; ok && !importCharge.IsZero() {
		result.ImportForInitialChargeUnits = value.NewFromDecimal(importForInitialCharge.Div(importCharge), value.UnitUnits)
	} else {
		result.ImportForInitialChargeUnits = value.Zero(value.UnitUnits)
	}
}

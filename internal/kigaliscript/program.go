// Package kigaliscript provides a minimal, already-parsed operation
// representation for driving an engine.Engine: a tagged-union Operation
// per command in the §6.1 surface, loaded from YAML fixtures rather
// than from source text. It is explicitly not a policy-script
// parser/lexer.
package kigaliscript

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/engine"
	"github.com/example/kigalisim/internal/value"
)

// OpKind names one of the §6.1 engine operations.
type OpKind string

const (
	OpSetStanza        OpKind = "setStanza"
	OpSetApplication   OpKind = "setApplication"
	OpSetSubstance     OpKind = "setSubstance"
	OpEnable           OpKind = "enable"
	OpEquals           OpKind = "equals"
	OpInitialCharge    OpKind = "initialCharge"
	OpRecharge         OpKind = "recharge"
	OpRetire           OpKind = "retire"
	OpRecycle          OpKind = "recycle"
	OpSetInductionRate OpKind = "setInductionRate"
	OpSet              OpKind = "set"
	OpChange           OpKind = "change"
	OpCap              OpKind = "cap"
	OpFloor            OpKind = "floor"
	OpReplace          OpKind = "replace"
	OpIncrementYear    OpKind = "incrementYear"
)

// ValueLiteral is the YAML-serializable form of value.Value.
type ValueLiteral struct {
	Amount float64 `yaml:"amount"`
	Units  string  `yaml:"units"`
}

// ToValue converts the literal to a value.Value.
func (v ValueLiteral) ToValue() value.Value {
	return value.New(v.Amount, v.Units)
}

// ToRatio interprets the literal as a plain 0..1 ratio, dividing by 100
// when Units is "%" so fixtures can write "10%" naturally.
func (v ValueLiteral) ToRatio() decimal.Decimal {
	amount := decimal.NewFromFloat(v.Amount)
	if v.Units == value.UnitPercent {
		return amount.Div(decimal.NewFromInt(100))
	}
	return amount
}

// YearMatcher is the YAML-serializable form of engine.YearMatcher.
type YearMatcher struct {
	Start   *int `yaml:"start,omitempty"`
	End     *int `yaml:"end,omitempty"`
	Onwards bool `yaml:"onwards,omitempty"`
}

func (m YearMatcher) toEngine() engine.YearMatcher {
	return engine.YearMatcher{Start: m.Start, End: m.End, Onwards: m.Onwards}
}

// Operation is a tagged-union instruction: Kind selects which payload
// fields are meaningful. This mirrors the spec's redesign note
// preferring tagged variants over a class hierarchy (§9) — one struct,
// one enum tag, rather than one type per command.
type Operation struct {
	Kind OpKind `yaml:"op"`

	// Navigation (setStanza/setApplication/setSubstance) and stream name
	// (enable/set/change/cap/floor/replace).
	Name       string `yaml:"name,omitempty"`
	CheckValid bool   `yaml:"checkValid,omitempty"`
	Stream     string `yaml:"stream,omitempty"`
	Stage      string `yaml:"stage,omitempty"`

	// Matcher is the (start?, end?, onwards) year window (§6.1).
	Matcher YearMatcher `yaml:"years,omitempty"`

	// Amount is used by equals/initialCharge/set/change/cap/floor/replace.
	Amount *ValueLiteral `yaml:"amount,omitempty"`

	// Rate/Intensity are used by recharge/retire/setInductionRate.
	Rate      *ValueLiteral `yaml:"rate,omitempty"`
	Intensity *ValueLiteral `yaml:"intensity,omitempty"`

	// Recovery/Yield are used by recycle.
	Recovery *ValueLiteral `yaml:"recovery,omitempty"`
	Yield    *ValueLiteral `yaml:"yield,omitempty"`

	// DisplaceTarget/DisplacementType/DestinationSubstance are used by
	// cap/floor/replace.
	DisplaceTarget       string `yaml:"displacing,omitempty"`
	DisplacementType     string `yaml:"displacementType,omitempty"`
	DestinationSubstance string `yaml:"to,omitempty"`
}

// Program is one parsed script: the scenario/year window it governs and
// its ordered operation list (§6.1, §5 ordering guarantee: commands run
// in exact list order).
type Program struct {
	ScenarioName string      `yaml:"scenario"`
	StartYear    int         `yaml:"startYear"`
	EndYear      int         `yaml:"endYear"`
	Trials       int         `yaml:"trials"`
	Operations   []Operation `yaml:"operations"`
}

// Apply runs every operation against e in order, stopping at the first error.
func (prog Program) Apply(e *engine.Engine) error {
	for i, op := range prog.Operations {
		if err := op.apply(e); err != nil {
			return fmt.Errorf("kigaliscript: operation %d (%s): %w", i, op.Kind, err)
		}
	}
	return nil
}

func (op Operation) apply(e *engine.Engine) error {
	matcher := op.Matcher.toEngine()

	switch op.Kind {
	case OpSetStanza:
		e.SetStanza(op.Name)
		return nil
	case OpSetApplication:
		e.SetApplication(op.Name)
		return nil
	case OpSetSubstance:
		return e.SetSubstance(op.Name, op.CheckValid)
	case OpEnable:
		return e.Enable(op.Stream, matcher)
	case OpEquals:
		return e.Equals(op.Amount.ToValue(), matcher)
	case OpInitialCharge:
		return e.InitialCharge(op.Amount.ToValue(), op.Stream, matcher)
	case OpSet:
		return e.SetStream(op.Stream, op.Amount.ToValue(), matcher)
	case OpChange:
		return e.ChangeStream(op.Stream, op.Amount.ToValue(), matcher)
	case OpCap:
		return e.Cap(op.Stream, op.Amount.ToValue(), matcher, op.DisplaceTarget, parseDisplacementType(op.DisplacementType))
	case OpFloor:
		return e.Floor(op.Stream, op.Amount.ToValue(), matcher, op.DisplaceTarget, parseDisplacementType(op.DisplacementType))
	case OpReplace:
		return e.Replace(op.Amount.ToValue(), op.Stream, op.DestinationSubstance, matcher)
	case OpRecharge:
		return e.Recharge(op.Rate.ToRatio(), op.Intensity.ToValue(), matcher)
	case OpRetire:
		return e.Retire(op.Rate.ToRatio(), matcher)
	case OpRecycle:
		return e.Recycle(op.Recovery.ToRatio(), op.Yield.ToRatio(), matcher, op.Stage)
	case OpSetInductionRate:
		return e.SetInductionRate(op.Rate.ToRatio(), op.Stage)
	case OpIncrementYear:
		return e.IncrementYear()
	default:
		return fmt.Errorf("kigaliscript: unknown operation %q", op.Kind)
	}
}

func parseDisplacementType(s string) engine.DisplacementType {
	switch s {
	case "BY_VOLUME":
		return engine.DisplacementByVolume
	case "BY_UNITS":
		return engine.DisplacementByUnits
	default:
		return engine.DisplacementEquivalent
	}
}

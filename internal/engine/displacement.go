package engine

import (
	"fmt"

	"github.com/example/kigalisim/internal/value"
)

// Cap bounds stream from above at amount, displacing the excess mass to
// displaceTarget if non-empty (§4.6 cap). A no-op if the current value
// is already at or below amount (§8 boundary).
func (e *Engine) Cap(stream string, amount value.Value, matcher YearMatcher, displaceTarget string, displacementType DisplacementType) error {
	return e.capOrFloor(stream, amount, matcher, displaceTarget, displacementType, true)
}

// Floor bounds stream from below at amount, pulling the shortfall from
// displaceTarget if non-empty (§4.6 floor). A no-op if the current
// value already meets or exceeds amount.
func (e *Engine) Floor(stream string, amount value.Value, matcher YearMatcher, displaceTarget string, displacementType DisplacementType) error {
	return e.capOrFloor(stream, amount, matcher, displaceTarget, displacementType, false)
}

func (e *Engine) capOrFloor(stream string, amount value.Value, matcher YearMatcher, displaceTarget string, displacementType DisplacementType, isCap bool) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	p, err := e.requireSubstance()
	if err != nil {
		return err
	}
	if displaceTarget != "" && displaceTarget == e.scope.Substance {
		return ErrSelfDisplacement
	}

	ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
	current, err := e.state.GetStream(e.scope.Application, e.scope.Substance, stream)
	if err != nil {
		return err
	}

	var target value.Value
	if amount.Units == value.UnitPercent {
		// % on cap/floor means "of the prior-year captured base" (§4.5
		// tie-break policy): the stream's last user-specified value,
		// falling back to the current value when nothing was captured.
		base := current
		if lsv, ok := p.LastSpecifiedValue[stream]; ok {
			converted, err := e.convert.ConvertTo(lsv, current.Units, ctx)
			if err != nil {
				return err
			}
			base = converted
		}
		ratio := amount.Amount.Div(hundred)
		target = base.Scale(ratio)
	} else {
		target, err = e.convert.ConvertTo(amount, current.Units, ctx)
		if err != nil {
			return err
		}
	}

	var binds bool
	if isCap {
		binds = current.Amount.GreaterThan(target.Amount)
	} else {
		binds = current.Amount.LessThan(target.Amount)
	}
	if !binds {
		return nil
	}

	displacedAmount := current.Sub(target)
	displacedAmount.Amount = displacedAmount.Amount.Abs()

	if err := e.SetStream(stream, target, AlwaysMatch); err != nil {
		return err
	}
	e.countOp("cap_floor")

	if displaceTarget == "" {
		return nil
	}
	displacedKg, err := e.convert.ConvertTo(displacedAmount, value.UnitKg, ctx)
	if err != nil {
		return err
	}
	return e.displace(stream, displacedKg, displaceTarget, amount.Units, displacementType, isCap)
}

// Replace moves amount of mass from the current substance's stream to
// destinationSubstance, converted through each substance's own initial
// charge when the displacement is unit-based (§4.6 replace).
// Self-replacement is rejected.
func (e *Engine) Replace(amount value.Value, stream string, destinationSubstance string, matcher YearMatcher) error {
	if !matcher.Matches(e.CurrentYear()) {
		return nil
	}
	if destinationSubstance == e.scope.Substance {
		return ErrSelfReplacement
	}
	if _, err := e.requireSubstance(); err != nil {
		return err
	}

	ctx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
	current, err := e.state.GetStream(e.scope.Application, e.scope.Substance, stream)
	if err != nil {
		return err
	}
	removed, err := e.convert.ConvertTo(amount, current.Units, ctx)
	if err != nil {
		return err
	}
	next, _ := current.Sub(removed).ClampNonNegative()
	if err := e.SetStream(stream, next, AlwaysMatch); err != nil {
		return err
	}
	e.countOp("replace")

	removedKg, err := e.convert.ConvertTo(removed, value.UnitKg, ctx)
	if err != nil {
		return err
	}
	return e.displace(stream, removedKg, destinationSubstance, amount.Units, DisplacementEquivalent, true)
}

// displace routes amountKg of mass into destinationSubstance, resolving
// EQUIVALENT to BY_UNITS or BY_VOLUME from originalUnits. It lands on
// the destination's own domestic/import/export stream when stream
// names one of those directly (§4.6: "the same kg amount [is]
// subtracted from the other substance's corresponding stream"); any
// other stream (e.g. the aggregate "sales") falls back to the
// destination's sales split, matching the prior behavior. It
// temporarily switches the engine's current scope to the destination
// so conversions use the destination's own GWP/initial charge,
// restoring the prior scope unconditionally via defer so a panic
// mid-displacement cannot leave the engine pointed at the wrong
// substance (§4.6, §9 panic-safe scope restore).
func (e *Engine) displace(stream string, amountKg value.Value, destinationSubstance string, originalUnits string, displacementType DisplacementType, add bool) error {
	resolved := displacementType
	if resolved == DisplacementEquivalent {
		if originalUnits == value.UnitUnits {
			resolved = DisplacementByUnits
		} else {
			resolved = DisplacementByVolume
		}
	}

	prevScope := e.scope
	defer func() { e.scope = prevScope }()

	destApplication := prevScope.Application
	if !e.state.HasSubstance(destApplication, destinationSubstance) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, destApplication, destinationSubstance)
	}

	destAmount := amountKg
	if resolved == DisplacementByUnits {
		srcCtx := e.kit().contextFor(prevScope.Application, prevScope.Substance)
		units, err := e.convert.ConvertTo(amountKg, value.UnitUnits, srcCtx)
		if err != nil {
			return err
		}
		e.scope = prevScope.WithSubstance(destinationSubstance)
		destCtx := e.kit().contextFor(e.scope.Application, e.scope.Substance)
		kg, err := e.convert.ConvertTo(units, value.UnitKg, destCtx)
		if err != nil {
			return err
		}
		destAmount = kg
	} else {
		e.scope = prevScope.WithSubstance(destinationSubstance)
	}

	destStream := StreamSales
	switch stream {
	case StreamDomestic, StreamImport, StreamExport:
		destStream = stream
	}

	current, err := e.state.GetStream(e.scope.Application, e.scope.Substance, destStream)
	if err != nil {
		return err
	}
	var next value.Value
	if add {
		next = current.Add(destAmount)
	} else {
		next, _ = current.Sub(destAmount).ClampNonNegative()
	}
	return e.SetStream(destStream, next, AlwaysMatch)
}

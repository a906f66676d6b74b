package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/kigalisim/internal/value"
)

// substanceKey identifies one (application, substance) pair.
type substanceKey struct {
	App       string
	Substance string
}

// streamKey identifies one stored stream slot.
type streamKey struct {
	App       string
	Substance string
	Stream    string
}

// priorEquipmentTolerance is the "small tolerance" from §4.4.2 below
// which a priorEquipment edit does not trigger base rescaling.
var priorEquipmentTolerance = decimal.New(1, -4) // 1e-4 units

// StreamUpdate is the single plain-data argument to SimulationState.Update
// (§4.4, §9: "explicit plain-data structs with defaulted fields" rather
// than a fluent builder).
type StreamUpdate struct {
	App               string
	Substance         string
	Stream            string
	Value             value.Value
	SubtractRecycling bool
	Distribution      *SalesStreamDistribution

	// InvalidatesPriorEquipment triggers base rescaling (§4.4.2) when true.
	InvalidatesPriorEquipment bool
}

// SimulationState is the keyed store of streams per (app, substance,
// stream), the year counter, and every substance's Parameterization
// (C5). It implements stream reads, writes, enabled checks, and
// distribution; year transitions are Engine.IncrementYear (transition.go).
type SimulationState struct {
	streams map[streamKey]value.Value
	params  map[substanceKey]*Parameterization
	order   []substanceKey // stable iteration order for year transition / serialization

	year      int
	startYear int
}

// NewSimulationState returns an empty state starting at startYear.
func NewSimulationState(startYear int) *SimulationState {
	return &SimulationState{
		streams:   make(map[streamKey]value.Value),
		params:    make(map[substanceKey]*Parameterization),
		year:      startYear,
		startYear: startYear,
	}
}

// CurrentYear implements scope.YearProvider.
func (s *SimulationState) CurrentYear() int { return s.year }

// StartYear implements scope.YearProvider.
func (s *SimulationState) StartYear() int { return s.startYear }

// EnsureSubstance creates the parameterization and zero-initializes
// every stored stream for (app, substance) if it does not already
// exist. Idempotent (§3 Lifecycle).
func (s *SimulationState) EnsureSubstance(app, substance string) *Parameterization {
	key := substanceKey{App: app, Substance: substance}
	if p, ok := s.params[key]; ok {
		return p
	}

	p := NewParameterization()
	s.params[key] = p
	s.order = append(s.order, key)

	for _, name := range storedStreams {
		s.streams[streamKey{App: app, Substance: substance, Stream: name}] = value.Zero(Streams[name].CanonicalUnits)
	}
	return p
}

// HasSubstance reports whether (app, substance) has been ensured.
func (s *SimulationState) HasSubstance(app, substance string) bool {
	_, ok := s.params[substanceKey{App: app, Substance: substance}]
	return ok
}

// Parameterization returns the substance's parameterization, or nil if
// it has not been ensured.
func (s *SimulationState) Parameterization(app, substance string) *Parameterization {
	return s.params[substanceKey{App: app, Substance: substance}]
}

// Substances returns every (app, substance) pair ensured so far, in
// first-ensured order.
func (s *SimulationState) Substances() []struct{ App, Substance string } {
	out := make([]struct{ App, Substance string }, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, struct{ App, Substance string }{App: k.App, Substance: k.Substance})
	}
	return out
}

// GetStream reads a stream's current value. sales, recycle, and
// induction are computed on the fly by summing their components (§4.4).
func (s *SimulationState) GetStream(app, substance, name string) (value.Value, error) {
	if !IsKnownStream(name) {
		return value.Value{}, fmt.Errorf("%w: %s", ErrUnknownStream, name)
	}

	switch name {
	case StreamSales:
		domestic := s.rawStream(app, substance, StreamDomestic)
		imp := s.rawStream(app, substance, StreamImport)
		recycle, _ := s.GetStream(app, substance, StreamRecycle)
		return domestic.Add(imp).Add(recycle), nil
	case StreamRecycle:
		recharge := s.rawStream(app, substance, StreamRecycleRecharge)
		eol := s.rawStream(app, substance, StreamRecycleEol)
		return recharge.Add(eol), nil
	case StreamInduction:
		recharge := s.rawStream(app, substance, StreamInductionRecharge)
		eol := s.rawStream(app, substance, StreamInductionEol)
		return recharge.Add(eol), nil
	default:
		return s.rawStream(app, substance, name), nil
	}
}

func (s *SimulationState) rawStream(app, substance, name string) value.Value {
	v, ok := s.streams[streamKey{App: app, Substance: substance, Stream: name}]
	if !ok {
		return value.Zero(Streams[name].CanonicalUnits)
	}
	return v
}

func (s *SimulationState) setRaw(app, substance, name string, v value.Value) {
	s.streams[streamKey{App: app, Substance: substance, Stream: name}] = v
}

// Update is the single mutation entry point for stored streams (§4.4).
func (s *SimulationState) Update(u StreamUpdate) error {
	if !IsKnownStream(u.Stream) {
		return fmt.Errorf("%w: %s", ErrUnknownStream, u.Stream)
	}
	p := s.Parameterization(u.App, u.Substance)
	if p == nil {
		return fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, u.App, u.Substance)
	}

	switch u.Stream {
	case StreamDomestic, StreamImport:
		if !u.SubtractRecycling {
			return s.writeEnableable(u.App, u.Substance, p, u.Stream, u.Value)
		}
		return s.writeWithRecyclingSubtracted(u.App, u.Substance, p, u.Stream, u.Value)

	case StreamExport:
		return s.writeEnableable(u.App, u.Substance, p, u.Stream, u.Value)

	case StreamSales:
		return s.writeSales(u.App, u.Substance, p, u.Value, u.Distribution)

	case StreamRecycle:
		return s.writeRecycleSplit(u.App, u.Substance, u.Value)

	case StreamPriorEquipment:
		return s.writePriorEquipment(u.App, u.Substance, p, u.Value, u.InvalidatesPriorEquipment)

	default:
		s.setRaw(u.App, u.Substance, u.Stream, u.Value)
		return nil
	}
}

func (s *SimulationState) writeEnableable(app, substance string, p *Parameterization, stream string, v value.Value) error {
	if !v.IsZero() && !p.IsEnabled(stream) {
		return fmt.Errorf("%w: %s", ErrStreamNotEnabled, stream)
	}
	s.setRaw(app, substance, stream, v)
	return nil
}

// writeWithRecyclingSubtracted subtracts that substream's pro-rata share
// of recycle from the supplied value, floors at zero, and writes
// directly (§4.4 third bullet).
func (s *SimulationState) writeWithRecyclingSubtracted(app, substance string, p *Parameterization, stream string, v value.Value) error {
	if !v.IsZero() && !p.IsEnabled(stream) {
		return fmt.Errorf("%w: %s", ErrStreamNotEnabled, stream)
	}

	recycle, _ := s.GetStream(app, substance, StreamRecycle)
	if recycle.IsZero() {
		s.setRaw(app, substance, stream, v)
		return nil
	}

	domestic := s.rawStream(app, substance, StreamDomestic)
	imp := s.rawStream(app, substance, StreamImport)
	total := domestic.Add(imp)

	var share decimal.Decimal
	if total.IsZero() {
		share = decimal.NewFromFloat(0.5)
	} else if stream == StreamDomestic {
		share = domestic.Amount.Div(total.Amount)
	} else {
		share = imp.Amount.Div(total.Amount)
	}

	netted := v.Sub(recycle.Scale(share))
	clamped, _ := netted.ClampNonNegative()
	s.setRaw(app, substance, stream, clamped)
	return nil
}

// writeSales splits a sales-stream write (virgin = value - recycle) and
// distributes to domestic/import per §4.4.
func (s *SimulationState) writeSales(app, substance string, p *Parameterization, v value.Value, dist *SalesStreamDistribution) error {
	recycle, _ := s.GetStream(app, substance, StreamRecycle)
	virgin := v.Sub(recycle)
	virgin, _ = virgin.ClampNonNegative()

	if dist == nil {
		d := DefaultDistribution(s, app, substance, p)
		dist = &d
	}

	domesticShare := virgin.ScaleFloat(dist.PctDomestic)
	importShare := virgin.ScaleFloat(dist.PctImport)

	if err := s.writeEnableable(app, substance, p, StreamDomestic, domesticShare); err != nil {
		return err
	}
	return s.writeEnableable(app, substance, p, StreamImport, importShare)
}

// writeRecycleSplit proportionally splits a recycle write into
// recycleRecharge/recycleEol based on current values, or 50/50 if both
// are currently zero (§4.4 fourth bullet).
func (s *SimulationState) writeRecycleSplit(app, substance string, v value.Value) error {
	recharge := s.rawStream(app, substance, StreamRecycleRecharge)
	eol := s.rawStream(app, substance, StreamRecycleEol)
	total := recharge.Add(eol)

	var rechargeShare, eolShare decimal.Decimal
	if total.IsZero() {
		rechargeShare = decimal.NewFromFloat(0.5)
		eolShare = decimal.NewFromFloat(0.5)
	} else {
		rechargeShare = recharge.Amount.Div(total.Amount)
		eolShare = eol.Amount.Div(total.Amount)
	}

	s.setRaw(app, substance, StreamRecycleRecharge, v.Scale(rechargeShare))
	s.setRaw(app, substance, StreamRecycleEol, v.Scale(eolShare))
	return nil
}

// writePriorEquipment applies the write and, if requested and the
// change exceeds the tolerance, rescales the recharge/retirement bases
// (§4.4.2).
func (s *SimulationState) writePriorEquipment(app, substance string, p *Parameterization, v value.Value, invalidates bool) error {
	old := s.rawStream(app, substance, StreamPriorEquipment)
	s.setRaw(app, substance, StreamPriorEquipment, v)

	if !invalidates {
		return nil
	}

	delta := v.Sub(old).Amount.Abs()
	if delta.LessThanOrEqual(priorEquipmentTolerance) {
		return nil
	}
	if old.IsZero() {
		p.RechargeBasePopulation = decimal.Zero
		p.AppliedRechargeAmount = decimal.Zero
		p.RetirementBasePopulation = decimal.Zero
		p.AppliedRetirementAmount = decimal.Zero
		return nil
	}

	ratio := v.Amount.Div(old.Amount)
	p.RechargeBasePopulation = p.RechargeBasePopulation.Mul(ratio)
	p.AppliedRechargeAmount = p.AppliedRechargeAmount.Mul(ratio)
	p.RetirementBasePopulation = p.RetirementBasePopulation.Mul(ratio)
	p.AppliedRetirementAmount = p.AppliedRetirementAmount.Mul(ratio)
	return nil
}

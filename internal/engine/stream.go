package engine

import "github.com/example/kigalisim/internal/value"

// Canonical stream names (§3).
const (
	StreamDomestic = "domestic"
	StreamImport   = "import"
	StreamExport   = "export"
	StreamSales    = "sales" // derived: domestic + import + recycle

	StreamRecycleRecharge = "recycleRecharge"
	StreamRecycleEol      = "recycleEol"
	StreamRecycle         = "recycle" // derived: recycleRecharge + recycleEol

	StreamInductionRecharge = "inductionRecharge"
	StreamInductionEol      = "inductionEol"
	StreamInduction         = "induction" // derived: the two above

	StreamEquipment      = "equipment"
	StreamPriorEquipment = "priorEquipment"
	StreamNewEquipment   = "newEquipment"

	StreamRetired      = "retired"
	StreamPriorRetired = "priorRetired"

	StreamRechargeEmissions = "rechargeEmissions"
	StreamEolEmissions      = "eolEmissions"

	StreamImplicitRecharge = "implicitRecharge"
	StreamAge              = "age"
)

// StreamSpec describes one canonical stream: its unit family, whether
// it is derived (computed on read rather than stored), and whether it
// requires an explicit enable() before a non-zero write.
type StreamSpec struct {
	CanonicalUnits string
	Derived        bool
	Enableable     bool
}

// Streams is the canonical stream table (§3). Only domestic, import,
// export require explicit enabling; everything else is always readable
// and writable by internal recalc steps.
var Streams = map[string]StreamSpec{
	StreamDomestic: {CanonicalUnits: value.UnitKg, Enableable: true},
	StreamImport:   {CanonicalUnits: value.UnitKg, Enableable: true},
	StreamExport:   {CanonicalUnits: value.UnitKg, Enableable: true},
	StreamSales:    {CanonicalUnits: value.UnitKg, Derived: true},

	StreamRecycleRecharge: {CanonicalUnits: value.UnitKg},
	StreamRecycleEol:      {CanonicalUnits: value.UnitKg},
	StreamRecycle:         {CanonicalUnits: value.UnitKg, Derived: true},

	StreamInductionRecharge: {CanonicalUnits: value.UnitKg},
	StreamInductionEol:      {CanonicalUnits: value.UnitKg},
	StreamInduction:         {CanonicalUnits: value.UnitKg, Derived: true},

	StreamEquipment:      {CanonicalUnits: value.UnitUnits},
	StreamPriorEquipment: {CanonicalUnits: value.UnitUnits},
	StreamNewEquipment:   {CanonicalUnits: value.UnitUnits},

	StreamRetired:      {CanonicalUnits: value.UnitUnits},
	StreamPriorRetired: {CanonicalUnits: value.UnitUnits},

	StreamRechargeEmissions: {CanonicalUnits: value.UnitTCO2e},
	StreamEolEmissions:      {CanonicalUnits: value.UnitTCO2e},

	StreamImplicitRecharge: {CanonicalUnits: value.UnitKg},
	StreamAge:              {CanonicalUnits: value.UnitYears},
}

// storedStreams lists every stream physically held in SimulationState,
// i.e. every canonical stream except the three derived ones. Declared
// once so ensureSubstance can zero-initialize them; the order follows map
// iteration and is not stable.
var storedStreams = func() []string {
	names := make([]string, 0, len(Streams))
	for name, spec := range Streams {
		if !spec.Derived {
			names = append(names, name)
		}
	}
	return names
}()

// IsKnownStream reports whether name is in the canonical stream table.
func IsKnownStream(name string) bool {
	_, ok := Streams[name]
	return ok
}

// IsEnableable reports whether name requires enable() before a non-zero write.
func IsEnableable(name string) bool {
	return Streams[name].Enableable
}

// IsDerived reports whether name is computed on read rather than stored.
func IsDerived(name string) bool {
	return Streams[name].Derived
}

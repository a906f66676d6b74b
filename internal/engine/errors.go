package engine

import "errors"

// Sentinel errors for the engine core (§7), one per failure mode, each
// with a "kigalisim: <lowercase message>" text.
var (
	// ErrUnknownSubstance is returned when the scope is switched with
	// checkValid=true to an (application, substance) pair that has
	// never been ensured.
	ErrUnknownSubstance = errors.New("kigalisim: unknown application/substance")

	// ErrStreamNotEnabled is returned on a non-zero write to domestic,
	// import, or export before enable() was called for that stream.
	ErrStreamNotEnabled = errors.New("kigalisim: stream not enabled for non-zero writes")

	// ErrUnknownStream is returned when a stream name is absent from
	// the canonical stream table.
	ErrUnknownStream = errors.New("kigalisim: unknown stream name")

	// ErrSelfReplacement is returned when a replace() command names the
	// current scope's own substance as the destination.
	ErrSelfReplacement = errors.New("kigalisim: cannot replace a substance with itself")

	// ErrSelfDisplacement is returned when a cap/floor displacement
	// target names the substance being capped. Displacement targets are
	// always looked up as substance names; the check does not compare the
	// target against stream names.
	ErrSelfDisplacement = errors.New("kigalisim: displacement target is the substance being capped")

	// ErrInvalidInductionRate is returned when a setInductionRate value
	// falls outside [0%, 100%].
	ErrInvalidInductionRate = errors.New("kigalisim: induction rate must be within [0%, 100%]")

	// ErrRangeExhausted is returned when incrementYear() is called past endYear.
	ErrRangeExhausted = errors.New("kigalisim: incrementYear called past the configured end year")

	// ErrNumericOverflow is returned if a decimal operation exceeds the
	// numeric type's representable range.
	ErrNumericOverflow = errors.New("kigalisim: numeric overflow")

	// ErrNoSubstanceSelected is returned when an operation runs before
	// setSubstance has established a current scope.
	ErrNoSubstanceSelected = errors.New("kigalisim: no substance selected in current scope")
)

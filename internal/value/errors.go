package value

import (
	"errors"
	"fmt"
)

// Sentinel errors for the numeric core, following the teacher's
// "<package>: <lowercase message>" convention.
var (
	// ErrUnitMismatch is returned when a conversion has no path, or
	// requires context (GWP, initial charge, energy intensity) that is
	// zero or missing. The two context errors below wrap it, so
	// errors.Is(err, ErrUnitMismatch) holds for them too.
	ErrUnitMismatch = errors.New("value: unit mismatch or missing conversion context")

	// ErrMissingContext is returned when a conversion needs a
	// ConversionContext field (GWP, initial charge, energy intensity)
	// that the caller did not supply.
	ErrMissingContext = fmt.Errorf("%w: conversion requires context that was not supplied", ErrUnitMismatch)

	// ErrZeroInitialCharge is returned when a unit-based sales value is
	// being converted but the stream's initial charge is zero.
	ErrZeroInitialCharge = fmt.Errorf("%w: cannot convert via zero initial charge", ErrUnitMismatch)
)

package scope

import (
	"errors"
	"testing"

	"github.com/example/kigalisim/internal/value"
)

type fakeYears struct {
	current, start int
}

func (f fakeYears) CurrentYear() int { return f.current }
func (f fakeYears) StartYear() int   { return f.start }

func TestReservedVariablesComputed(t *testing.T) {
	vs := NewVars()
	s := New("default", "Domestic Refrigeration", "HFC-134a")
	years := fakeYears{current: 2030, start: 2025}

	elapsed, ok := vs.Get(s, VarYearsElapsed, years)
	if !ok || elapsed.Float64() != 5 {
		t.Fatalf("expected yearsElapsed=5, got %v ok=%v", elapsed.Float64(), ok)
	}

	absolute, ok := vs.Get(s, VarYearAbsolute, years)
	if !ok || absolute.Float64() != 2030 {
		t.Fatalf("expected yearAbsolute=2030, got %v ok=%v", absolute.Float64(), ok)
	}
}

func TestSetReservedVariableFails(t *testing.T) {
	vs := NewVars()
	s := New("default", "Domestic Refrigeration", "HFC-134a")

	if err := vs.Set(s, VarYearsElapsed, value.New(1, "years")); !errors.Is(err, ErrReservedVariable) {
		t.Fatalf("expected ErrReservedVariable, got %v", err)
	}
}

func TestUserVariableRoundTrip(t *testing.T) {
	vs := NewVars()
	s := New("default", "Domestic Refrigeration", "HFC-134a")

	if err := vs.Set(s, "myFactor", value.New(42, "kg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := vs.Get(s, "myFactor", fakeYears{})
	if !ok || got.Float64() != 42 {
		t.Fatalf("expected myFactor=42, got %v ok=%v", got.Float64(), ok)
	}
}

func TestVariablesAreScopedPerSubstance(t *testing.T) {
	vs := NewVars()
	a := New("default", "Domestic Refrigeration", "HFC-134a")
	b := New("default", "Domestic Refrigeration", "R-600a")

	if err := vs.Set(a, "x", value.New(1, "kg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := vs.Get(b, "x", fakeYears{}); ok {
		t.Fatal("expected variable not to leak across substances")
	}
}

func TestUnknownVariableNotFound(t *testing.T) {
	vs := NewVars()
	s := New("default", "App", "Sub")
	if _, ok := vs.Get(s, "nope", fakeYears{}); ok {
		t.Fatal("expected unknown variable to be not-found")
	}
}

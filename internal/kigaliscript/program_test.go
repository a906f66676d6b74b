package kigaliscript

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/kigalisim/internal/engine"
)

func TestLoad_ParsesProgramFromYAML(t *testing.T) {
	doc := `
scenario: BAU
startYear: 2025
endYear: 2030
trials: 1
operations:
  - op: setStanza
    name: BAU
  - op: setApplication
    name: Domestic Refrigeration
  - op: setSubstance
    name: HFC-134a
  - op: enable
    stream: domestic
  - op: initialCharge
    stream: domestic
    amount: {amount: 0.15, units: kg}
  - op: set
    stream: domestic
    amount: {amount: 25, units: mt}
`
	prog, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, "BAU", prog.ScenarioName)
	require.Equal(t, 2025, prog.StartYear)
	require.Equal(t, 2030, prog.EndYear)
	require.Len(t, prog.Operations, 6)
	require.Equal(t, OpInitialCharge, prog.Operations[4].Kind)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	doc := `
startYear: 2025
endYear: 2025
operations:
  - op: enable
    streem: domestic
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoad_RejectsMissingYearRange(t *testing.T) {
	_, err := Load(strings.NewReader("scenario: BAU\n"))
	require.Error(t, err)
}

func TestProgram_ApplyRunsOperationsInOrder(t *testing.T) {
	doc := `
scenario: BAU
startYear: 2025
endYear: 2025
operations:
  - op: setStanza
    name: BAU
  - op: setApplication
    name: app
  - op: setSubstance
    name: sub
  - op: enable
    stream: domestic
  - op: set
    stream: domestic
    amount: {amount: 100, units: kg}
`
	prog, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	e := engine.NewEngine(2025, 2025)
	require.NoError(t, prog.Apply(e))

	result, err := e.Results("app", "sub")
	require.NoError(t, err)
	require.True(t, result.DomesticKg.Amount.Equal(decimal.NewFromInt(100)), "got %s", result.DomesticKg.Amount)
}

func TestProgram_ApplyStopsAtFirstError(t *testing.T) {
	doc := `
scenario: BAU
startYear: 2025
endYear: 2025
operations:
  - op: setStanza
    name: BAU
  - op: setApplication
    name: app
  - op: setSubstance
    name: sub
  - op: set
    stream: domestic
    amount: {amount: 100, units: kg}
  - op: setInductionRate
    stage: eol
    rate: {amount: 200, units: "%"}
`
	prog, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	e := engine.NewEngine(2025, 2025)
	err = prog.Apply(e)
	require.Error(t, err, "writing domestic before enable() should fail, stopping the chain")
}

func TestParseDisplacementType(t *testing.T) {
	require.Equal(t, engine.DisplacementByUnits, parseDisplacementType("BY_UNITS"))
	require.Equal(t, engine.DisplacementByVolume, parseDisplacementType("BY_VOLUME"))
	require.Equal(t, engine.DisplacementEquivalent, parseDisplacementType("anything else"))
}

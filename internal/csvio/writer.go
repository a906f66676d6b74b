// Package csvio serializes engine.EngineResult records to the §6.2
// output layout: one row per (scenario, trial, year, application,
// substance), each cell rendered "<value> <units>". Serialization is
// standard-library-only (encoding/csv, encoding/json) since no example
// repo carries a CSV/JSON library beyond what the standard library
// already provides for this shape.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/example/kigalisim/internal/engine"
	"github.com/example/kigalisim/internal/value"
)

// Columns is the exact §6.2 column order, with a leading runId column
// (§1.2) identifying the engine instance that produced each row.
var Columns = []string{
	"runId", "scenario", "trial", "year", "application", "substance",
	"domestic", "import", "recycle",
	"domesticConsumption", "importConsumption", "recycleConsumption",
	"population", "populationNew",
	"rechargeEmissions", "eolEmissions",
	"energyConsumption",
	"initialChargeValue", "initialChargeConsumption",
	"importNewPopulation",
}

// Writer serializes EngineResult rows to an underlying io.Writer as CSV.
type Writer struct {
	csv    *csv.Writer
	header bool
}

// NewWriter wraps w, writing the §6.2 header row before the first record.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteResult appends one row. scenario and trial are caller-supplied
// since EngineResult itself is engine-local and does not know its own
// run identity until the caller assigns one.
func (w *Writer) WriteResult(scenario string, trial int, r engine.EngineResult) error {
	if !w.header {
		if err := w.csv.Write(Columns); err != nil {
			return err
		}
		w.header = true
	}

	row := []string{
		r.RunID.String(),
		scenario,
		itoa(trial),
		itoa(r.Year),
		r.Application,
		r.Substance,
		cell(r.DomesticKg),
		cell(r.ImportKg),
		cell(r.RecycleKg),
		cell(r.DomesticTco2e),
		cell(r.ImportTco2e),
		cell(r.RecycleTco2e),
		cell(r.Population),
		cell(r.NewPopulation),
		cell(r.RechargeEmissionsTco2e),
		cell(r.EolEmissionsTco2e),
		cell(r.EnergyConsumptionKwh),
		cell(r.InitialChargeKg),
		cell(r.InitialChargeEmissionsTco2e),
		cell(r.ImportForInitialChargeUnits),
	}
	return w.csv.Write(row)
}

// Flush flushes any buffered rows and returns the first write error, if any.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

func cell(v value.Value) string {
	return v.String()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// jsonResult is the wire shape for MarshalResultJSON, following
// the same "<amount> <units>" cell convention as the CSV layout so both
// outputs agree on how a Value renders.
type jsonResult struct {
	RunID    string `json:"runId"`
	Scenario string `json:"scenario"`
	Trial    int    `json:"trial"`
	Year     int    `json:"year"`

	Application string `json:"application"`
	Substance   string `json:"substance"`

	Domestic string `json:"domestic"`
	Import   string `json:"import"`
	Recycle  string `json:"recycle"`

	DomesticConsumption string `json:"domesticConsumption"`
	ImportConsumption   string `json:"importConsumption"`
	RecycleConsumption  string `json:"recycleConsumption"`

	Population    string `json:"population"`
	PopulationNew string `json:"populationNew"`

	RechargeEmissions string `json:"rechargeEmissions"`
	EolEmissions      string `json:"eolEmissions"`

	EnergyConsumption string `json:"energyConsumption"`

	InitialChargeValue       string `json:"initialChargeValue"`
	InitialChargeConsumption string `json:"initialChargeConsumption"`
	ImportNewPopulation      string `json:"importNewPopulation"`
}

// MarshalResultJSON renders r as the additive JSON export supplement
// described alongside the §6.2 CSV layout, sharing its cell rendering.
func MarshalResultJSON(scenario string, trial int, r engine.EngineResult) ([]byte, error) {
	return json.Marshal(jsonResult{
		RunID: r.RunID.String(), Scenario: scenario, Trial: trial, Year: r.Year,
		Application: r.Application, Substance: r.Substance,
		Domestic: cell(r.DomesticKg), Import: cell(r.ImportKg), Recycle: cell(r.RecycleKg),
		DomesticConsumption: cell(r.DomesticTco2e), ImportConsumption: cell(r.ImportTco2e), RecycleConsumption: cell(r.RecycleTco2e),
		Population: cell(r.Population), PopulationNew: cell(r.NewPopulation),
		RechargeEmissions: cell(r.RechargeEmissionsTco2e), EolEmissions: cell(r.EolEmissionsTco2e),
		EnergyConsumption:        cell(r.EnergyConsumptionKwh),
		InitialChargeValue:       cell(r.InitialChargeKg),
		InitialChargeConsumption: cell(r.InitialChargeEmissionsTco2e),
		ImportNewPopulation:      cell(r.ImportForInitialChargeUnits),
	})
}

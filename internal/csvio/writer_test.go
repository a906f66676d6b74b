package csvio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/kigalisim/internal/engine"
	"github.com/example/kigalisim/internal/value"
)

func sampleResult() engine.EngineResult {
	return engine.EngineResult{
		Application: "Domestic Refrigeration",
		Substance:   "HFC-134a",
		Year:        2025,
		RunID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		DomesticKg:  value.New(100, value.UnitKg),
		ImportKg:    value.New(50, value.UnitKg),
		RecycleKg:   value.New(0, value.UnitKg),
	}
}

func TestWriter_WritesHeaderOnceThenRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteResult("BAU", 1, sampleResult()))
	require.NoError(t, w.WriteResult("BAU", 1, sampleResult()))
	require.NoError(t, w.Flush())

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header + 2 rows")
	require.Equal(t, Columns, records[0])
	require.Equal(t, "00000000-0000-0000-0000-000000000001", records[1][0])
	require.Equal(t, "BAU", records[1][1])
	require.Equal(t, "100 kg", records[1][6])
}

func TestMarshalResultJSON_RoundTripsRunIDAndCells(t *testing.T) {
	raw, err := MarshalResultJSON("BAU", 2, sampleResult())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "00000000-0000-0000-0000-000000000001", decoded["runId"])
	require.Equal(t, float64(2), decoded["trial"])
	require.Equal(t, "100 kg", decoded["domestic"])
}

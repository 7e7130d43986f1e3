package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

func sampleRecords() []Record {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{
			ID:          2,
			TextHash:    "h2",
			Text:        "She go, \"home\"",
			Annotations: []overlay.Annotation{{Word: "go", Position: 4}},
			Highlights:  1,
			CreatedAt:   created,
		},
		{
			ID:        1,
			TextHash:  "h1",
			Text:      "Fine.",
			Skipped:   1,
			CreatedAt: created.Add(-time.Hour),
		},
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("out/history.CSV"))
	assert.Equal(t, FormatParquet, DetectFormat("history.parquet"))
	assert.Equal(t, FormatParquet, DetectFormat("history.pq"))
	assert.Equal(t, FormatJSON, DetectFormat("history.jsonl"))
	assert.Equal(t, FormatJSON, DetectFormat("history"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := Export(&buf, FormatCSV, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "She go, \"home\"", rows[1][2])
	assert.Equal(t, `[{"word":"go","position":4}]`, rows[1][3])
	assert.Equal(t, "2024-03-01T12:00:00Z", rows[1][6])
	assert.Equal(t, "null", rows[2][3])
}

func TestExportJSONLines(t *testing.T) {
	var buf bytes.Buffer
	_, err := Export(&buf, FormatJSON, sampleRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var row ExportRow
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, int64(2), row.ID)
	assert.Equal(t, int64(1), row.Highlights)
}

func TestExportParquet(t *testing.T) {
	var buf bytes.Buffer
	n, err := Export(&buf, FormatParquet, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := ReadParquet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	want, err := ToExportRow(sampleRecords()[0])
	require.NoError(t, err)
	assert.Equal(t, want, rows[0])
	assert.Equal(t, "h1", rows[1].TextHash)
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := Export(&bytes.Buffer{}, Format("xml"), sampleRecords())
	assert.Error(t, err)
}

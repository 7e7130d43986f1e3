package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
)

// Format is an export file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// DetectFormat picks a format from a file extension; unknown extensions
// default to JSON lines.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatJSON
	}
}

// ParseFormat validates a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ExportRow is the flat shape written to export files
type ExportRow struct {
	ID          int64  `parquet:"id" json:"id"`
	TextHash    string `parquet:"text_hash" json:"text_hash"`
	Text        string `parquet:"text" json:"text"`
	Annotations string `parquet:"annotations" json:"annotations"`
	Highlights  int64  `parquet:"highlights" json:"highlights"`
	Skipped     int64  `parquet:"skipped" json:"skipped"`
	CreatedAt   string `parquet:"created_at" json:"created_at"`
}

var csvHeader = []string{"id", "text_hash", "text", "annotations", "highlights", "skipped", "created_at"}

// ToExportRow flattens a record
func ToExportRow(rec Record) (ExportRow, error) {
	anns, err := json.Marshal(rec.Annotations)
	if err != nil {
		return ExportRow{}, err
	}
	return ExportRow{
		ID:          rec.ID,
		TextHash:    rec.TextHash,
		Text:        rec.Text,
		Annotations: string(anns),
		Highlights:  int64(rec.Highlights),
		Skipped:     int64(rec.Skipped),
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// Export writes records to w in the given format and returns the row count
func Export(w io.Writer, format Format, records []Record) (int, error) {
	rows := make([]ExportRow, 0, len(records))
	for _, rec := range records {
		r, err := ToExportRow(rec)
		if err != nil {
			return 0, fmt.Errorf("failed to flatten record %d: %w", rec.ID, err)
		}
		rows = append(rows, r)
	}

	var err error
	switch format {
	case FormatCSV:
		err = exportCSV(w, rows)
	case FormatJSON:
		err = exportJSON(w, rows)
	case FormatParquet:
		err = exportParquet(w, rows)
	default:
		err = fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func exportCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.TextHash,
			r.Text,
			r.Annotations,
			strconv.FormatInt(r.Highlights, 10),
			strconv.FormatInt(r.Skipped, 10),
			r.CreatedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// exportJSON writes one JSON object per line
func exportJSON(w io.Writer, rows []ExportRow) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write JSON record: %w", err)
		}
	}
	return nil
}

func exportParquet(w io.Writer, rows []ExportRow) error {
	pw := parquet.NewWriter(w, parquet.SchemaOf(ExportRow{}))
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			return fmt.Errorf("failed to write Parquet row: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish Parquet file: %w", err)
	}
	return nil
}

// ReadParquet reads rows previously written by Export
func ReadParquet(r io.ReaderAt) ([]ExportRow, error) {
	reader := parquet.NewReader(r)
	defer reader.Close()

	var rows []ExportRow
	for {
		var row ExportRow
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

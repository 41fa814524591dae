// Package writer persists the extracted record set as the working CSV
// that ingestion later reads. Single-writer access to the working file
// is assumed; concurrent runs must be serialized by the caller.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

const dateLayout = "2006-01-02"

var header = []string{"ID", "Date", "Value", "Category", "Reference"}

// CSVWriter writes transaction records in the working-file column
// order: ID, Date, Value, Category, Reference.
type CSVWriter struct{}

// WriteToFile writes the record set to a CSV file at the given path,
// replacing any previous working file.
func (w *CSVWriter) WriteToFile(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create working file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, records)
}

// Write writes records in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, records []models.Record) error {
	cw := csv.NewWriter(out)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		value := ""
		if rec.Value != nil {
			value = strconv.FormatFloat(*rec.Value, 'f', 2, 64)
		}
		row := []string{rec.ID, rec.Date.Format(dateLayout), value, rec.Category, rec.Reference}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return cw.Error()
}

// ReadFile loads a record set back from a working CSV file.
func ReadFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open working file %q: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses records from CSV data written by CSVWriter.
func Read(in io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(in)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read working CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("working CSV is empty")
	}

	records := make([]models.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("working CSV row %d: expected %d columns, got %d", i+2, len(header), len(row))
		}
		date, err := time.Parse(dateLayout, row[1])
		if err != nil {
			return nil, fmt.Errorf("working CSV row %d: bad date %q: %w", i+2, row[1], err)
		}
		rec := models.Record{
			ID:        row[0],
			Date:      date,
			Category:  row[3],
			Reference: row[4],
		}
		if row[2] != "" {
			v, err := strconv.ParseFloat(row[2], 64)
			if err != nil {
				return nil, fmt.Errorf("working CSV row %d: bad value %q: %w", i+2, row[2], err)
			}
			rec.Value = &v
		}
		records = append(records, rec)
	}
	return records, nil
}

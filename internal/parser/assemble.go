package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Assembler turns the extracted field tuples of one document into
// transaction records: strict date validation, sequential ID
// assignment, final reference scrub and amount normalization.
type Assembler struct {
	log zerolog.Logger
}

func NewAssembler(log zerolog.Logger) *Assembler {
	return &Assembler{log: log}
}

// Assemble builds records from fields in line order. Rows whose date
// does not parse as a real DD/MM/YYYY date are dropped; that is an
// expected filtering step, not an error. IDs are year+month plus a
// two-digit 1-based counter over the retained rows.
func (a *Assembler) Assemble(doc models.Document, fields []Fields) []models.Record {
	records := make([]models.Record, 0, len(fields))
	seq := 0
	for _, f := range fields {
		date, err := time.Parse("02/01/2006", f.Date)
		if err != nil {
			a.log.Debug().
				Str("date", f.Date).
				Str("reference", f.Reference).
				Msg("dropping row with invalid date")
			continue
		}
		seq++
		records = append(records, models.Record{
			ID:        fmt.Sprintf("%s%s%02d", doc.Year, doc.Month, seq),
			Date:      date,
			Value:     normalizeAmount(f.Amount),
			Reference: scrubReference(f.Reference),
		})
	}
	return records
}

// scrubReference applies the second cleanup pass: commas, apostrophes
// and spaces are stripped wherever they occur.
func scrubReference(ref string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '\'', ' ':
			return -1
		}
		return r
	}, ref)
}

// normalizeAmount converts a comma-decimal wire amount ("12,34",
// "1 234,56") to a float. Unparseable values become a missing amount
// rather than failing the record.
func normalizeAmount(s string) *float64 {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

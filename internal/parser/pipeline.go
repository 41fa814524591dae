package parser

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Classifier assigns a category label to a cleaned reference string.
// It must never fail: scoring problems fall back to the default label.
type Classifier interface {
	Classify(reference string) string
}

// DocumentError reports a document that the run skipped entirely,
// typically because its balance markers were missing.
type DocumentError struct {
	Year  string
	Month string
	Err   error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("statement %s-%s: %v", e.Year, e.Month, e.Err)
}

func (e DocumentError) Unwrap() error { return e.Err }

// Pipeline runs segmentation, field extraction, assembly and
// classification over a batch of statement documents.
type Pipeline struct {
	seg        *Segmenter
	extractor  *FieldExtractor
	assembler  *Assembler
	classifier Classifier
	log        zerolog.Logger
}

func NewPipeline(seg *Segmenter, classifier Classifier, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		seg:        seg,
		extractor:  NewFieldExtractor(log),
		assembler:  NewAssembler(log),
		classifier: classifier,
		log:        log,
	}
}

// Run extracts records from every document and returns them flattened
// in document order, each carrying its classified category. A document
// missing its markers is reported in the second return value and the
// run continues with the remaining documents.
func (p *Pipeline) Run(docs []models.Document) ([]models.Record, []DocumentError) {
	var all []models.Record
	var skipped []DocumentError

	for _, doc := range docs {
		lines, err := p.seg.Lines(doc)
		if err != nil {
			p.log.Error().
				Str("year", doc.Year).
				Str("month", doc.Month).
				Err(err).
				Msg("skipping statement")
			skipped = append(skipped, DocumentError{Year: doc.Year, Month: doc.Month, Err: err})
			continue
		}

		var fields []Fields
		for line := range lines {
			fields = append(fields, p.extractor.Extract(line))
		}

		records := p.assembler.Assemble(doc, fields)
		for i := range records {
			records[i].Category = p.classifier.Classify(records[i].Reference)
		}

		p.log.Info().
			Str("year", doc.Year).
			Str("month", doc.Month).
			Int("records", len(records)).
			Msg("statement parsed")
		all = append(all, records...)
	}

	return all, skipped
}

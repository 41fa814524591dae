// Package classify maps transaction references to spending categories
// using a pre-trained bag-of-words naive Bayes model.
package classify

import (
	"strings"

	"github.com/jbrukh/bayesian"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// threshold is the minimum class probability required to accept a
// prediction. It is strict: a score of exactly 0.3 falls back to Other.
const threshold = 0.3

// Model wraps a trained classifier. It is loaded once per process and
// shared read-only; Classify never reloads or refits anything.
type Model struct {
	cl  *bayesian.Classifier
	log zerolog.Logger
}

// Load reads a serialized classifier artifact from disk.
func Load(path string, log zerolog.Logger) (*Model, error) {
	cl, err := bayesian.NewClassifierFromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading classifier artifact %s", path)
	}
	return &Model{cl: cl, log: log}, nil
}

// Save writes the classifier artifact to disk.
func (m *Model) Save(path string) error {
	if err := m.cl.WriteToFile(path); err != nil {
		return errors.Wrapf(err, "writing classifier artifact %s", path)
	}
	return nil
}

// Classify returns the category for a cleaned reference string. The
// predicted label is accepted only when its probability clears the
// confidence threshold and decodes against the fixed label set;
// anything else, including scoring errors, yields the fallback. The
// classifier never fails the pipeline.
func (m *Model) Classify(reference string) string {
	terms := tokenize(reference)
	if len(terms) == 0 {
		return Fallback
	}

	scores, inx, _, err := m.cl.SafeProbScores(terms)
	if err != nil {
		m.log.Warn().Str("reference", reference).Err(err).
			Msg("classifier scoring failed, falling back")
		return Fallback
	}
	if inx < 0 || inx >= len(scores) {
		return Fallback
	}

	return decide(scores[inx], string(m.cl.Classes[inx]))
}

// decide applies the confidence gate and label decoding to a single
// prediction.
func decide(probability float64, class string) string {
	if probability <= threshold {
		return Fallback
	}
	if _, known := Labels[class]; !known {
		return Fallback
	}
	return class
}

// Unavailable stands in when no trained artifact exists yet: every
// reference is categorized as the fallback label.
type Unavailable struct{}

func (Unavailable) Classify(string) string { return Fallback }

// tokenize lowercases a reference and splits it into scoring terms.
// References arrive space-stripped from assembly, so this is usually a
// single term.
func tokenize(reference string) []string {
	return strings.Fields(strings.ToLower(reference))
}

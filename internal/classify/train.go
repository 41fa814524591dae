package classify

import (
	"bufio"
	"os"
	"strings"

	"github.com/jbrukh/bayesian"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Train builds a model from a labeled corpus file: one
// "label<TAB>reference" pair per line, blank lines and lines starting
// with '#' ignored. Every label must belong to the fixed label set.
//
// The classifier is fitted over the full label set in class-id order so
// that artifacts trained from different corpora share the same feature
// space.
func Train(corpusPath string, log zerolog.Logger) (*Model, error) {
	f, err := os.Open(corpusPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening corpus %s", corpusPath)
	}
	defer f.Close()

	classes := make([]bayesian.Class, 0, len(Labels))
	for _, name := range LabelNames() {
		classes = append(classes, bayesian.Class(name))
	}
	cl := bayesian.NewClassifier(classes...)

	lineNum := 0
	learned := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, text, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, errors.Errorf("corpus %s:%d: expected label<TAB>reference", corpusPath, lineNum)
		}
		if _, known := Labels[label]; !known {
			return nil, errors.Errorf("corpus %s:%d: unknown label %q", corpusPath, lineNum, label)
		}
		terms := tokenize(text)
		if len(terms) == 0 {
			continue
		}
		cl.Learn(terms, bayesian.Class(label))
		learned++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading corpus %s", corpusPath)
	}
	if learned == 0 {
		return nil, errors.Errorf("corpus %s contains no training pairs", corpusPath)
	}

	log.Info().Int("examples", learned).Msg("classifier trained")
	return &Model{cl: cl, log: log}, nil
}

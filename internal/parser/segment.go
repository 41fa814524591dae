package parser

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// ErrSegmentNotFound is returned when a statement text is missing one
// of the balance markers that delimit its transaction region.
var ErrSegmentNotFound = errors.New("transaction segment markers not found")

// CandidateLine is a single line from the transaction region of a
// statement, tagged with the year/month of the originating document.
type CandidateLine struct {
	Text  string
	Year  string
	Month string
}

// Segmenter locates the transaction region of a statement between two
// fixed balance markers and walks its transaction-bearing lines.
//
// The first and last lines of the region are header/footer noise and
// are always dropped. A line is transaction-bearing only when its last
// three characters contain the comma decimal separator and it begins
// with a DD/MM date token; anything else is silently skipped.
type Segmenter struct {
	Start string
	End   string
}

var leadingDatePattern = regexp.MustCompile(`^\d\d/\d\d`)

func NewSegmenter(start, end string) *Segmenter {
	return &Segmenter{Start: start, End: end}
}

// Lines returns a one-shot sequence over the candidate lines of doc.
// It fails with ErrSegmentNotFound when either marker is absent.
func (s *Segmenter) Lines(doc models.Document) (iter.Seq[CandidateLine], error) {
	start := strings.Index(doc.Text, s.Start)
	if start < 0 {
		return nil, fmt.Errorf("start marker %q: %w", s.Start, ErrSegmentNotFound)
	}
	rest := doc.Text[start+len(s.Start):]
	end := strings.Index(rest, s.End)
	if end < 0 {
		return nil, fmt.Errorf("end marker %q: %w", s.End, ErrSegmentNotFound)
	}

	lines := strings.Split(rest[:end], "\n")
	if len(lines) > 2 {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = nil
	}

	return func(yield func(CandidateLine) bool) {
		for _, line := range lines {
			if !isCandidate(line) {
				continue
			}
			cl := CandidateLine{Text: line, Year: doc.Year, Month: doc.Month}
			if !yield(cl) {
				return
			}
		}
	}, nil
}

// isCandidate reports whether a line looks like a transaction: comma in
// the trailing three characters and a leading DD/MM token.
func isCandidate(line string) bool {
	r := []rune(line)
	if len(r) < 3 {
		return false
	}
	if !strings.ContainsRune(string(r[len(r)-3:]), ',') {
		return false
	}
	return leadingDatePattern.MatchString(line)
}

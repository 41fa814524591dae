package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ErrAmountNotFound is returned when none of the trailing amount shapes
// matched the end of a reference.
var ErrAmountNotFound = errors.New("no amount found at end of reference")

// Sentinels substituted when extraction of a single line partially
// fails. A bad line never aborts the run.
const (
	amountSentinel    = "0,00"
	referenceSentinel = "ERROR"
)

// Fields holds the raw values pulled out of one candidate line:
// a DD/MM/YYYY date string, the amount in comma-decimal wire form and
// the noise-filtered reference text.
type Fields struct {
	Date      string
	Amount    string
	Reference string
}

var (
	// Dates embedded inside the reference (not the leading date token),
	// e.g. card transaction dates like 12/03/2020.
	innerDatePattern = regexp.MustCompile(`\d+/\d+/\d+`)
	// Transaction/card reference numbers.
	digitRunPattern = regexp.MustCompile(`\d{4,10}`)
	// Amounts carrying a thousands separator once dots have been
	// normalized to spaces: "1 234,56", "12 345,67".
	thousandsPattern = regexp.MustCompile(`\b\d{1,2} ?\d{3},\d{2}`)
)

// FieldExtractor parses a qualifying candidate line into its date,
// amount and reference parts using positional heuristics.
type FieldExtractor struct {
	log zerolog.Logger
}

func NewFieldExtractor(log zerolog.Logger) *FieldExtractor {
	return &FieldExtractor{log: log}
}

// Extract returns the fields of one candidate line. Amount extraction
// failure substitutes the "0,00" sentinel and marks the reference as
// "ERROR"; the failure is logged, never propagated.
func (e *FieldExtractor) Extract(line CandidateLine) Fields {
	date := statementDate(line)

	rest := ""
	if len(line.Text) > 6 {
		rest = line.Text[6:]
	}
	filtered := filterReference(rest)

	amount, err := extractAmount(filtered)
	if err != nil {
		e.log.Warn().
			Str("line", line.Text).
			Err(err).
			Msg("could not extract amount, substituting sentinel")
		return Fields{Date: date, Amount: amountSentinel, Reference: referenceSentinel}
	}

	// Drop the matched amount text from the reference. When the match
	// came out of the dot-normalized form it may not appear verbatim;
	// that miss is swallowed and the amount text stays in the reference.
	reference := strings.TrimSpace(strings.Replace(filtered, amount, "", 1))

	return Fields{
		Date:      date,
		Amount:    strings.TrimSpace(amount),
		Reference: reference,
	}
}

// statementDate combines the leading DD/MM token with the document
// year. A December transaction on a January statement belongs to the
// previous year.
func statementDate(line CandidateLine) string {
	year := line.Year
	if line.Text[3:5] == "12" && line.Month == "01" {
		if y, err := strconv.Atoi(line.Year); err == nil {
			year = strconv.Itoa(y - 1)
		}
	}
	return line.Text[:5] + "/" + year
}

// filterReference removes noise from the reference before amount
// scanning: any embedded full date, the first 4-10 digit reference
// number, and stray punctuation.
func filterReference(ref string) string {
	if m := innerDatePattern.FindString(ref); m != "" {
		ref = strings.ReplaceAll(ref, m, "")
	}
	if m := digitRunPattern.FindString(ref); m != "" {
		ref = strings.ReplaceAll(ref, m, "")
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune("-?!/;:_", r) {
			return -1
		}
		return r
	}, ref)
}

// extractAmount scans the end of a reference for the transaction value.
// Dots are normalized to spaces first so decimal points cannot be
// confused with thousands separators. The trailing shapes tried are
// " x,xx", " xx,xx" and " xxx,xx"; the last one also accepts a
// thousands-separated form ("x xxx,xx", "xx xxx,xx").
func extractAmount(ref string) (string, error) {
	ref = strings.ReplaceAll(ref, ".", " ")
	r := []rune(ref)
	n := len(r)
	switch {
	case n >= 5 && r[n-5] == ' ':
		return string(r[n-5:]), nil
	case n >= 6 && r[n-6] == ' ':
		return string(r[n-6:]), nil
	case n >= 7 && r[n-7] == ' ':
		if m := thousandsPattern.FindString(ref); m != "" {
			return m, nil
		}
		return string(r[n-6:]), nil
	}
	return "", ErrAmountNotFound
}

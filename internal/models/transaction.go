package models

import (
	"fmt"
	"regexp"
	"time"
)

// Record is one transaction extracted from a statement, ready to be
// persisted. Value is nil when the amount could not be normalized into
// a number.
type Record struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Value     *float64  `json:"value"`
	Category  string    `json:"category"`
	Reference string    `json:"reference"`
}

// Document is one statement to be parsed: the year/month it covers
// (derived from the source filename) plus the full extracted text of
// all its pages. Immutable once built.
type Document struct {
	Year  string // e.g. "2020"
	Month string // e.g. "03"
	Text  string
}

// statementStamp matches the trailing YYYYMMDD stamp in statement
// filenames, e.g. "RELEVES_MR SURNAME FIRSTNAME_20140220.pdf".
var statementStamp = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})\.(?:pdf|txt)$`)

// ParseStamp extracts the statement year and month from a filename
// ending in an 8-digit date stamp before the .pdf or .txt extension.
func ParseStamp(filename string) (year, month string, err error) {
	m := statementStamp.FindStringSubmatch(filename)
	if m == nil {
		return "", "", fmt.Errorf("filename %q missing YYYYMMDD date stamp before extension", filename)
	}
	return m[1], m[2], nil
}

// Package extractor turns statement PDFs into per-page text. Digital
// PDFs are read through their text layer; scanned statements fall back
// to OCR.
package extractor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// PageProgress reports per-page extraction completion, used to drive a
// live progress indicator. done counts finished pages out of total.
type PageProgress func(done, total int)

// ExtractPages returns the text of each page of a statement PDF. The
// text layer is tried first, then raw content-stream decoding for PDFs
// whose fonts the library cannot map, then OCR. onPage may be nil.
func ExtractPages(path string, onPage PageProgress) ([]string, error) {
	pages, layerErr := extractTextLayer(path)
	if layerErr == nil && isReadableText(pages) {
		if onPage != nil {
			onPage(len(pages), len(pages))
		}
		return pages, nil
	}

	if pages, err := extractRawText(path); err == nil && isReadableText(pages) {
		if onPage != nil {
			onPage(len(pages), len(pages))
		}
		return pages, nil
	}

	pages, ocrErr := extractOCR(path, onPage)
	if ocrErr == nil && isReadableText(pages) {
		return pages, nil
	}

	if layerErr != nil {
		return nil, fmt.Errorf("text extraction failed: text layer: %v, ocr: %v", layerErr, ocrErr)
	}
	return nil, fmt.Errorf("no readable text could be extracted from %s: %v", path, ocrErr)
}

// extractTextLayer reads the embedded text layer with row grouping.
// Recovers from library panics, which happen on malformed PDFs.
func extractTextLayer(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}

// statementWords appear in virtually every statement our sources
// produce. Extracted text containing none of them is garbage.
var statementWords = []string{
	"solde", "date", "compte", "banque", "carte", "paiement",
	"virement", "retrait", "releve", "montant",
}

// isReadableText checks that pages contain enough text, that it is
// mostly readable characters rather than binary garbage, and that at
// least one expected statement word appears.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range statementWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// textQuality returns the ratio of readable characters (letters,
// digits, punctuation common in statements, whitespace) to total.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"€$*&?!+=", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

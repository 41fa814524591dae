package extractor

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// extractRawText pulls text straight out of the PDF byte stream, without
// going through the pdf library. Some statement PDFs carry CIDFont/Type0
// fonts whose text layer the library renders as garbage; their ToUnicode
// CMap tables still let us decode the content streams directly. Returns
// nil pages when the file has no decodable text, which sends the caller
// on to OCR.
func extractRawText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	streams := rawStreams(data)
	if len(streams) == 0 {
		return nil, nil
	}

	cmap := collectCMaps(data)

	var texts []string
	for _, stream := range streams {
		text := streamText(inflate(stream), cmap)
		if text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return []string{strings.Join(texts, "\n")}, nil
}

// rawStreams returns every stream...endstream payload in the file.
func rawStreams(data []byte) [][]byte {
	var streams [][]byte
	startMarker := []byte("stream")
	endMarker := []byte("endstream")

	offset := 0
	for offset < len(data) {
		idx := bytes.Index(data[offset:], startMarker)
		if idx < 0 {
			break
		}
		start := offset + idx + len(startMarker)
		if start < len(data) && data[start] == '\r' {
			start++
		}
		if start < len(data) && data[start] == '\n' {
			start++
		}

		endIdx := bytes.Index(data[start:], endMarker)
		if endIdx < 0 {
			break
		}
		if endIdx > 0 {
			streams = append(streams, data[start:start+endIdx])
		}
		offset = start + endIdx + len(endMarker)
	}
	return streams
}

// inflate zlib-decompresses a stream payload, passing it through
// unchanged when it is not compressed.
func inflate(data []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return out
}

// PDF text operators.
var (
	hexTjPattern   = regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*Tj`)
	litTjPattern   = regexp.MustCompile(`\(([^)]*)\)\s*Tj`)
	tjArrayPattern = regexp.MustCompile(`\[([^\]]*)\]\s*TJ`)
	hexInArrayRe   = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
	litInArrayRe   = regexp.MustCompile(`\(([^)]*)\)`)
	tickPattern    = regexp.MustCompile(`\(([^)]*)\)\s*'`)
	// Td/TD moves the text cursor, which is what line breaks look like
	// inside a content stream.
	tdPattern = regexp.MustCompile(`([\d.\-]+)\s+([\d.\-]+)\s+T[dD]`)
)

// streamText extracts readable text from one content stream.
func streamText(data []byte, cmap *cmapTable) string {
	content := string(data)
	if !strings.Contains(content, "Tj") && !strings.Contains(content, "TJ") &&
		!strings.Contains(content, "BT") {
		return ""
	}

	var lines []string
	for _, block := range textBlocks(content) {
		lines = append(lines, blockLines(block, cmap)...)
	}
	if len(lines) == 0 {
		// No BT/ET structure; harvest whatever strings the stream holds.
		if text := looseText(content, cmap); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// textBlocks returns the BT...ET sections of a content stream.
func textBlocks(content string) []string {
	var blocks []string
	for {
		bt := strings.Index(content, "BT")
		if bt < 0 {
			break
		}
		et := strings.Index(content[bt:], "ET")
		if et < 0 {
			break
		}
		blocks = append(blocks, content[bt:bt+et+2])
		content = content[bt+et+2:]
	}
	return blocks
}

// blockLines walks one text block operator by operator, breaking lines on
// cursor moves.
func blockLines(block string, cmap *cmapTable) []string {
	var lines []string
	var current strings.Builder

	flush := func() {
		if line := strings.TrimSpace(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for _, op := range strings.Split(block, "\n") {
		op = strings.TrimSpace(op)

		if op == "T*" || tdPattern.MatchString(op) {
			flush()
		}

		for _, m := range hexTjPattern.FindAllStringSubmatch(op, -1) {
			current.WriteString(decodeHexString(m[1], cmap))
		}
		for _, m := range litTjPattern.FindAllStringSubmatch(op, -1) {
			current.WriteString(decodeLiteralString(m[1], cmap))
		}
		for _, m := range tjArrayPattern.FindAllStringSubmatch(op, -1) {
			current.WriteString(decodeTJArray(m[1], cmap))
		}
		for _, m := range tickPattern.FindAllStringSubmatch(op, -1) {
			// The ' operator starts a new line before showing its string.
			flush()
			current.WriteString(decodeLiteralString(m[1], cmap))
		}
	}
	flush()

	return lines
}

// looseText collects every string operand in stream order, for streams
// without BT/ET blocks.
func looseText(content string, cmap *cmapTable) string {
	var parts []string
	for _, m := range hexTjPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeHexString(m[1], cmap); text != "" {
			parts = append(parts, text)
		}
	}
	for _, m := range litTjPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeLiteralString(m[1], cmap); text != "" {
			parts = append(parts, text)
		}
	}
	for _, m := range tjArrayPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeTJArray(m[1], cmap); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// decodeHexString decodes a <hex> string operand. CMap translation is
// tried first, then UTF-16BE, then plain ASCII.
func decodeHexString(hexStr string, cmap *cmapTable) string {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return ""
	}

	if cmap != nil {
		if text := cmap.decode(raw); text != "" {
			return text
		}
	}

	if len(raw) >= 2 && len(raw)%2 == 0 {
		var b strings.Builder
		for i := 0; i+1 < len(raw); i += 2 {
			cp := rune(raw[i])<<8 | rune(raw[i+1])
			if unicode.IsPrint(cp) || cp == ' ' {
				b.WriteRune(cp)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}

	return cleanString(string(raw))
}

// decodeLiteralString decodes a (literal) string operand.
func decodeLiteralString(s string, cmap *cmapTable) string {
	decoded := decodePDFEscapes(s)
	if cmap != nil {
		if text := cmap.decode([]byte(decoded)); text != "" && isPrintable(text) {
			return text
		}
	}
	return cleanString(decoded)
}

// decodeTJArray decodes a TJ array operand, which interleaves strings
// with kerning numbers. The numbers are dropped; the strings are decoded
// in stream order.
func decodeTJArray(arrayContent string, cmap *cmapTable) string {
	type operand struct {
		pos   int
		isHex bool
		value string
	}
	var operands []operand

	for _, idx := range hexInArrayRe.FindAllStringSubmatchIndex(arrayContent, -1) {
		operands = append(operands, operand{pos: idx[0], isHex: true, value: arrayContent[idx[2]:idx[3]]})
	}
	for _, idx := range litInArrayRe.FindAllStringSubmatchIndex(arrayContent, -1) {
		operands = append(operands, operand{pos: idx[0], value: arrayContent[idx[2]:idx[3]]})
	}
	sort.Slice(operands, func(i, j int) bool { return operands[i].pos < operands[j].pos })

	var b strings.Builder
	for _, op := range operands {
		if op.isHex {
			b.WriteString(decodeHexString(op.value, cmap))
		} else {
			b.WriteString(decodeLiteralString(op.value, cmap))
		}
	}
	return b.String()
}

// decodePDFEscapes resolves backslash escapes in a literal PDF string,
// including octal character codes.
func decodePDFEscapes(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '(', ')', '\\':
				buf.WriteByte(s[i])
			default:
				if s[i] >= '0' && s[i] <= '7' {
					val := int(s[i] - '0')
					for j := 1; j < 3 && i+j < len(s) && s[i+j] >= '0' && s[i+j] <= '7'; j++ {
						val = val*8 + int(s[i+j]-'0')
						i++
					}
					if val < 256 {
						buf.WriteByte(byte(val))
					}
				} else {
					buf.WriteByte(s[i])
				}
			}
		} else {
			buf.WriteByte(s[i])
		}
		i++
	}
	return buf.String()
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, s))
}

func isPrintable(s string) bool {
	if len(s) == 0 {
		return false
	}
	printable := 0
	for _, r := range s {
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len([]rune(s))) > 0.5
}

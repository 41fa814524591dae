package extractor

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
)

// cmapTable maps font character codes to Unicode text. PDF fonts embed
// these as ToUnicode CMap streams; without them, text from CIDFont
// content streams is just glyph indexes.
type cmapTable struct {
	// keys are uppercase hex-encoded character codes
	charMap map[string]string
}

var (
	bfCharBlockRe  = regexp.MustCompile(`(?s)beginbfchar\s*(.*?)\s*endbfchar`)
	bfRangeBlockRe = regexp.MustCompile(`(?s)beginbfrange\s*(.*?)\s*endbfrange`)
	hexTokenRe     = hexInArrayRe // same <hex> token shape as TJ arrays
)

// collectCMaps finds every ToUnicode CMap stream in the file and merges
// them into one table. Returns nil when the file has none.
func collectCMaps(data []byte) *cmapTable {
	merged := &cmapTable{charMap: make(map[string]string)}
	for _, stream := range rawStreams(data) {
		content := string(inflate(stream))
		if !strings.Contains(content, "beginbfchar") && !strings.Contains(content, "beginbfrange") {
			continue
		}
		parseCMap(content, merged)
	}
	if len(merged.charMap) == 0 {
		return nil
	}
	return merged
}

// parseCMap reads the bfchar and bfrange sections of one CMap stream
// into the table.
func parseCMap(content string, cm *cmapTable) {
	// bfchar: <srcCode> <unicodeValue> pairs
	for _, block := range bfCharBlockRe.FindAllStringSubmatch(content, -1) {
		tokens := hexTokenRe.FindAllStringSubmatch(block[1], -1)
		for i := 0; i+1 < len(tokens); i += 2 {
			if uni := hexToUnicode(tokens[i+1][1]); uni != "" {
				cm.charMap[strings.ToUpper(tokens[i][1])] = uni
			}
		}
	}

	// bfrange: <start> <end> <dstStart>, or <start> <end> [<u1> <u2> ...]
	for _, block := range bfRangeBlockRe.FindAllStringSubmatch(content, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.Contains(line, "[") {
				parseRangeArray(cm, line)
				continue
			}

			tokens := hexTokenRe.FindAllStringSubmatch(line, -1)
			if len(tokens) < 3 {
				continue
			}
			startHex, endHex, dstHex := tokens[0][1], tokens[1][1], tokens[2][1]
			startCode := hexToInt(startHex)
			endCode := hexToInt(endHex)
			dstCode := hexToInt(dstHex)
			if startCode < 0 || endCode < 0 || dstCode < 0 {
				continue
			}

			for code := startCode; code <= endCode; code++ {
				uni := hexToUnicode(intToHex(dstCode+(code-startCode), len(dstHex)))
				if uni != "" {
					cm.charMap[intToHex(code, len(startHex))] = uni
				}
			}
		}
	}
}

// parseRangeArray handles the array form of a bfrange line, which lists
// one destination value per code in the range.
func parseRangeArray(cm *cmapTable, line string) {
	bracket := strings.Index(line, "[")
	if bracket < 0 {
		return
	}

	tokens := hexTokenRe.FindAllStringSubmatch(line[:bracket], -1)
	if len(tokens) < 2 {
		return
	}
	startHex := tokens[0][1]
	startCode := hexToInt(startHex)

	for i, ut := range hexTokenRe.FindAllStringSubmatch(line[bracket:], -1) {
		if uni := hexToUnicode(ut[1]); uni != "" {
			cm.charMap[intToHex(startCode+i, len(startHex))] = uni
		}
	}
}

// decode translates raw character-code bytes into Unicode text. The
// code width is taken from the table's keys; unmapped multi-byte codes
// fall back to a single-byte lookup, unmapped single bytes pass through
// when they are printable ASCII.
func (cm *cmapTable) decode(raw []byte) string {
	if len(cm.charMap) == 0 {
		return ""
	}

	codeByteLen := 1
	for k := range cm.charMap {
		if n := len(k) / 2; n > 0 {
			codeByteLen = n
		}
		break
	}

	var result strings.Builder
	for i := 0; i <= len(raw)-codeByteLen; i += codeByteLen {
		chunk := raw[i : i+codeByteLen]
		key := strings.ToUpper(hex.EncodeToString(chunk))
		if uni, ok := cm.charMap[key]; ok {
			result.WriteString(uni)
			continue
		}
		if codeByteLen > 1 {
			key1 := strings.ToUpper(hex.EncodeToString(chunk[:1]))
			if uni, ok := cm.charMap[key1]; ok {
				result.WriteString(uni)
				i -= codeByteLen - 1
				continue
			}
		}
		if codeByteLen == 1 && chunk[0] >= 32 && chunk[0] < 127 {
			result.WriteByte(chunk[0])
		}
	}
	return result.String()
}

func hexToInt(h string) int {
	val := 0
	for _, c := range strings.ToUpper(h) {
		val <<= 4
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'A' && c <= 'F':
			val += int(c-'A') + 10
		default:
			return -1
		}
	}
	return val
}

func intToHex(val, hexLen int) string {
	h := fmt.Sprintf("%0*X", hexLen, val)
	if len(h) > hexLen {
		h = h[len(h)-hexLen:]
	}
	return h
}

// hexToUnicode converts a hex-encoded UTF-16BE destination value to a
// string, handling surrogate pairs.
func hexToUnicode(h string) string {
	if len(h)%2 != 0 {
		h = "0" + h
	}
	data, err := hex.DecodeString(h)
	if err != nil {
		return ""
	}

	if len(data) == 4 {
		hi := rune(data[0])<<8 | rune(data[1])
		lo := rune(data[2])<<8 | rune(data[3])
		if hi >= 0xD800 && hi <= 0xDBFF && lo >= 0xDC00 && lo <= 0xDFFF {
			return string(utf16.DecodeRune(hi, lo))
		}
	}

	var result strings.Builder
	for i := 0; i+1 < len(data); i += 2 {
		result.WriteRune(rune(data[i])<<8 | rune(data[i+1]))
	}
	return result.String()
}

package logparser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// texWrapColumn is TeX's default max_print_line; longer log lines are hard
// wrapped at this width.
const texWrapColumn = 79

// DecodeLog turns raw log bytes into text. Engines write the log in the
// input encoding, so anything that is not valid UTF-8 is read as Latin-1.
func DecodeLog(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}

// unwrapLines joins lines that TeX broke at the wrap column. A full-width
// line followed by the start of a diagnostic was not broken.
func unwrapLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	var b strings.Builder
	b.Grow(len(text))
	for i, line := range lines {
		b.WriteString(line)
		if i == len(lines)-1 {
			break
		}
		wrapped := len(line) == texWrapColumn || utf8.RuneCountInString(line) == texWrapColumn
		if wrapped && !startsUnit(lines[i+1]) {
			continue
		}
		b.WriteByte('\n')
	}
	return b.String()
}

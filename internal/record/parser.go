// Package record splits snapshot lines into positional fields.
//
// The dialect is the one produced by the spreadsheet converters: a quote
// character toggles a quoted span, delimiters inside the span are literal,
// quote characters never reach the output and doubled quotes are not
// unescaped. encoding/csv rejects bare quotes inside unquoted fields, which
// the converters emit, so the split is done here.
package record

import "strings"

// Dialect fixes the delimiter and quote characters.
type Dialect struct {
	Delimiter rune
	Quote     rune
}

// DefaultDialect is comma separated with double quotes.
var DefaultDialect = Dialect{Delimiter: ',', Quote: '"'}

// ParseLine returns the trimmed fields of one line. A quoted span that is
// never closed runs to the end of the line. Empty trailing fields are kept so
// positional access stays valid.
func ParseLine(line string, d Dialect) []string {
	line = strings.TrimRight(line, "\r\n")
	fields := make([]string, 0, 10)
	var current strings.Builder
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == d.Quote:
			inQuotes = !inQuotes
		case ch == d.Delimiter && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

// Parse is ParseLine with the default dialect.
func Parse(line string) []string {
	return ParseLine(line, DefaultDialect)
}

// SplitLines splits a resource body into non-blank lines, tolerating CRLF
// endings and a UTF-8 byte order mark.
func SplitLines(body string) []string {
	body = strings.TrimPrefix(body, "\ufeff")
	raw := strings.Split(body, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Field returns fields[i] or "" when the row is too short.
func Field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// IndexOf finds the column whose trimmed header equals name, or -1.
func IndexOf(headers []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Package dateutil converts between the stored ISO date of a document and
// the user-facing layouts shown in exports and accepted on the command line.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat indicates an invalid date format string.
var ErrInvalidDateFormat = errors.New("invalid date format")

// MaxDateFormatLength limits format string length.
const MaxDateFormatLength = 50

// ISOLayout is the storage layout of the metadata date field.
const ISOLayout = "2006-01-02"

// DefaultDisplayFormat is the footer layout of exported pages.
const DefaultDisplayFormat = "DD-MM-YYYY"

// dateTokens is ordered by length descending for greedy matching.
var dateTokens = []struct {
	token string
	goFmt string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// DatePresets provides named shortcuts for common display formats.
var DatePresets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"sop":      DefaultDisplayFormat,
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
}

// ParseDateFormat converts a token format (YYYY, YY, MMMM, MMM, MM, M, DD, D)
// or a preset name into a Go time layout. Bracketed text is kept literally,
// so "[Rev] YYYY" yields "Rev 2006".
func ParseDateFormat(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("%w: format cannot be empty", ErrInvalidDateFormat)
	}
	if len(format) > MaxDateFormatLength {
		return "", fmt.Errorf("%w: format exceeds %d characters", ErrInvalidDateFormat, MaxDateFormatLength)
	}
	if preset, ok := DatePresets[strings.ToLower(format)]; ok {
		format = preset
	}

	var b strings.Builder
	b.Grow(len(format) + 8)

	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i+1:], ']')
			if end == -1 {
				return "", fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidDateFormat, i)
			}
			b.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, t := range dateTokens {
			if strings.HasPrefix(format[i:], t.token) {
				b.WriteString(t.goFmt)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String(), nil
}

// FormatDisplayDate renders a stored YYYY-MM-DD date with the given token
// format. Values that are not ISO dates (free text, empty) pass through
// unchanged, as does everything when format is invalid.
func FormatDisplayDate(value, format string) string {
	t, err := time.Parse(ISOLayout, strings.TrimSpace(value))
	if err != nil {
		return value
	}
	layout, err := ParseDateFormat(format)
	if err != nil {
		return value
	}
	return t.Format(layout)
}

// ResolveDate normalizes a date given on the command line into storage form.
//   - "today" or "auto" -> t as YYYY-MM-DD
//   - "" -> ""
//   - a date in the ISO, sop or european layout -> YYYY-MM-DD
//
// Anything else is rejected so a typo never lands in the document.
func ResolveDate(value string, t time.Time) (string, error) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "":
		return "", nil
	case "today", "auto":
		return t.Format(ISOLayout), nil
	}

	for _, layout := range []string{ISOLayout, "02-01-2006", "02/01/2006"} {
		if parsed, err := time.Parse(layout, v); err == nil {
			return parsed.Format(ISOLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a date, use YYYY-MM-DD, DD-MM-YYYY or \"today\"", ErrInvalidDateFormat, value)
}

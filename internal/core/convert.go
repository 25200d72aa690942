package core

// convert.go turns raw cells into values for the COPY protocol.
//
// Cells are converted against the type pinned for their column. Tokens in
// nullTokens become NULL for every type. Anything else that does not parse
// as the pinned type is a *TypeMismatchError; nothing is coerced silently.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// nullTokens are the cell values read as NULL.
var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"#N/A": true,
	"NaN":  true,
	"-NaN": true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"<NA>": true,
}

// timestampLayouts are the accepted timestamp shapes, ISO 8601 only.
// Fractional seconds are accepted after any seconds field.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func isNull(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isBoolean(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

// parseTimestamp parses an ISO 8601 date or timestamp. Values with an
// offset are converted to UTC.
func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02") || s[4] != '-' {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// convertCell converts one cell to the Go value written for type t.
// NULL cells return nil.
func convertCell(t ColumnType, s string) (any, bool) {
	if isNull(s) {
		return nil, true
	}

	switch t {
	case TypeBigint:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return v, err == nil
	case TypeDouble:
		trimmed := strings.TrimSpace(s)
		if !numericRegex.MatchString(trimmed) {
			return nil, false
		}
		v, err := strconv.ParseFloat(trimmed, 64)
		return v, err == nil
	case TypeBoolean:
		trimmed := strings.TrimSpace(s)
		if !isBoolean(trimmed) {
			return nil, false
		}
		return strings.EqualFold(trimmed, "true"), true
	case TypeTimestamp:
		v, ok := parseTimestamp(strings.TrimSpace(s))
		if !ok {
			return nil, false
		}
		return v, true
	}
	return s, true
}

// convertRow builds a COPY row: the row index followed by the converted
// cells. line is the 1-based source line used in mismatch errors.
func convertRow(index int64, header []string, types []ColumnType, cells []string, line int64) ([]any, error) {
	out := make([]any, len(cells)+1)
	out[0] = index
	for i, cell := range cells {
		v, ok := convertCell(types[i], cell)
		if !ok {
			return nil, &TypeMismatchError{
				Column: header[i],
				Line:   line,
				Value:  cell,
				Type:   types[i],
			}
		}
		out[i+1] = v
	}
	return out, nil
}

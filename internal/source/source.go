// Package source opens tabular files and presents them as a header plus a
// stream of string rows.
//
// CSV files are read directly. TSV, XLSX, JSON and NDJSON files are
// converted on the fly into the same shape, so the loader never has to
// care about the input format.
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnsupportedFormat is returned for file extensions with no reader.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrTooManyFields is matched by every *FieldCountError.
	ErrTooManyFields = errors.New("too many fields")
)

// FieldCountError reports a row with more fields than the header.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("line %d: expected %d fields, saw %d", e.Line, e.Want, e.Got)
}

func (e *FieldCountError) Is(target error) bool {
	return target == ErrTooManyFields
}

// Format identifies a tabular file format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatXLSX   Format = "xlsx"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

var extFormats = map[string]Format{
	".csv":    FormatCSV,
	".tsv":    FormatTSV,
	".tab":    FormatTSV,
	".xlsx":   FormatXLSX,
	".xlsm":   FormatXLSX,
	".json":   FormatJSON,
	".ndjson": FormatNDJSON,
	".jsonl":  FormatNDJSON,
}

// DetectFormat maps a file extension (case-insensitive) to a Format.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// TableName returns the default table name for a file: its base name
// without the extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RowReader streams a tabular file.
type RowReader interface {
	// Header returns the normalized column names.
	Header() []string

	// Next returns the next data row, padded to the header width. A row
	// wider than the header is a *FieldCountError. It returns io.EOF after
	// the last row.
	Next() ([]string, error)

	// Line returns the 1-based position of the row last returned by Next:
	// the line its record starts on for delimited files, the sheet row for
	// workbooks and the object number for JSON.
	Line() int

	// Progress reports bytes consumed and the total size when known.
	Progress() (read, total int64)

	Close() error
}

// Open returns a RowReader for path, converting non-CSV formats.
func Open(path string) (RowReader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format != FormatCSV {
		slog.Info("converting file to CSV", "file", path, "format", format)
	}

	switch format {
	case FormatCSV:
		return openDelimited(path, ',')
	case FormatTSV:
		return openDelimited(path, '\t')
	case FormatXLSX:
		return openXLSX(path)
	case FormatJSON, FormatNDJSON:
		return openJSON(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// ReservedColumn is the row index column the loader adds to every table.
// A source column with the same name is renamed.
const ReservedColumn = "index"

// MaxIdentifierLen is PostgreSQL's identifier limit in bytes. Longer
// names are silently truncated by the server.
const MaxIdentifierLen = 63

// NormalizeHeader trims names, names blank columns, cuts them to
// MaxIdentifierLen and makes every name unique, ignoring case. Later
// duplicates get a numeric suffix: "id", "id" becomes "id", "id_1".
func NormalizeHeader(raw []string) []string {
	seen := map[string]int{ReservedColumn: 1}
	out := make([]string, len(raw))

	for i, name := range raw {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = "unnamed_" + strconv.Itoa(i)
		}

		base := truncateIdent(name, MaxIdentifierLen)
		name = base
		for seen[strings.ToLower(name)] > 0 {
			n := seen[strings.ToLower(base)]
			seen[strings.ToLower(base)]++
			suffix := "_" + strconv.Itoa(n)
			name = truncateIdent(base, MaxIdentifierLen-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = 1
		out[i] = name
	}
	return out
}

// truncateIdent cuts s to at most n bytes on a rune boundary.
func truncateIdent(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// fitRow pads row to width. Rows wider than the header are rejected.
func fitRow(row []string, width, line int) ([]string, error) {
	switch {
	case len(row) == width:
		return row, nil
	case len(row) > width:
		return nil, &FieldCountError{Line: line, Want: width, Got: len(row)}
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded, nil
}

// closeAll closes every closer and returns the first error.
func closeAll(closers ...io.Closer) error {
	var first error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

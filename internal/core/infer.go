package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the SQL type a loaded column is created with.
type ColumnType string

const (
	TypeBigint    ColumnType = "bigint"
	TypeDouble    ColumnType = "double precision"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeText      ColumnType = "text"
)

// ErrTypeMismatch is matched by every *TypeMismatchError.
var ErrTypeMismatch = errors.New("type mismatch")

// TypeMismatchError reports a value that does not fit the type pinned for
// its column.
type TypeMismatchError struct {
	Column string
	Line   int64
	Value  string
	Type   ColumnType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: column %q line %d: %q is not %s", e.Column, e.Line, e.Value, e.Type)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// inferTypes pins one type per column from the sampled rows.
func inferTypes(header []string, sample [][]string) []ColumnType {
	types := make([]ColumnType, len(header))
	for col := range header {
		var t ColumnType
		for _, row := range sample {
			if col >= len(row) || isNull(row[col]) {
				continue
			}
			t = widen(t, classify(row[col]))
			if t == TypeText {
				break
			}
		}
		if t == "" {
			t = TypeText
		}
		types[col] = t
	}
	return types
}

// classify returns the narrowest type that can hold s.
func classify(s string) ColumnType {
	s = strings.TrimSpace(s)
	switch {
	case isInteger(s):
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return TypeBigint
		}
		return TypeDouble
	case numericRegex.MatchString(s):
		return TypeDouble
	case isBoolean(s):
		return TypeBoolean
	}
	if _, ok := parseTimestamp(s); ok {
		return TypeTimestamp
	}
	return TypeText
}

// widen merges two observed types. Integers widen to doubles; any other
// disagreement falls back to text.
func widen(a, b ColumnType) ColumnType {
	switch {
	case a == "":
		return b
	case a == b:
		return a
	case (a == TypeBigint && b == TypeDouble) || (a == TypeDouble && b == TypeBigint):
		return TypeDouble
	}
	return TypeText
}

// typeFromDataType maps an information_schema data_type onto the type used
// to convert cells for an existing column.
func typeFromDataType(dataType string) ColumnType {
	switch strings.ToLower(dataType) {
	case "bigint", "integer", "smallint":
		return TypeBigint
	case "double precision", "real", "numeric":
		return TypeDouble
	case "boolean":
		return TypeBoolean
	case "timestamp without time zone", "timestamp with time zone", "date":
		return TypeTimestamp
	}
	return TypeText
}

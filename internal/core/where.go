package core

import (
	"fmt"
	"strings"
)

// castableTypes are the data types a text parameter can be cast to for
// typed comparisons. Other types compare as text.
var castableTypes = map[string]bool{
	"bigint":                      true,
	"integer":                     true,
	"smallint":                    true,
	"numeric":                     true,
	"real":                        true,
	"double precision":            true,
	"boolean":                     true,
	"date":                        true,
	"timestamp without time zone": true,
	"timestamp with time zone":    true,
	"time without time zone":      true,
	"uuid":                        true,
	"text":                        true,
	"character varying":           true,
}

// WhereBuilder accumulates AND-ed conditions with numbered placeholders.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

func (wb *WhereBuilder) placeholder(arg any) string {
	p := fmt.Sprintf("$%d", wb.argIndex)
	wb.args = append(wb.args, arg)
	wb.argIndex++
	return p
}

// AddFilter adds one filter on col.
func (wb *WhereBuilder) AddFilter(col ColumnSchema, f ColumnFilter) error {
	quoted := quoteIdentifier(col.Name)
	dataType := strings.ToLower(col.DataType)

	switch f.Operator {
	case OpContains:
		wb.add(fmt.Sprintf("%s::text ILIKE %s", quoted, wb.placeholder("%"+escapeLike(f.Value)+"%")))
	case OpStartsWith:
		wb.add(fmt.Sprintf("%s::text ILIKE %s", quoted, wb.placeholder(escapeLike(f.Value)+"%")))
	case OpEndsWith:
		wb.add(fmt.Sprintf("%s::text ILIKE %s", quoted, wb.placeholder("%"+escapeLike(f.Value))))

	case OpEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq:
		wb.add(fmt.Sprintf("%s %s %s", comparand(quoted, dataType), sqlOperator(f.Operator),
			typedParam(wb.placeholder(f.Value), dataType)))

	case OpIn:
		var values []string
		for _, v := range strings.Split(f.Value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: in needs at least one value", ErrInvalidFilter)
		}
		p := wb.placeholder(values) + "::text[]"
		if castableTypes[dataType] {
			p += "::" + dataType + "[]"
		}
		wb.add(fmt.Sprintf("%s = ANY(%s)", comparand(quoted, dataType), p))

	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
	}
	return nil
}

func (wb *WhereBuilder) add(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// Build returns the WHERE clause (with a leading space) and its arguments.
// Both are empty when no condition was added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the next free placeholder number.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

func sqlOperator(op FilterOperator) string {
	switch op {
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	}
	return "="
}

// comparand is the column side of a typed comparison.
func comparand(quoted, dataType string) string {
	if castableTypes[dataType] {
		return quoted
	}
	return quoted + "::text"
}

// typedParam casts a text placeholder to the column type.
func typedParam(p, dataType string) string {
	if castableTypes[dataType] {
		return p + "::text::" + dataType
	}
	return p + "::text"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so filter values match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

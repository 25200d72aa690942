package web

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabload/internal/core"
)

const (
	dateLayout      = "2006-01-02"
	localTimeLayout = "2006-01-02T15:04:05.999999999"
)

// resource is one row rendered as a JSON object with keys in column order.
type resource struct {
	keys   []string
	values []any
}

// MarshalJSON writes the keys in table column order.
func (r resource) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeRow renders row in schema column order. Keys the schema does not
// know, which appear when a table changed since the last refresh, follow
// in the order the row map yields them.
func encodeRow(schema *core.TableSchema, row core.TableRow) resource {
	res := resource{
		keys:   make([]string, 0, len(row)),
		values: make([]any, 0, len(row)),
	}
	seen := make(map[string]bool, len(row))

	for _, col := range schema.Columns {
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		seen[col.Name] = true
		res.keys = append(res.keys, col.Name)
		res.values = append(res.values, encodeValue(v, col.DataType))
	}
	for key, v := range row {
		if seen[key] {
			continue
		}
		res.keys = append(res.keys, key)
		res.values = append(res.values, encodeValue(v, ""))
	}
	return res
}

func encodeRows(schema *core.TableSchema, rows []core.TableRow) []resource {
	out := make([]resource, len(rows))
	for i, row := range rows {
		out[i] = encodeRow(schema, row)
	}
	return out
}

// encodeValue turns a pgx value into something encoding/json renders as
// ISO-8601 text, a number, a string or null.
func encodeValue(v any, dataType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(x, strings.ToLower(dataType))
	case float64:
		return finiteOrString(x)
	case float32:
		return finiteOrString(float64(x))
	case [16]byte:
		return uuid.UUID(x).String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e, "")
		}
		return out
	case json.Marshaler:
		return x
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return encodeValue(val, dataType)
	}
	return v
}

func formatTime(t time.Time, dataType string) string {
	switch dataType {
	case "date":
		return t.Format(dateLayout)
	case "timestamp without time zone", "timestamp":
		return t.Format(localTimeLayout)
	}
	return t.Format(time.RFC3339Nano)
}

// finiteOrString keeps JSON valid for NaN and the infinities, which
// PostgreSQL double columns can hold.
func finiteOrString(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

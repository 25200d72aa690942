package web

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/JonMunkholm/tabload/internal/core"
)

func TestEncodeValue(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 500_000_000, time.UTC)
	oslo := time.FixedZone("CET", 3600)

	tests := []struct {
		name     string
		value    any
		dataType string
		want     string
	}{
		{"null", nil, "text", `null`},
		{"date", ts, "date", `"2024-03-05"`},
		{"timestamp", ts, "timestamp without time zone", `"2024-03-05T14:30:00.5"`},
		{"timestamptz", ts.In(oslo), "timestamp with time zone", `"2024-03-05T15:30:00.5+01:00"`},
		{"integer", int64(42), "bigint", `42`},
		{"double", 1.5, "double precision", `1.5`},
		{"nan", math.NaN(), "double precision", `"NaN"`},
		{"infinity", math.Inf(-1), "double precision", `"-Infinity"`},
		{"uuid", [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}, "uuid", `"12345678-9abc-def0-1234-56789abcdef0"`},
		{"array", []any{int64(1), nil, ts}, "ARRAY", `[1,null,"2024-03-05T14:30:00.5Z"]`},
		{"text", "héllo", "text", `"héllo"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(encodeValue(tt.value, tt.dataType))
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("encodeValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeRowKeepsColumnOrder(t *testing.T) {
	schema := &core.TableSchema{
		Name: "t",
		Columns: []core.ColumnSchema{
			{Name: "zeta", DataType: "text"},
			{Name: "alpha", DataType: "bigint"},
			{Name: "mid", DataType: "date"},
		},
	}
	row := core.TableRow{
		"alpha": int64(1),
		"mid":   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		"zeta":  "z",
		"extra": true,
	}

	got, err := json.Marshal(encodeRow(schema, row))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zeta":"z","alpha":1,"mid":"2020-01-02","extra":true}`
	if string(got) != want {
		t.Errorf("encodeRow() = %s, want %s", got, want)
	}
}

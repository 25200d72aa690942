package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		value string
		want  ColumnType
	}{
		{"42", TypeBigint},
		{"-7", TypeBigint},
		{" 12 ", TypeBigint},
		{"99999999999999999999", TypeDouble},
		{"3.14", TypeDouble},
		{".5", TypeDouble},
		{"1e6", TypeDouble},
		{"true", TypeBoolean},
		{"FALSE", TypeBoolean},
		{"yes", TypeText},
		{"2024-01-15", TypeTimestamp},
		{"2024-01-15T10:30:00", TypeTimestamp},
		{"2024-01-15 10:30:00.123", TypeTimestamp},
		{"2024-01-15T10:30:00+02:00", TypeTimestamp},
		{"01/15/2024", TypeText},
		{"$1,000", TypeText},
		{"hello", TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := classify(tt.value); got != tt.want {
				t.Errorf("classify(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestInferTypes(t *testing.T) {
	header := []string{"id", "score", "active", "seen", "note", "empty", "mixed"}
	sample := [][]string{
		{"1", "10", "true", "2024-01-01", "a", "", "1"},
		{"2", "2.5", "false", "2024-01-02 08:00:00", "", "NA", "x"},
		{"3", "", "", "", "c", "null", "2"},
	}

	got := inferTypes(header, sample)
	want := []ColumnType{
		TypeBigint,
		TypeDouble,
		TypeBoolean,
		TypeTimestamp,
		TypeText,
		TypeText,
		TypeText,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("inferTypes() = %q, want %q", got, want)
	}
}

func TestInferTypes_ShortRows(t *testing.T) {
	got := inferTypes([]string{"a", "b"}, [][]string{{"1"}})
	want := []ColumnType{TypeBigint, TypeText}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("inferTypes() = %q, want %q", got, want)
	}
}

func TestWiden(t *testing.T) {
	tests := []struct {
		a, b ColumnType
		want ColumnType
	}{
		{"", TypeBigint, TypeBigint},
		{TypeBigint, TypeBigint, TypeBigint},
		{TypeBigint, TypeDouble, TypeDouble},
		{TypeDouble, TypeBigint, TypeDouble},
		{TypeBigint, TypeBoolean, TypeText},
		{TypeTimestamp, TypeDouble, TypeText},
	}
	for _, tt := range tests {
		if got := widen(tt.a, tt.b); got != tt.want {
			t.Errorf("widen(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTypeFromDataType(t *testing.T) {
	tests := map[string]ColumnType{
		"bigint":                      TypeBigint,
		"integer":                     TypeBigint,
		"double precision":            TypeDouble,
		"numeric":                     TypeDouble,
		"boolean":                     TypeBoolean,
		"timestamp without time zone": TypeTimestamp,
		"date":                        TypeTimestamp,
		"text":                        TypeText,
		"jsonb":                       TypeText,
	}
	for dataType, want := range tests {
		if got := typeFromDataType(dataType); got != want {
			t.Errorf("typeFromDataType(%q) = %q, want %q", dataType, got, want)
		}
	}
}

func TestConvertCell(t *testing.T) {
	tests := []struct {
		name   string
		typ    ColumnType
		value  string
		want   any
		wantOK bool
	}{
		{"bigint", TypeBigint, "42", int64(42), true},
		{"bigint trimmed", TypeBigint, " -3 ", int64(-3), true},
		{"bigint rejects float", TypeBigint, "4.5", nil, false},
		{"double", TypeDouble, "4.5", 4.5, true},
		{"double from int", TypeDouble, "4", 4.0, true},
		{"double rejects text", TypeDouble, "four", nil, false},
		{"double rejects inf", TypeDouble, "inf", nil, false},
		{"boolean", TypeBoolean, "True", true, true},
		{"boolean rejects yes", TypeBoolean, "yes", nil, false},
		{"timestamp", TypeTimestamp, "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"timestamp offset to utc", TypeTimestamp, "2024-03-01T12:00:00+02:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"timestamp rejects us date", TypeTimestamp, "03/01/2024", nil, false},
		{"text kept verbatim", TypeText, "  padded ", "  padded ", true},
		{"empty is null", TypeBigint, "", nil, true},
		{"NA is null", TypeBigint, "NA", nil, true},
		{"null token in text", TypeText, "NULL", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertCell(tt.typ, tt.value)
			if ok != tt.wantOK {
				t.Fatalf("convertCell(%q, %q) ok = %v, want %v", tt.typ, tt.value, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if want, isTime := tt.want.(time.Time); isTime {
				if gotTime, _ := got.(time.Time); !gotTime.Equal(want) || gotTime.Location() != time.UTC {
					t.Errorf("convertCell(%q, %q) = %v, want %v", tt.typ, tt.value, got, want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("convertCell(%q, %q) = %#v, want %#v", tt.typ, tt.value, got, tt.want)
			}
		})
	}
}

func TestConvertRow(t *testing.T) {
	header := []string{"id", "name"}
	types := []ColumnType{TypeBigint, TypeText}

	row, err := convertRow(7, header, types, []string{"1", "Ada"}, 2)
	if err != nil {
		t.Fatalf("convertRow: %v", err)
	}
	if want := []any{int64(7), int64(1), "Ada"}; !reflect.DeepEqual(row, want) {
		t.Errorf("convertRow() = %#v, want %#v", row, want)
	}

	_, err = convertRow(8, header, types, []string{"x1", "Bob"}, 1502)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("convertRow err = %v, want ErrTypeMismatch", err)
	}
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err is %T, want *TypeMismatchError", err)
	}
	if mismatch.Column != "id" || mismatch.Line != 1502 || mismatch.Value != "x1" {
		t.Errorf("mismatch = %+v", mismatch)
	}
	for _, want := range []string{`"id"`, "1502", `"x1"`, "bigint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err.Error(), want)
		}
	}
}

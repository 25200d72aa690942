package web

import (
	"errors"
	"net/url"
	"testing"

	"github.com/JonMunkholm/tabload/internal/core"
)

func TestParseSorts(t *testing.T) {
	tests := []struct {
		raw  string
		want []core.SortSpec
	}{
		{"", nil},
		{"name", []core.SortSpec{{Column: "name"}}},
		{"-age, name", []core.SortSpec{{Column: "age", Desc: true}, {Column: "name"}}},
		{",,-,x", []core.SortSpec{{Column: "x"}}},
		{"a,b,c", []core.SortSpec{{Column: "a"}, {Column: "b"}, {Column: "c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := parseSorts(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseSorts(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseSorts(%q)[%d] = %+v, want %+v", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseOperatorFilter(t *testing.T) {
	tests := []struct {
		raw     string
		want    core.ColumnFilter
		wantErr bool
	}{
		{raw: "gte:30", want: core.ColumnFilter{Column: "c", Operator: core.OpGreaterEq, Value: "30"}},
		{raw: "in:1,2,3", want: core.ColumnFilter{Column: "c", Operator: core.OpIn, Value: "1,2,3"}},
		{raw: "contains:a:b", want: core.ColumnFilter{Column: "c", Operator: core.OpContains, Value: "a:b"}},
		{raw: "plain", want: core.ColumnFilter{Column: "c", Operator: core.OpEquals, Value: "plain"}},
		{raw: "12:30", want: core.ColumnFilter{Column: "c", Operator: core.OpEquals, Value: "12:30"}},
		{raw: "eq:http://x", want: core.ColumnFilter{Column: "c", Operator: core.OpEquals, Value: "http://x"}},
		{raw: "like:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseOperatorFilter("c", tt.raw)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidFilter) {
					t.Errorf("error = %v, want ErrInvalidFilter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseOperatorFilter(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseFilters(t *testing.T) {
	query := url.Values{
		"name":         {"Ada"},
		"page":         {"2"},
		"unknown":      {"x"},
		"age":          {""},
		"filter[page]": {"eq:7"},
		"filter[]":     {"eq:1"},
	}

	set, err := parseFilters(query, &core.TableSchema{
		Name: "t",
		Columns: []core.ColumnSchema{
			{Name: "name"}, {Name: "age"}, {Name: "page"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]core.ColumnFilter{}
	for _, f := range set.Filters {
		got[f.Column] = f
	}
	if len(got) != 2 {
		t.Fatalf("filters = %+v, want name and page", set.Filters)
	}
	if got["name"].Value != "Ada" || got["page"].Value != "7" {
		t.Errorf("filters = %+v", set.Filters)
	}
}

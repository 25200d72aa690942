package web

// handlers_common.go parses the list query string:
//
//	?page=2&limit=50             1-based page, clamped limit
//	?sort=name,-created          up to core.MaxSorts columns, "-" for descending
//	?city=Oslo                   equality on any column
//	?filter[age]=gte:30          operator filters, see core.FilterOperator
//	?filter[id]=in:1,2,3         comma-separated set
//
// A column called page, limit or sort can still be filtered with
// filter[page]=eq:.... Operator values that contain a colon need the
// operator spelled out: filter[url]=eq:http://example.com.

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabload/internal/core"
)

var reservedParams = map[string]bool{
	"page":  true,
	"limit": true,
	"sort":  true,
}

// parseIntParam parses an integer query parameter with a default value.
// Missing, malformed and non-positive values yield the default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseRowsQuery builds a core.RowsQuery from the request. Column names are
// checked later by core.Service.ListRows against the catalog.
func parseRowsQuery(r *http.Request, schema *core.TableSchema) (core.RowsQuery, error) {
	filters, err := parseFilters(r.URL.Query(), schema)
	if err != nil {
		return core.RowsQuery{}, err
	}
	return core.RowsQuery{
		Page:    parseIntParam(r, "page", 1),
		Limit:   parseIntParam(r, "limit", 0),
		Sorts:   parseSorts(r.URL.Query().Get("sort")),
		Filters: filters,
	}, nil
}

// parseSorts parses "a,-b" into sort specs. Blank entries are skipped;
// core.Service.ListRows enforces the sort limit.
func parseSorts(raw string) []core.SortSpec {
	if raw == "" {
		return nil
	}

	var sorts []core.SortSpec
	for _, col := range strings.Split(raw, ",") {
		col = strings.TrimSpace(col)
		desc := strings.HasPrefix(col, "-")
		col = strings.TrimPrefix(col, "-")
		if col == "" {
			continue
		}
		sorts = append(sorts, core.SortSpec{Column: col, Desc: desc})
	}
	return sorts
}

// parseFilters collects filter[col]=op:value parameters and plain col=value
// equality parameters naming a schema column. Other parameters are ignored.
func parseFilters(query url.Values, schema *core.TableSchema) (core.FilterSet, error) {
	var filters []core.ColumnFilter

	for key, values := range query {
		if col, ok := filterColumn(key); ok {
			for _, val := range values {
				f, err := parseOperatorFilter(col, val)
				if err != nil {
					return core.FilterSet{}, err
				}
				if f.Value != "" {
					filters = append(filters, f)
				}
			}
			continue
		}

		if reservedParams[key] {
			continue
		}
		if _, ok := schema.Column(key); !ok {
			continue
		}
		for _, val := range values {
			if val == "" {
				continue
			}
			filters = append(filters, core.ColumnFilter{
				Column:   key,
				Operator: core.OpEquals,
				Value:    val,
			})
		}
	}

	return core.FilterSet{Filters: filters}, nil
}

// filterColumn extracts col from "filter[col]".
func filterColumn(key string) (string, bool) {
	if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
		return "", false
	}
	col := key[len("filter[") : len(key)-1]
	return col, col != ""
}

// parseOperatorFilter parses "op:value". A value without a known operator
// prefix is an equality test on the whole string.
func parseOperatorFilter(col, raw string) (core.ColumnFilter, error) {
	f := core.ColumnFilter{Column: col, Operator: core.OpEquals, Value: raw}

	prefix, rest, found := strings.Cut(raw, ":")
	if !found {
		return f, nil
	}
	op, ok := core.ParseFilterOperator(prefix)
	if !ok {
		if isOperatorLike(prefix) {
			return core.ColumnFilter{}, fmt.Errorf("%w: unknown operator %q for %s", core.ErrInvalidFilter, prefix, col)
		}
		return f, nil
	}
	f.Operator = op
	f.Value = rest
	return f, nil
}

// isOperatorLike reports whether s looks like an operator name rather than
// the start of a value such as "12:30".
func isOperatorLike(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

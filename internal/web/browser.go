package web

// browser.go serves the HTML table browser. The pages live in
// browser.templ; run `templ generate` after editing it.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tabload/internal/core"
)

// handleBrowseIndex renders the list of tables.
func (s *Server) handleBrowseIndex(w http.ResponseWriter, r *http.Request) {
	templ.Handler(tablesPage(s.service.Catalog().Tables())).ServeHTTP(w, r)
}

// handleBrowseTable renders one page of a table. It accepts the same query
// parameters as the JSON list endpoint.
func (s *Server) handleBrowseTable(w http.ResponseWriter, r *http.Request) {
	schema, err := s.lookupTable(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q, err := parseRowsQuery(r, schema)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := s.service.ListRows(r.Context(), schema.Name, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	templ.Handler(tablePage(schema, page, r.URL.Query())).ServeHTTP(w, r)
}

// browseURL links to a table page in the browser.
func browseURL(table string, query url.Values) templ.SafeURL {
	u := "/browse/" + url.PathEscape(table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return templ.URL(u)
}

// withPage copies query with page set to n.
func withPage(query url.Values, n int) url.Values {
	q := make(url.Values, len(query)+1)
	for k, v := range query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	return q
}

func hasNextPage(page *core.RowsPage) bool {
	return int64(page.Page)*int64(page.Limit) < page.Total
}

// cellString renders an encoded value for an HTML cell.
func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

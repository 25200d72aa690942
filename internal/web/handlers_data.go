package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/logging"
)

type tableLink struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Meta     string `json:"meta"`
}

type indexResponse struct {
	Tables []tableLink `json:"tables"`
}

type rowsResponse struct {
	Resources []resource `json:"resources"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Total     int64      `json:"total"`
}

type healthResponse struct {
	Status string `json:"status"`
	Tables int    `json:"tables"`
}

// pathParam returns a decoded URL parameter. chi matches on the raw path
// when the request has one, so names with spaces arrive escaped.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// lookupTable returns the catalog entry named by the {table} parameter.
func (s *Server) lookupTable(r *http.Request) (*core.TableSchema, error) {
	name := pathParam(r, "table")
	schema, ok := s.service.Catalog().Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTable, name)
	}
	return schema, nil
}

// handleIndex lists an endpoint per reflected table.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	names := s.service.Catalog().Names()

	links := make([]tableLink, len(names))
	for i, name := range names {
		endpoint := "/" + url.PathEscape(name)
		links[i] = tableLink{
			Name:     name,
			Endpoint: endpoint,
			Meta:     endpoint + "/meta",
		}
	}
	writeJSON(w, r, http.StatusOK, indexResponse{Tables: links})
}

// handleListRows returns one page of a table.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, r, http.StatusOK, rowsResponse{
		Resources: encodeRows(schema, page.Rows),
		Page:      page.Page,
		Limit:     page.Limit,
		Total:     page.Total,
	})
}

// handleTableMeta returns the reflected columns of a table.
func (s *Server) handleTableMeta(w http.ResponseWriter, r *http.Request) {
	schema, err := s.lookupTable(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, schema)
}

// handleGetRow returns a single row by primary key.
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	schema, err := s.lookupTable(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	row, err := s.service.GetRow(r.Context(), schema.Name, pathParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, encodeRow(schema, row))
}

// handleMethodNotAllowed answers 405 with the methods the path does
// accept. The table API only ever allows GET.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}

	var allowed []string
	for _, method := range routeMethods {
		if s.router.Match(chi.NewRouteContext(), method, path) {
			allowed = append(allowed, method)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{http.MethodGet}
	}

	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
}

var routeMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// handleHealth pings the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status: "ok",
		Tables: len(s.service.Catalog().Names()),
	})
}

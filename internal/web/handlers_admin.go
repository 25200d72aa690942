package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/logging"
)

type tablesResponse struct {
	Tables []string `json:"tables"`
}

type refreshResponse struct {
	Tables      []string  `json:"tables"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type indexTableResponse struct {
	Table   string   `json:"table"`
	Indexes []string `json:"indexes"`
}

type dropResponse struct {
	Table   string `json:"table"`
	Dropped bool   `json:"dropped"`
}

// parseBoolParam reads a boolean from the query string or form. Missing or
// malformed values yield false.
func parseBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.FormValue(name))
	return err == nil && v
}

// handleAdminTables lists base tables straight from the database, including
// ones the catalog has not picked up yet.
func (s *Server) handleAdminTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.service.GetTables(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tablesResponse{Tables: tables})
}

// handleWriterStatus reports whether a load, index or drop is running.
func (s *Server) handleWriterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Writer().Status())
}

// handleRefresh re-reads the catalog.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RefreshTables(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}

	catalog := s.service.Catalog()
	writeJSON(w, r, http.StatusOK, refreshResponse{
		Tables:      catalog.Names(),
		RefreshedAt: catalog.RefreshedAt(),
	})
}

// handleIndexTable indexes every column of a table.
func (s *Server) handleIndexTable(w http.ResponseWriter, r *http.Request) {
	table := pathParam(r, "table")

	indexes, err := s.service.IndexTable(r.Context(), table, parseBoolParam(r, "case_insensitive"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if indexes == nil {
		indexes = []string{}
	}
	writeJSON(w, r, http.StatusOK, indexTableResponse{Table: table, Indexes: indexes})
}

// handleDropTable drops a table. Dropping a missing table succeeds.
func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	table := pathParam(r, "table")

	if err := s.service.DropTable(r.Context(), table); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("table dropped via admin API", "table", table)
	writeJSON(w, r, http.StatusOK, dropResponse{Table: table, Dropped: true})
}

// loadOptions reads load settings from the query string or form.
func loadOptions(r *http.Request, table string) (core.LoadOptions, error) {
	opts := core.LoadOptions{
		Table:           table,
		Index:           parseBoolParam(r, "index"),
		CaseInsensitive: parseBoolParam(r, "case_insensitive"),
	}

	for name, dst := range map[string]*int{
		"infer_size": &opts.InferSize,
		"chunk_size": &opts.ChunkSize,
	} {
		raw := r.FormValue(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return core.LoadOptions{}, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
		}
		*dst = n
	}
	return opts, nil
}

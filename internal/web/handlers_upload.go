package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/source"
)

// multipartMemory is how much of an upload is held in memory before the
// multipart parser spills to disk.
const multipartMemory = 32 << 20

// handleLoadTable spools the uploaded "file" part to a temp file and loads
// it into {table}. The load runs within the request; a client that goes
// away cancels it between chunks.
func (s *Server) handleLoadTable(w http.ResponseWriter, r *http.Request) {
	table := pathParam(r, "table")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Load.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if _, err := source.DetectFormat(header.Filename); err != nil {
		s.respondError(w, r, err)
		return
	}

	opts, err := loadOptions(r, table)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.spool(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer os.Remove(path)

	logging.FromContext(r.Context()).Info("upload received",
		"table", table,
		"file", header.Filename,
		"bytes", header.Size,
	)

	result, err := s.service.LoadTable(r.Context(), path, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// spool copies an uploaded part to a uniquely named file in the load temp
// directory, keeping the extension so the format can be detected.
func (s *Server) spool(file multipart.File, header *multipart.FileHeader) (string, error) {
	dir := s.cfg.Load.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(dir, "tabload-"+uuid.NewString()+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/services"
	"github.com/rescale/record-files/internal/state"
	"github.com/rescale/record-files/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
}

type selectionRequest struct {
	Rows []models.RowRef `json:"rows"`
}

type uploadResult struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	DocumentID       string `json:"documentId,omitempty"`
	ContentVersionID string `json:"contentVersionId,omitempty"`
	Error            string `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadResult `json:"results"`
	View    state.View     `json:"view"`
}

type downloadResponse struct {
	Path string `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status. Gateway failures carry only their fixed
// user message; the cause is already logged by the file manager.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var opErr *state.OperationError
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.As(err, &opErr):
		status = http.StatusBadGateway
		msg = opErr.UserMessage()
	case errors.Is(err, state.ErrNotActive):
		status = http.StatusConflict
	case errors.Is(err, state.ErrNoRowSelected),
		errors.Is(err, services.ErrNothingSelected),
		errors.Is(err, services.ErrNoFiles):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrDownloadDisabled),
		errors.Is(err, services.ErrUploadUnavailable):
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// respondView answers with the current snapshot, or the error of the action.
func (s *Server) respondView(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fm.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": s.fm.IsActive(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fm.View())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, s.fm.Refresh(r.Context()))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid selection body: " + err.Error()})
		return
	}
	s.respondView(w, s.fm.SelectRows(req.Rows))
}

func (s *Server) handleRowAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contentDocumentId")
	file, ok := s.fm.FindFile(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no file %q in the list", id)})
		return
	}
	s.respondView(w, s.fm.TriggerRowAction(file.Ref(), chi.URLParam(r, "action")))
}

func (s *Server) handleConfirmRemove(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, s.fm.ConfirmRemove(r.Context()))
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, s.fm.ConfirmDelete(r.Context()))
}

// modal wraps a modal toggle as a handler.
func (s *Server) modal(fn func(*state.FileManager) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondView(w, fn(s.fm))
	}
}

// handleUpload streams every multipart file part to a temp dir, uploads
// the batch into the record and reloads the list.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "upload is not configured"})
		return
	}
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected a multipart body: " + err.Error()})
		return
	}

	tmpDir, err := os.MkdirTemp("", "record-files-upload-*")
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	requests, err := spoolParts(mr, tmpDir)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	results, err := s.uploads.UploadToRecord(r.Context(), s.fm, requests, nil)
	if results == nil && err != nil {
		s.writeError(w, err)
		return
	}

	resp := uploadResponse{View: s.fm.View()}
	for _, res := range results {
		item := uploadResult{
			Name:             res.Request.Name,
			State:            string(res.State),
			DocumentID:       res.File.DocumentID,
			ContentVersionID: res.File.ContentVersionID,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusOK
	if len(services.Succeeded(results)) < len(results) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// spoolParts writes each file part under dir, one subdirectory per part so
// equal names do not collide.
func spoolParts(mr *multipart.Reader, dir string) ([]services.UploadRequest, error) {
	var requests []services.UploadRequest
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		name := filepath.Base(part.FileName())
		if part.FileName() == "" || validation.ValidateFilename(name) != nil {
			part.Close()
			continue
		}

		partDir := filepath.Join(dir, fmt.Sprintf("%03d", len(requests)))
		if err := os.Mkdir(partDir, 0o700); err != nil {
			part.Close()
			return nil, err
		}
		path := filepath.Join(partDir, name)
		if err := writePart(path, part); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", name, err)
		}
		requests = append(requests, services.UploadRequest{LocalPath: path, Name: name})
	}
	if len(requests) == 0 {
		return nil, services.ErrNoFiles
	}
	return requests, nil
}

func writePart(path string, part *multipart.Part) error {
	defer part.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, part); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "download is not configured"})
		return
	}
	path, err := s.downloads.DownloadSelected(r.Context(), s.fm, s.cfg.DownloadDir, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{Path: path})
}

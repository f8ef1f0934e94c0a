package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/JonMunkholm/donfundy/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleImportUpload runs the import pipeline over the uploaded "file" part.
//
// The response body is the ImportResult for every upload that reaches the
// pipeline or fails the empty/CSV checks. The status reflects the outcome:
// 201 when every row was imported, 206 when some rows failed and 400 when
// nothing was imported.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("parse upload form: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := core.CheckUpload(header.Filename, header.Size); err != nil {
		logging.FromContext(r.Context()).Warn("upload rejected",
			"file", header.Filename,
			"size", header.Size,
			"reason", err.Error(),
		)
		writeJSON(w, http.StatusBadRequest, core.RejectedResult(err))
		return
	}

	run, err := s.service.ImportDonations(r.Context(), core.ImportRequest{
		FileName: header.Filename,
		Source:   core.SourceHTTP,
		Size:     header.Size,
	}, file)
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("X-Import-ID", run.ID.String())
	writeJSON(w, statusForOutcome(run.Result.Outcome()), run.Result)
}

func statusForOutcome(o core.Outcome) int {
	switch o {
	case core.OutcomeRejected:
		return http.StatusBadRequest
	case core.OutcomePartial:
		return http.StatusPartialContent
	default:
		return http.StatusCreated
	}
}

// handleListImports returns recent import summaries, newest first. A
// missing or zero limit means the configured history limit.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.service.RecentImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": records})
}

// handleGetImport returns one import summary.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidImportID, err), http.StatusBadRequest)
		return
	}

	rec, err := s.service.GetImport(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrImportNotFound):
		respondError(w, r, err, http.StatusNotFound)
	case err != nil:
		respondError(w, r, err, http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

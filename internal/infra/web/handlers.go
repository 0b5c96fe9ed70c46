package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adept/internal/domain"
	"adept/internal/infra/logging"
)

// maxUploadBytes bounds direct uploads through the signed-target endpoint.
const maxUploadBytes = 50 << 20

type extractRequest struct {
	ImageURL   string `json:"imageUrl"`
	UserPrompt string `json:"userPrompt,omitempty"`
}

type updateRequest struct {
	UserPrompt string `json:"userPrompt"`
}

type uploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type jobAcceptedResponse struct {
	JobID string `json:"jobId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps the error body shape uniform across all endpoints.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Submission failures all collapse onto a small set of client-visible
// messages; anything unexpected stays a 500 with a generic body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Job not found.")
	case errors.Is(err, domain.ErrJobFailed):
		writeError(w, http.StatusBadRequest, "Cannot update a failed job.")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	}

	id, err := s.jobUC.Extract(r.Context(), ownerFrom(r.Context()), req.ImageURL, req.UserPrompt)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to start extraction")
		return
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: id})
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserPrompt == "" {
		writeError(w, http.StatusBadRequest, "userPrompt is required")
		return
	}

	id, err := s.jobUC.Update(r.Context(), ownerFrom(r.Context()), jobID, req.UserPrompt)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to start update")
		return
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: id})
}

func (s *Server) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	id, err := s.jobUC.Finalize(r.Context(), ownerFrom(r.Context()), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobFailed) {
			writeError(w, http.StatusBadRequest, "Cannot finalize a failed job.")
			return
		}
		s.writeDomainError(w, r, err, "Failed to start finalization")
		return
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: id})
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.jobUC.Get(r.Context(), ownerFrom(r.Context()), jobID)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) uploadsHandler(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	signed, err := s.store.SignUpload(r.Context(), req.FileName, req.ContentType)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to sign upload")
		return
	}
	writeJSON(w, http.StatusCreated, signed)
}

func (s *Server) storagePutHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload body")
		return
	}

	fileURL, err := s.store.Redeem(r.Context(), token, data)
	if err != nil {
		if errors.Is(err, domain.ErrUploadExpired) {
			writeError(w, http.StatusGone, "Upload target expired or unknown.")
			return
		}
		s.writeDomainError(w, r, err, "Failed to store upload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileUrl": fileURL})
}

func (s *Server) filesHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := s.store.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found.")
		return
	}
	http.ServeFile(w, r, path)
}

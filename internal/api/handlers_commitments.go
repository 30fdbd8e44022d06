package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"autobump/internal/core"
	"autobump/internal/store"

	"github.com/go-chi/chi/v5"
)

type createCommitmentRequest struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type commitmentResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleCreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req createCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "start_time must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "end_time must be RFC3339")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "invalid_input", "end_time must be after start_time")
		return
	}

	commitment := &core.Commitment{
		ID:        core.NewID(),
		UserID:    strings.TrimSpace(req.UserID),
		Title:     strings.TrimSpace(req.Title),
		StartTime: start,
		EndTime:   end,
	}
	if err := s.store.InsertCommitment(r.Context(), commitment); err != nil {
		s.logger.Error("insert commitment", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to insert commitment")
		return
	}
	writeJSON(w, http.StatusCreated, commitmentToResponse(commitment))
}

func (s *Server) handleListCommitments(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	start := time.Now()
	end := start.AddDate(0, 0, 30)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "start must be RFC3339")
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "end must be RFC3339")
			return
		}
		end = parsed
	}

	commitments, err := s.store.ListCommitments(r.Context(), userID, start, end)
	if err != nil {
		s.logger.Error("list commitments", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list commitments")
		return
	}
	res := make([]commitmentResponse, 0, len(commitments))
	for _, c := range commitments {
		res = append(res, commitmentToResponse(c))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteCommitment(w http.ResponseWriter, r *http.Request) {
	commitmentID := chi.URLParam(r, "commitmentID")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	if err := s.store.DeleteCommitment(r.Context(), commitmentID, userID); err != nil {
		if errors.Is(err, store.ErrCommitmentNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "commitment not found")
		} else {
			s.logger.Error("delete commitment", "commitment_id", commitmentID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete commitment")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func commitmentToResponse(c *core.Commitment) commitmentResponse {
	return commitmentResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		StartTime: c.StartTime.UTC().Format(time.RFC3339),
		EndTime:   c.EndTime.UTC().Format(time.RFC3339),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

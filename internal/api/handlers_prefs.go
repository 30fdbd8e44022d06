package api

import (
	"encoding/json"
	"net/http"
	"time"

	"autobump/internal/core"

	"github.com/go-chi/chi/v5"
)

type preferencesRequest struct {
	EnableAutoBump bool `json:"enable_auto_bump"`
}

type preferencesResponse struct {
	UserID         string `json:"user_id"`
	EnableAutoBump bool   `json:"enable_auto_bump"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	prefs, err := s.store.GetPreferences(r.Context(), userID)
	if err != nil {
		s.logger.Error("get preferences", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load preferences")
		return
	}
	if prefs == nil {
		// Auto-bump defaults to on for users who never saved preferences.
		writeJSON(w, http.StatusOK, preferencesResponse{UserID: userID, EnableAutoBump: true})
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{
		UserID:         prefs.UserID,
		EnableAutoBump: prefs.EnableAutoBump,
		UpdatedAt:      prefs.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	prefs := &core.Preferences{
		UserID:         userID,
		EnableAutoBump: req.EnableAutoBump,
	}
	if err := s.store.UpsertPreferences(r.Context(), prefs); err != nil {
		s.logger.Error("save preferences", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{
		UserID:         prefs.UserID,
		EnableAutoBump: prefs.EnableAutoBump,
		UpdatedAt:      prefs.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"autobump/internal/core"

	"github.com/go-chi/chi/v5"
)

type runBumpRequest struct {
	UserID string `json:"user_id"`
}

type bumpResultResponse struct {
	Success      bool     `json:"success"`
	BumpedCount  int      `json:"bumped_count"`
	SkippedCount int      `json:"skipped_count"`
	Errors       []string `json:"errors"`
}

type manualBumpRequest struct {
	UserID     string  `json:"user_id"`
	TargetDate string  `json:"target_date"`
	TargetTime *string `json:"target_time,omitempty"`
	Reason     *string `json:"reason,omitempty"`
}

type previewSlotRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

type slotResponse struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type bumpLogResponse struct {
	ID               string           `json:"id"`
	TaskID           string           `json:"task_id"`
	UserID           string           `json:"user_id"`
	Reason           string           `json:"reason"`
	OldScheduledDate *string          `json:"old_scheduled_date,omitempty"`
	NewScheduledDate *string          `json:"new_scheduled_date,omitempty"`
	OldDueDate       *string          `json:"old_due_date,omitempty"`
	NewDueDate       *string          `json:"new_due_date,omitempty"`
	Context          core.BumpContext `json:"context"`
	AISuggested      bool             `json:"ai_suggested"`
	UserConfirmed    bool             `json:"user_confirmed"`
	CreatedAt        string           `json:"created_at"`
}

func (s *Server) handleRunAutoBump(w http.ResponseWriter, r *http.Request) {
	var req runBumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}

	result := s.bumper.ProcessAutoBump(r.Context(), req.UserID)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resultToResponse(result))
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	bumped, err := s.runner.RunNow(r.Context())
	if err != nil {
		s.logger.Error("run bump batch", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "bump batch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"bumped_count": bumped})
}

func (s *Server) handleManualBump(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	var req manualBumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "target_date must be YYYY-MM-DD")
		return
	}

	var targetTime *core.TimeOfDay
	if req.TargetTime != nil {
		tod, err := core.ParseTimeOfDay(*req.TargetTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		targetTime = &tod
	}

	reason := core.BumpReason("")
	if req.Reason != nil {
		reason = core.BumpReason(strings.TrimSpace(*req.Reason))
	}

	if err := s.bumper.ManualBump(r.Context(), taskID, req.UserID, targetDate, targetTime, reason); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("manual bump", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to bump task")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewSlot(w http.ResponseWriter, r *http.Request) {
	var req previewSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.UserID == "" || req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id and task_id are required")
		return
	}
	slot, err := s.bumper.PreviewSlot(r.Context(), req.TaskID, req.UserID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("preview slot", "task_id", req.TaskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to preview slot")
		}
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{
		Date: slot.Date.Format("2006-01-02"),
		Time: slot.Time.String(),
	})
}

func (s *Server) handleBumpHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	taskID := strings.TrimSpace(r.URL.Query().Get("task_id"))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)

	entries, err := s.bumper.BumpHistory(r.Context(), userID, taskID, limit)
	if err != nil {
		s.logger.Error("bump history", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load bump history")
		return
	}
	resp := make([]bumpLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, bumpLogToResponse(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func resultToResponse(result core.BumpResult) bumpResultResponse {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return bumpResultResponse{
		Success:      result.Success,
		BumpedCount:  result.BumpedCount,
		SkippedCount: result.SkippedCount,
		Errors:       errs,
	}
}

func bumpLogToResponse(entry *core.BumpLog) bumpLogResponse {
	return bumpLogResponse{
		ID:               entry.ID,
		TaskID:           entry.TaskID,
		UserID:           entry.UserID,
		Reason:           string(entry.Reason),
		OldScheduledDate: formatDate(entry.OldScheduledDate),
		NewScheduledDate: formatDate(entry.NewScheduledDate),
		OldDueDate:       formatTime(entry.OldDueDate),
		NewDueDate:       formatTime(entry.NewDueDate),
		Context:          entry.Context,
		AISuggested:      entry.AISuggested,
		UserConfirmed:    entry.UserConfirmed,
		CreatedAt:        entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

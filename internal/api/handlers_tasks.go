package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autobump/internal/core"

	"github.com/go-chi/chi/v5"
)

type createTaskRequest struct {
	UserID           string  `json:"user_id"`
	Title            string  `json:"title"`
	Priority         string  `json:"priority"`
	Status           string  `json:"status"`
	Category         string  `json:"category"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	DueDate          *string `json:"due_date,omitempty"`
	ScheduledDate    *string `json:"scheduled_date,omitempty"`
	ScheduledTime    *string `json:"scheduled_time,omitempty"`
	AutoGenerated    bool    `json:"auto_generated"`
}

type taskResponse struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Title            string  `json:"title"`
	Priority         string  `json:"priority"`
	Status           string  `json:"status"`
	Category         string  `json:"category,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	DueDate          *string `json:"due_date,omitempty"`
	ScheduledDate    *string `json:"scheduled_date,omitempty"`
	ScheduledTime    *string `json:"scheduled_time,omitempty"`
	BumpCount        int     `json:"bump_count"`
	AutoBumped       bool    `json:"auto_bumped"`
	AutoGenerated    bool    `json:"auto_generated"`
	LastBumpedAt     *string `json:"last_bumped_at,omitempty"`
	OriginalDueDate  *string `json:"original_due_date,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

var validPriorities = map[core.Priority]bool{
	core.PriorityLow:    true,
	core.PriorityMedium: true,
	core.PriorityHigh:   true,
	core.PriorityUrgent: true,
}

var validStatuses = map[core.TaskStatus]bool{
	core.TaskStatusPending:    true,
	core.TaskStatusInProgress: true,
	core.TaskStatusCompleted:  true,
	core.TaskStatusBlocked:    true,
	core.TaskStatusCancelled:  true,
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.Title = strings.TrimSpace(req.Title)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "title is required")
		return
	}

	priority := core.PriorityMedium
	if req.Priority != "" {
		priority = core.Priority(req.Priority)
		if !validPriorities[priority] {
			writeError(w, http.StatusBadRequest, "invalid_input", "priority must be low, medium, high or urgent")
			return
		}
	}
	status := core.TaskStatusPending
	if req.Status != "" {
		status = core.TaskStatus(req.Status)
		if !validStatuses[status] {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid status")
			return
		}
	}

	task := &core.Task{
		ID:            core.NewID(),
		UserID:        req.UserID,
		Title:         req.Title,
		Priority:      priority,
		Status:        status,
		Category:      strings.TrimSpace(req.Category),
		AutoGenerated: req.AutoGenerated,
	}
	if req.EstimatedMinutes != nil {
		if *req.EstimatedMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "estimated_minutes must be positive")
			return
		}
		task.EstimatedMinutes = req.EstimatedMinutes
	}
	if req.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "due_date must be RFC3339")
			return
		}
		task.DueDate = &due
	}
	if req.ScheduledDate != nil {
		scheduled, err := time.Parse("2006-01-02", *req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "scheduled_date must be YYYY-MM-DD")
			return
		}
		task.ScheduledDate = &scheduled
	}
	if req.ScheduledTime != nil {
		tod, err := core.ParseTimeOfDay(*req.ScheduledTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		task.ScheduledTime = &tod
	}

	if err := s.store.InsertTask(r.Context(), task); err != nil {
		s.logger.Error("insert task", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to insert task")
		return
	}
	writeJSON(w, http.StatusCreated, taskToResponse(task))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	var statusFilter *core.TaskStatus
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		st := core.TaskStatus(status)
		if !validStatuses[st] {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid status filter")
			return
		}
		statusFilter = &st
	}
	tasks, err := s.store.ListTasks(r.Context(), userID, statusFilter)
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list tasks")
		return
	}
	res := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskToResponse(t))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	task, err := s.store.GetTaskForUser(r.Context(), taskID, userID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("get task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load task")
		}
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "user_id is required")
		return
	}
	if err := s.store.DeleteTask(r.Context(), taskID, userID); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("delete task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete task")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskToResponse(task *core.Task) taskResponse {
	return taskResponse{
		ID:               task.ID,
		UserID:           task.UserID,
		Title:            task.Title,
		Priority:         string(task.Priority),
		Status:           string(task.Status),
		Category:         task.Category,
		EstimatedMinutes: task.EstimatedMinutes,
		DueDate:          formatTime(task.DueDate),
		ScheduledDate:    formatDate(task.ScheduledDate),
		ScheduledTime:    formatTimeOfDay(task.ScheduledTime),
		BumpCount:        task.BumpCount,
		AutoBumped:       task.AutoBumped,
		AutoGenerated:    task.AutoGenerated,
		LastBumpedAt:     formatTime(task.LastBumpedAt),
		OriginalDueDate:  formatTime(task.OriginalDueDate),
		CreatedAt:        task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        task.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(time.RFC3339)
	return &formatted
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format("2006-01-02")
	return &formatted
}

func formatTimeOfDay(value *core.TimeOfDay) *string {
	if value == nil {
		return nil
	}
	formatted := value.String()
	return &formatted
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}

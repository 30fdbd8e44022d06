package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobump/internal/core"
	"autobump/internal/store"
)

func newTestServer(t *testing.T, authToken string) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.DB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bumper := core.NewBumper(st, core.DefaultSchedulingConfig(), logger)
	runner := core.NewRunner(bumper, st, nil, logger, time.UTC)
	srv, err := NewServer("127.0.0.1:0", authToken, st, bumper, runner, logger)
	require.NoError(t, err)
	return srv, st
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/?user_id=u1", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks/?user_id=u1", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks/?user_id=u1&token=sekrit", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks/?user_id=u1&token=wrong", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv.router, http.MethodPost, "/v1/tasks/", map[string]any{
		"user_id":           "u1",
		"title":             "watch lesson",
		"priority":          "high",
		"category":          "video",
		"estimated_minutes": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created taskResponse
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "high", created.Priority)
	assert.Equal(t, "pending", created.Status, "status defaults to pending")

	rec = doJSON(t, srv.router, http.MethodGet, "/v1/tasks/"+created.ID+"/?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Ownership is enforced on reads.
	rec = doJSON(t, srv.router, http.MethodGet, "/v1/tasks/"+created.ID+"/?user_id=u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.router, http.MethodGet, "/v1/tasks/?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []taskResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list, 1)

	rec = doJSON(t, srv.router, http.MethodDelete, "/v1/tasks/"+created.ID+"/?user_id=u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, srv.router, http.MethodDelete, "/v1/tasks/"+created.ID+"/?user_id=u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t, "")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing user", map[string]any{"title": "x"}},
		{"missing title", map[string]any{"user_id": "u1"}},
		{"bad priority", map[string]any{"user_id": "u1", "title": "x", "priority": "asap"}},
		{"bad status", map[string]any{"user_id": "u1", "title": "x", "status": "paused"}},
		{"negative estimate", map[string]any{"user_id": "u1", "title": "x", "estimated_minutes": -5}},
		{"bad due date", map[string]any{"user_id": "u1", "title": "x", "due_date": "tomorrow"}},
		{"bad scheduled time", map[string]any{"user_id": "u1", "title": "x", "scheduled_time": "25:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv.router, http.MethodPost, "/v1/tasks/", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestManualBumpEndpoint(t *testing.T) {
	srv, st := newTestServer(t, "")
	ctx := context.Background()

	due := time.Now().UTC().Add(-24 * time.Hour)
	task := &core.Task{
		ID:       core.NewID(),
		UserID:   "u1",
		Title:    "practice scales",
		Priority: core.PriorityMedium,
		Status:   core.TaskStatusPending,
		Category: "practice",
		DueDate:  &due,
	}
	require.NoError(t, st.InsertTask(ctx, task))

	rec := doJSON(t, srv.router, http.MethodPost, "/v1/tasks/"+task.ID+"/bump", map[string]any{
		"user_id":     "u1",
		"target_date": "2026-09-05",
		"target_time": "10:30",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	got, err := st.GetTaskForUser(ctx, task.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledDate)
	assert.Equal(t, "2026-09-05", got.ScheduledDate.Format("2006-01-02"))
	require.NotNil(t, got.ScheduledTime)
	assert.Equal(t, "10:30", got.ScheduledTime.String())
	assert.Equal(t, 1, got.BumpCount)

	rec = doJSON(t, srv.router, http.MethodPost, "/v1/tasks/missing/bump", map[string]any{
		"user_id":     "u1",
		"target_date": "2026-09-05",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.router, http.MethodPost, "/v1/tasks/"+task.ID+"/bump", map[string]any{
		"user_id":     "u1",
		"target_date": "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAutoBumpEndpoint(t *testing.T) {
	srv, st := newTestServer(t, "")
	ctx := context.Background()

	due := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, st.InsertTask(ctx, &core.Task{
		ID:       core.NewID(),
		UserID:   "u1",
		Title:    "review notes",
		Priority: core.PriorityHigh,
		Status:   core.TaskStatusPending,
		Category: "review",
		DueDate:  &due,
	}))

	rec := doJSON(t, srv.router, http.MethodPost, "/v1/bump/run", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var result bumpResultResponse
	decodeBody(t, rec, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.BumpedCount)
	assert.Empty(t, result.Errors)

	rec = doJSON(t, srv.router, http.MethodGet, "/v1/bump/history?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []bumpLogResponse
	decodeBody(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "overdue", history[0].Reason)
	assert.True(t, history[0].AISuggested)
}

func TestPreviewSlotEndpoint(t *testing.T) {
	srv, st := newTestServer(t, "")
	ctx := context.Background()

	task := &core.Task{
		ID:       core.NewID(),
		UserID:   "u1",
		Title:    "record intro",
		Priority: core.PriorityMedium,
		Status:   core.TaskStatusPending,
		Category: "video",
	}
	require.NoError(t, st.InsertTask(ctx, task))

	rec := doJSON(t, srv.router, http.MethodPost, "/v1/bump/preview", map[string]any{
		"user_id": "u1",
		"task_id": task.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var slot slotResponse
	decodeBody(t, rec, &slot)
	assert.NotEmpty(t, slot.Date)
	assert.NotEmpty(t, slot.Time)

	// Nothing was written by the preview.
	got, err := st.GetTaskForUser(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.ScheduledDate)
}

func TestCommitmentEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	end := start.Add(time.Hour)
	rec := doJSON(t, srv.router, http.MethodPost, "/v1/commitments/", map[string]any{
		"user_id":    "u1",
		"title":      "team sync",
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)

	// End before start is rejected.
	rec = doJSON(t, srv.router, http.MethodPost, "/v1/commitments/", map[string]any{
		"user_id":    "u1",
		"title":      "backwards",
		"start_time": end.Format(time.RFC3339),
		"end_time":   start.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.router, http.MethodGet, "/v1/commitments/?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	decodeBody(t, rec, &list)
	assert.Len(t, list, 1)

	rec = doJSON(t, srv.router, http.MethodDelete, fmt.Sprintf("/v1/commitments/%s?user_id=u1", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, srv.router, http.MethodDelete, fmt.Sprintf("/v1/commitments/%s?user_id=u1", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreferenceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	// Unset preferences read as enabled.
	rec := doJSON(t, srv.router, http.MethodGet, "/v1/preferences/u1/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs struct {
		UserID         string `json:"user_id"`
		EnableAutoBump bool   `json:"enable_auto_bump"`
	}
	decodeBody(t, rec, &prefs)
	assert.True(t, prefs.EnableAutoBump)

	rec = doJSON(t, srv.router, http.MethodPut, "/v1/preferences/u1/", map[string]any{
		"enable_auto_bump": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.router, http.MethodGet, "/v1/preferences/u1/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &prefs)
	assert.False(t, prefs.EnableAutoBump)
}

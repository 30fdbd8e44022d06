package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autobump/internal/core"
	"autobump/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the bump engine as chat-command tools over stdio.
type MCPServer struct {
	store  *store.Store
	bumper *core.Bumper
	logger *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(store *store.Store, bumper *core.Bumper, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		store:  store,
		bumper: bumper,
		logger: logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"autobump",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	// bump_run_auto
	mcpServer.AddTool(mcp.NewTool("bump_run_auto",
		mcp.WithDescription("Reschedule all overdue and missed tasks for a user to conflict-free slots"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose tasks should be rescheduled"),
		),
	), s.handleRunAutoBump)

	// bump_manual
	mcpServer.AddTool(mcp.NewTool("bump_manual",
		mcp.WithDescription("Move one task to an explicit date and optional time, bypassing scoring and conflict checks"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner of the task"),
		),
		mcp.WithString("target_date",
			mcp.Required(),
			mcp.Description("New scheduled date, YYYY-MM-DD"),
		),
		mcp.WithString("target_time",
			mcp.Description("New scheduled time, HH:MM (optional)"),
		),
		mcp.WithString("reason",
			mcp.Description("Reason recorded in the bump history (optional)"),
		),
	), s.handleManualBump)

	// bump_history
	mcpServer.AddTool(mcp.NewTool("bump_history",
		mcp.WithDescription("Show recent bump history for a user, optionally narrowed to one task"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task ID to filter on (optional)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries to return, default 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleBumpHistory)

	// bump_preview_slot
	mcpServer.AddTool(mcp.NewTool("bump_preview_slot",
		mcp.WithDescription("Preview where the scheduler would place a task, without saving anything"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner of the task"),
		),
	), s.handlePreviewSlot)

	// todo_create
	mcpServer.AddTool(mcp.NewTool("todo_create",
		mcp.WithDescription("Create a todo task"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner of the task"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("priority",
			mcp.Description("Priority, default medium"),
			mcp.Enum("low", "medium", "high", "urgent"),
		),
		mcp.WithString("category",
			mcp.Description("Category used for scheduling preferences, e.g. video, practice, learn, review, build"),
		),
		mcp.WithNumber("estimated_minutes",
			mcp.Description("Estimated duration in minutes"),
			mcp.Min(1),
		),
		mcp.WithString("due_date",
			mcp.Description("Due timestamp, RFC3339 (optional)"),
		),
	), s.handleCreateTodo)

	// todo_list
	mcpServer.AddTool(mcp.NewTool("todo_list",
		mcp.WithDescription("List a user's todo tasks"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID"),
		),
		mcp.WithString("status",
			mcp.Description("Filter by status"),
			mcp.Enum("pending", "in_progress", "completed", "blocked", "cancelled"),
		),
	), s.handleListTodos)

	s.logger.Info("MCP tools registered", "count", 6)
}

func (s *MCPServer) handleRunAutoBump(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	result := s.bumper.ProcessAutoBump(ctx, userID)
	if !result.Success {
		return mcp.NewToolResultError(fmt.Sprintf("auto-bump failed: %s", strings.Join(result.Errors, "; "))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bumped %d task(s), skipped %d", result.BumpedCount, result.SkippedCount)
	if len(result.Errors) > 0 {
		fmt.Fprintf(&sb, "\nWarnings:\n- %s", strings.Join(result.Errors, "\n- "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *MCPServer) handleManualBump(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	userID := mcp.ParseString(request, "user_id", "")
	targetDateStr := mcp.ParseString(request, "target_date", "")

	targetDate, err := time.Parse("2006-01-02", targetDateStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target_date: %v", err)), nil
	}

	var targetTime *core.TimeOfDay
	if raw := mcp.ParseString(request, "target_time", ""); raw != "" {
		tod, err := core.ParseTimeOfDay(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid target_time: %v", err)), nil
		}
		targetTime = &tod
	}

	reason := core.BumpReason(mcp.ParseString(request, "reason", ""))

	if err := s.bumper.ManualBump(ctx, taskID, userID, targetDate, targetTime, reason); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			return mcp.NewToolResultError("task not found"), nil
		}
		s.logger.Error("manual bump", "task_id", taskID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("manual bump failed: %v", err)), nil
	}

	when := targetDate.Format("2006-01-02")
	if targetTime != nil {
		when = fmt.Sprintf("%s at %s", when, targetTime)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task rescheduled to %s", when)), nil
}

func (s *MCPServer) handleBumpHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")
	taskID := mcp.ParseString(request, "task_id", "")
	limit := int(mcp.ParseFloat64(request, "limit", 20))

	entries, err := s.bumper.BumpHistory(ctx, userID, taskID, limit)
	if err != nil {
		s.logger.Error("bump history", "user_id", userID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No bump history"), nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		author := "auto"
		if entry.UserConfirmed {
			author = "manual"
		}
		fmt.Fprintf(&sb, "%s  task=%s  reason=%s  (%s)\n",
			entry.CreatedAt.Format(time.RFC3339), entry.TaskID, entry.Reason, author)
		if entry.NewScheduledDate != nil {
			fmt.Fprintf(&sb, "  moved to %s", entry.NewScheduledDate.Format("2006-01-02"))
			if entry.Context.SuggestedTime != nil {
				fmt.Fprintf(&sb, " %s", entry.Context.SuggestedTime)
			}
			sb.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *MCPServer) handlePreviewSlot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	userID := mcp.ParseString(request, "user_id", "")

	slot, err := s.bumper.PreviewSlot(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			return mcp.NewToolResultError("task not found"), nil
		}
		s.logger.Error("preview slot", "task_id", taskID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("preview failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Next free slot: %s at %s",
		slot.Date.Format("2006-01-02"), slot.Time)), nil
}

func (s *MCPServer) handleCreateTodo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")
	title := strings.TrimSpace(mcp.ParseString(request, "title", ""))
	if userID == "" || title == "" {
		return mcp.NewToolResultError("user_id and title are required"), nil
	}

	task := &core.Task{
		ID:       core.NewID(),
		UserID:   userID,
		Title:    title,
		Priority: core.Priority(mcp.ParseString(request, "priority", string(core.PriorityMedium))),
		Status:   core.TaskStatusPending,
		Category: mcp.ParseString(request, "category", ""),
	}
	if minutes := mcp.ParseFloat64(request, "estimated_minutes", 0); minutes > 0 {
		est := int(minutes)
		task.EstimatedMinutes = &est
	}
	if raw := mcp.ParseString(request, "due_date", ""); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid due_date: %v", err)), nil
		}
		task.DueDate = &due
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		s.logger.Error("insert task", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task created\nID: %s", task.ID)), nil
}

func (s *MCPServer) handleListTodos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	var statusFilter *core.TaskStatus
	if raw := mcp.ParseString(request, "status", ""); raw != "" {
		status := core.TaskStatus(raw)
		statusFilter = &status
	}

	tasks, err := s.store.ListTasks(ctx, userID, statusFilter)
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No tasks"), nil
	}

	var sb strings.Builder
	for _, task := range tasks {
		fmt.Fprintf(&sb, "[%s] %s  (%s, %s, bumped %d)",
			task.ID, task.Title, task.Priority, task.Status, task.BumpCount)
		if task.ScheduledDate != nil {
			fmt.Fprintf(&sb, "  scheduled %s", task.ScheduledDate.Format("2006-01-02"))
			if task.ScheduledTime != nil {
				fmt.Fprintf(&sb, " %s", task.ScheduledTime)
			}
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

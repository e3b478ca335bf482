// gravity-mcp exposes the task board over MCP so an agent can rank
// tasks, size focus sessions, and drive session lifecycles against the
// same state directory the daemon uses.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/gravity"
	"github.com/gravityboard/gravityd/internal/store"
	"github.com/gravityboard/gravityd/internal/task"
)

var (
	db     *store.DB
	engine *gravity.Engine
	sched  *focus.Scheduler
)

func main() {
	_ = godotenv.Load()

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	os.MkdirAll(statePath, 0755)

	var err error
	db, err = store.Open(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	engine = gravity.NewEngine()
	sched = focus.NewScheduler(focus.WithStore(db))
	if err := sched.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sessions: %v\n", err)
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"gravity-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(rankTool(), handleRank)
	s.AddTool(addTaskTool(), handleAddTask)
	s.AddTool(proposeDurationTool(), handleProposeDuration)
	s.AddTool(startFocusTool(), handleStartFocus)
	s.AddTool(completeFocusTool(), handleCompleteFocus)

	// Run server
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func rankTool() mcp.Tool {
	return mcp.NewTool("rank_tasks",
		mcp.WithDescription("List tasks ordered by gravity score, highest pull first. Scores are computed fresh against the supplied context."),
		mcp.WithString("energy",
			mcp.Description("Current energy level: low, medium, or high. Default: medium"),
		),
		mcp.WithString("location",
			mcp.Description("Current location tag, matched against task context tags"),
		),
		mcp.WithBoolean("include_completed",
			mcp.Description("Whether to include completed tasks. Default: false"),
		),
	)
}

func handleRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	energy, _ := args["energy"].(string)
	location, _ := args["location"].(string)
	includeCompleted, _ := args["include_completed"].(bool)

	tasks, err := db.ListTasks(includeCompleted)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	ranked := engine.Rank(tasks, task.Context{
		EnergyLevel: task.EnergyLevel(energy),
		LocationTag: location,
	})

	output, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(output)), nil
}

func addTaskTool() mcp.Tool {
	return mcp.NewTool("add_task",
		mcp.WithDescription("Create a task on the board. Urgency and effort default to 5 and are clamped to [0, 10]."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("description",
			mcp.Description("Longer task description"),
		),
		mcp.WithNumber("urgency",
			mcp.Description("How urgent the task is, 0-10"),
		),
		mcp.WithNumber("effort",
			mcp.Description("How much effort the task takes, 0-10"),
		),
		mcp.WithString("energy_level",
			mcp.Description("Energy the task demands: low, medium, or high"),
		),
		mcp.WithString("deadline",
			mcp.Description("Deadline in RFC3339 format (e.g. 2026-09-01T17:00:00Z)"),
		),
	)
}

func handleAddTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	title, _ := args["title"].(string)
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	t := task.Snapshot{
		Title:       title,
		Urgency:     task.DefaultMetric,
		Effort:      task.DefaultMetric,
		EnergyLevel: task.EnergyMedium,
	}
	if d, ok := args["description"].(string); ok {
		t.Description = d
	}
	if u, ok := args["urgency"].(float64); ok {
		t.Urgency = task.ClampMetric(u)
	}
	if e, ok := args["effort"].(float64); ok {
		t.Effort = task.ClampMetric(e)
	}
	if lvl, ok := args["energy_level"].(string); ok && lvl != "" {
		t.EnergyLevel = task.EnergyLevel(lvl)
	}
	if d, ok := args["deadline"].(string); ok && d != "" {
		parsed, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid deadline: %v", err)), nil
		}
		t.Deadline = &parsed
	}

	if err := db.CreateTask(&t); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created task '%s'\n\nTask ID: %s", t.Title, t.ID)), nil
}

func proposeDurationTool() mcp.Tool {
	return mcp.NewTool("propose_duration",
		mcp.WithDescription("Compute the recommended focus session length in minutes for a task, given the user's current energy. Does not start a session."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("energy",
			mcp.Description("Current energy level: low, medium, or high. Default: medium"),
		),
	)
}

func handleProposeDuration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	taskID, _ := args["task_id"].(string)
	energy, _ := args["energy"].(string)

	if taskID == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	t, err := db.GetTask(taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return mcp.NewToolResultError("task not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load task: %v", err)), nil
	}

	minutes := focus.ProposeDuration(*t, task.EnergyLevel(energy), time.Now())
	return mcp.NewToolResultText(fmt.Sprintf("Recommended duration for '%s': %d minutes", t.Title, minutes)), nil
}

func startFocusTool() mcp.Tool {
	return mcp.NewTool("start_focus",
		mcp.WithDescription("Start a focus session on a task. Returns the session ID and planned duration."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("energy",
			mcp.Description("Current energy level: low, medium, or high. Default: medium"),
		),
	)
}

func handleStartFocus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	taskID, _ := args["task_id"].(string)
	energy, _ := args["energy"].(string)

	if taskID == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	t, err := db.GetTask(taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return mcp.NewToolResultError("task not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load task: %v", err)), nil
	}

	session, err := sched.Start(*t, task.EnergyLevel(energy))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Started focus session on '%s'\n\nSession ID: %s\nPlanned duration: %d minutes",
		t.Title, session.ID, session.PlannedMinutes,
	)), nil
}

func completeFocusTool() mcp.Tool {
	return mcp.NewTool("complete_focus",
		mcp.WithDescription("End a focus session. A session can only be ended once; sessions past their planned duration count as completed by timeout."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by start_focus"),
		),
		mcp.WithBoolean("success",
			mcp.Description("Whether the session finished its work. Default: true"),
		),
		mcp.WithNumber("distractions",
			mcp.Description("How many times the user was distracted"),
		),
	)
}

func handleCompleteFocus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	success := true
	if s, ok := args["success"].(bool); ok {
		success = s
	}
	distractions := 0
	if d, ok := args["distractions"].(float64); ok {
		distractions = int(d)
	}

	session, err := sched.Complete(sessionID, success, distractions)
	switch {
	case errors.Is(err, focus.ErrSessionNotFound):
		return mcp.NewToolResultError("session not found"), nil
	case errors.Is(err, focus.ErrSessionAlreadyTerminal):
		return mcp.NewToolResultError(fmt.Sprintf("session already %s", session.State)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete session: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Session %s -> %s after %.1f minutes (%d distractions)",
		session.ID, session.State, session.ActualMinutes, session.Distractions,
	)), nil
}

// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the aipm board as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// Server wraps the task manager and exposes it as MCP tools. Mutating tools
// each run as a one-call turn through the dispatcher, so every successful
// call is one undo step.
type Server struct {
	server      *gomcp.Server
	taskMgr     core.TaskManager
	dispatch    *core.Dispatcher
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	label       string
	log         *zap.Logger
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithTurnLabel sets the snapshot label for tool calls.
func WithTurnLabel(label string) ServerOption {
	return func(s *Server) { s.label = label }
}

// WithServerLogger sets the logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// NewServer creates an MCP server. metricsCalc and alertEngine may be nil, in
// which case get_metrics and get_alerts report that they are unavailable.
func NewServer(taskMgr core.TaskManager, dispatch *core.Dispatcher, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string, opts ...ServerOption) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		taskMgr:     taskMgr,
		dispatch:    dispatch,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		label:       core.DefaultTurnLabel,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "aipm", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,id prefix of the task (at least 4 hex characters)"`
}

type taskOutput struct {
	ID           string   `json:"id"`
	ShortID      string   `json:"short_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Bucket       string   `json:"bucket"`
	Progress     string   `json:"progress"`
	Priority     string   `json:"priority"`
	DueDate      string   `json:"due_date,omitempty"`
	ParentID     string   `json:"parent_id,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Created      string   `json:"created"`
	Updated      string   `json:"updated"`
	Started      string   `json:"started,omitempty"`
}

type listTasksInput struct {
	Bucket    string `json:"bucket,omitempty" jsonschema:"only tasks in this bucket"`
	Progress  string `json:"progress,omitempty" jsonschema:"only tasks at this progress (backlog, todo, in_progress, done)"`
	Priority  string `json:"priority,omitempty" jsonschema:"only tasks with this priority (low, medium, high, critical)"`
	ParentID  string `json:"parent_id,omitempty" jsonschema:"only direct subtasks of this task"`
	RootsOnly bool   `json:"roots_only,omitempty" jsonschema:"only tasks without a parent"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type listBucketsInput struct{}

type bucketOutput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tasks       int    `json:"tasks"`
}

type listBucketsOutput struct {
	Buckets []bucketOutput `json:"buckets"`
}

type hintOutput struct {
	ParentID  string `json:"parent_id"`
	Title     string `json:"title"`
	Current   string `json:"current"`
	Suggested string `json:"suggested"`
	Applied   bool   `json:"applied,omitempty"`
}

type bulkFailureOutput struct {
	Selector  string `json:"selector"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

type bulkOutput struct {
	Changed   []string            `json:"changed"`
	Unchanged []string            `json:"unchanged"`
	Failed    []bulkFailureOutput `json:"failed"`
}

type mutationOutput struct {
	Message     string       `json:"message,omitempty"`
	TaskIDs     []string     `json:"task_ids,omitempty"`
	Bulk        *bulkOutput  `json:"bulk,omitempty"`
	ParentHints []hintOutput `json:"parent_hints,omitempty"`
	Changed     bool         `json:"changed"`
}

type undoInput struct{}

type undoOutput struct {
	Undone string `json:"undone"`
}

type historyInput struct{}

type historyEntryOutput struct {
	Seq       uint64 `json:"seq"`
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
}

type historyOutput struct {
	Entries []historyEntryOutput `json:"entries"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksDeleted    int            `json:"tasks_deleted"`
	ProgressChanges map[string]int `json:"progress_changes"`
	Undos           int            `json:"undos"`
	AITurns         int            `json:"ai_turns"`
	AICallsOK       int            `json:"ai_calls_succeeded"`
	AICallsFailed   int            `json:"ai_calls_failed"`
	InboxCreated    int            `json:"inbox_created"`
	InboxRetracted  int            `json:"inbox_retracted"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(core.ToolCreateTask),
		Description: "Create a task, optionally with up to 12 subtasks. Unknown buckets are rejected; omitted fields take defaults (first bucket, medium priority, backlog).",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(core.ToolUpdateTask),
		Description: "Change fields of one task identified by an id prefix. Only the given fields change; an empty due_date or parent_id clears it.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(core.ToolDeleteTask),
		Description: "Delete a task and all of its subtasks. References to deleted tasks are removed from other tasks' dependencies.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(core.ToolDecomposeTask),
		Description: "Break a task into 1 to 12 subtasks. Subtasks inherit the parent's bucket and priority unless given.",
	}, s.handleDecomposeTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(core.ToolBulkUpdateTasks),
		Description: "Apply the same change to many tasks, chosen by id prefixes, [\"all\"], or bucket/progress filters. Reports changed, unchanged and failed targets.",
	}, s.handleBulkUpdate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks with optional bucket, progress, priority and parent filters.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task by id prefix.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_buckets",
		Description: "List buckets in board order with their task counts.",
	}, s.handleListBuckets)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "undo",
		Description: "Revert the most recent recorded change and report its label.",
	}, s.handleUndo)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "history",
		Description: "List the undo history, oldest first.",
	}, s.handleHistory)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get activity counts from the event log: tasks created, completed and deleted, undos, agent turns and inbox activity.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate board alerts: overdue tasks, stale in-progress tasks and backlog size.",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input core.CreateTaskArgs) (*gomcp.CallToolResult, mutationOutput, error) {
	return s.runTool(ctx, &input)
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input core.UpdateTaskArgs) (*gomcp.CallToolResult, mutationOutput, error) {
	return s.runTool(ctx, &input)
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input core.DeleteTaskArgs) (*gomcp.CallToolResult, mutationOutput, error) {
	return s.runTool(ctx, &input)
}

func (s *Server) handleDecomposeTask(ctx context.Context, _ *gomcp.CallToolRequest, input core.DecomposeTaskArgs) (*gomcp.CallToolResult, mutationOutput, error) {
	return s.runTool(ctx, &input)
}

func (s *Server) handleBulkUpdate(ctx context.Context, _ *gomcp.CallToolRequest, input core.BulkUpdateTasksArgs) (*gomcp.CallToolResult, mutationOutput, error) {
	return s.runTool(ctx, &input)
}

func (s *Server) runTool(ctx context.Context, req core.ToolRequest) (*gomcp.CallToolResult, mutationOutput, error) {
	res, err := s.dispatch.RunRequests(ctx, s.label, []core.ToolRequest{req})
	if err != nil {
		return errorResult(fmt.Sprintf("running %s: %s", req.ToolKind(), err)), mutationOutput{}, nil
	}
	out := res.Outcomes[0]
	s.log.Debug("mcp tool call",
		zap.String("tool", string(out.Kind)),
		zap.Bool("ok", out.OK),
		zap.String("error_kind", string(out.ErrorKind)))
	if !out.OK {
		return errorResult(fmt.Sprintf("%s: %s", out.ErrorKind, out.Error)), mutationOutput{}, nil
	}
	return nil, outcomeToOutput(out, res.Changed), nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.taskMgr.GetTask(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}

	return nil, taskToOutput(task), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter := core.TaskFilter{Bucket: input.Bucket, Parent: input.ParentID, RootsOnly: input.RootsOnly}
	if input.Progress != "" {
		p, ok := models.ParseProgress(input.Progress)
		if !ok {
			return errorResult(fmt.Sprintf("invalid progress %q: must be one of backlog, todo, in_progress, done", input.Progress)), listTasksOutput{}, nil
		}
		filter.Progress = &p
	}
	if input.Priority != "" {
		p, ok := models.ParsePriority(input.Priority)
		if !ok {
			return errorResult(fmt.Sprintf("invalid priority %q: must be one of low, medium, high, critical", input.Priority)), listTasksOutput{}, nil
		}
		filter.Priority = &p
	}

	tasks, err := s.taskMgr.ListTasks(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleListBuckets(_ context.Context, _ *gomcp.CallToolRequest, _ listBucketsInput) (*gomcp.CallToolResult, listBucketsOutput, error) {
	tasks, err := s.taskMgr.ListTasks(core.TaskFilter{})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listBucketsOutput{}, nil
	}
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.Bucket]++
	}

	buckets := s.taskMgr.Buckets()
	out := listBucketsOutput{Buckets: make([]bucketOutput, len(buckets))}
	for i, b := range buckets {
		out.Buckets[i] = bucketOutput{Name: b.Name, Description: b.Description, Tasks: counts[b.Name]}
	}
	return nil, out, nil
}

func (s *Server) handleUndo(_ context.Context, _ *gomcp.CallToolRequest, _ undoInput) (*gomcp.CallToolResult, undoOutput, error) {
	label, err := s.taskMgr.Undo()
	if err != nil {
		return errorResult(fmt.Sprintf("%s: %s", core.KindOf(err), err)), undoOutput{}, nil
	}
	return nil, undoOutput{Undone: label}, nil
}

func (s *Server) handleHistory(_ context.Context, _ *gomcp.CallToolRequest, _ historyInput) (*gomcp.CallToolResult, historyOutput, error) {
	entries := s.taskMgr.History()
	out := historyOutput{Entries: make([]historyEntryOutput, len(entries))}
	for i, e := range entries {
		out.Entries[i] = historyEntryOutput{Seq: e.Seq, Label: e.Label, Timestamp: e.Timestamp.Format(time.RFC3339)}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := observability.ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:    metrics.TasksCreated,
		TasksCompleted:  metrics.TasksCompleted,
		TasksDeleted:    metrics.TasksDeleted,
		ProgressChanges: metrics.ProgressChanges,
		Undos:           metrics.Undos,
		AITurns:         metrics.AITurns,
		AICallsOK:       metrics.AICallsOK,
		AICallsFailed:   metrics.AICallsFailed,
		InboxCreated:    metrics.InboxCreated,
		InboxRetracted:  metrics.InboxRetracted,
		EventCount:      metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available"), getAlertsOutput{}, nil
	}

	tasks, err := s.taskMgr.ListTasks(core.TaskFilter{})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), getAlertsOutput{}, nil
	}
	alerts := s.alertEngine.Evaluate(tasks)

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:           t.ID.String(),
		ShortID:      t.ShortID(),
		Title:        t.Title,
		Description:  t.Description,
		Bucket:       t.Bucket,
		Progress:     string(t.Progress),
		Priority:     string(t.Priority),
		Dependencies: idStrings(t.Dependencies),
		Created:      t.CreatedAt.Format(time.RFC3339),
		Updated:      t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.String()
	}
	if t.ParentID != nil {
		out.ParentID = t.ParentID.String()
	}
	if t.StartDate != nil {
		out.Started = t.StartDate.Format(time.RFC3339)
	}
	return out
}

func outcomeToOutput(o core.ToolOutcome, changed bool) mutationOutput {
	out := mutationOutput{
		Message:     o.Message,
		TaskIDs:     idStrings(o.TaskIDs),
		ParentHints: hintsToOutput(o.Hints),
		Changed:     changed,
	}
	if o.Bulk != nil {
		b := &bulkOutput{
			Changed:   idStrings(o.Bulk.Changed),
			Unchanged: idStrings(o.Bulk.Unchanged),
			Failed:    make([]bulkFailureOutput, len(o.Bulk.Failed)),
		}
		for i, f := range o.Bulk.Failed {
			b.Failed[i] = bulkFailureOutput{Selector: f.Selector, ErrorKind: string(f.Kind), Message: f.Message}
		}
		if b.Changed == nil {
			b.Changed = []string{}
		}
		if b.Unchanged == nil {
			b.Unchanged = []string{}
		}
		out.Bulk = b
	}
	return out
}

func hintsToOutput(hints []core.ParentHint) []hintOutput {
	if len(hints) == 0 {
		return nil
	}
	out := make([]hintOutput, len(hints))
	for i, h := range hints {
		out[i] = hintOutput{
			ParentID:  h.ParentID.String(),
			Title:     h.Title,
			Current:   string(h.Current),
			Suggested: string(h.Suggested),
			Applied:   h.Applied,
		}
	}
	return out
}

func idStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{ProgressChanges: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

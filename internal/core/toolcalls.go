package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// ToolKind names an agent tool.
type ToolKind string

const (
	ToolCreateTask      ToolKind = "create_task"
	ToolUpdateTask      ToolKind = "update_task"
	ToolDeleteTask      ToolKind = "delete_task"
	ToolDecomposeTask   ToolKind = "decompose_task"
	ToolBulkUpdateTasks ToolKind = "bulk_update_tasks"
)

// Input limits applied to agent-supplied text.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 400
)

// ToolCall is one raw tool invocation from an agent.
type ToolCall struct {
	Kind      ToolKind        `json:"kind"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolRequest is a decoded and validated tool call.
type ToolRequest interface {
	ToolKind() ToolKind
	Validate() error
	apply(e *Engine) (ToolOutcome, error)
}

// SubtaskArgs describes one subtask in create, update and decompose calls.
type SubtaskArgs struct {
	Title       string `json:"title" jsonschema:"required,short title of the subtask"`
	Description string `json:"description,omitempty" jsonschema:"optional longer description"`
	Bucket      string `json:"bucket,omitempty" jsonschema:"bucket name; defaults to the parent's bucket"`
	Priority    string `json:"priority,omitempty" jsonschema:"low, medium, high or critical; defaults to the parent's priority"`
	Progress    string `json:"progress,omitempty" jsonschema:"backlog, todo, in_progress or done"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
	DependsOn   []int  `json:"depends_on,omitempty" jsonschema:"zero-based positions of sibling subtasks in this call that this one depends on"`
}

// CreateTaskArgs are the arguments of create_task.
type CreateTaskArgs struct {
	Title        string        `json:"title" jsonschema:"required,short task title"`
	Description  string        `json:"description,omitempty" jsonschema:"optional longer description"`
	Bucket       string        `json:"bucket,omitempty" jsonschema:"bucket name; defaults to the first bucket"`
	Priority     string        `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Progress     string        `json:"progress,omitempty" jsonschema:"backlog, todo, in_progress or done"`
	DueDate      string        `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
	ParentID     string        `json:"parent_id,omitempty" jsonschema:"id prefix of the parent task"`
	Dependencies []string      `json:"dependencies,omitempty" jsonschema:"id prefixes of tasks this one depends on"`
	Subtasks     []SubtaskArgs `json:"subtasks,omitempty" jsonschema:"subtasks to create under the new task"`
}

// UpdateTaskArgs are the arguments of update_task. Absent fields are left
// alone; an empty due_date or parent_id clears it.
type UpdateTaskArgs struct {
	TargetID     string        `json:"target_id" jsonschema:"required,id prefix of the task to update (at least 4 hex characters)"`
	Title        *string       `json:"title,omitempty" jsonschema:"new title"`
	Description  *string       `json:"description,omitempty" jsonschema:"new description"`
	Bucket       *string       `json:"bucket,omitempty" jsonschema:"new bucket name"`
	Priority     *string       `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Progress     *string       `json:"progress,omitempty" jsonschema:"backlog, todo, in_progress or done"`
	DueDate      *string       `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD, or empty to clear"`
	ParentID     *string       `json:"parent_id,omitempty" jsonschema:"id prefix of the new parent, or empty to detach"`
	Dependencies []string      `json:"dependencies,omitempty" jsonschema:"replaces the dependency set with these id prefixes"`
	Subtasks     []SubtaskArgs `json:"subtasks,omitempty" jsonschema:"subtasks to add under the task"`
}

// DeleteTaskArgs are the arguments of delete_task.
type DeleteTaskArgs struct {
	TargetID string `json:"target_id" jsonschema:"required,id prefix of the task to delete; its subtasks are deleted too"`
}

// DecomposeTaskArgs are the arguments of decompose_task.
type DecomposeTaskArgs struct {
	TargetID string        `json:"target_id" jsonschema:"required,id prefix of the task to break down"`
	Subtasks []SubtaskArgs `json:"subtasks" jsonschema:"required,between 1 and 12 subtasks"`
}

// BulkUpdateTasksArgs are the arguments of bulk_update_tasks.
type BulkUpdateTasksArgs struct {
	TargetIDs      []string `json:"target_ids,omitempty" jsonschema:"id prefixes to update, or [\"all\"]"`
	FilterBucket   string   `json:"filter_bucket,omitempty" jsonschema:"only update tasks in this bucket"`
	FilterProgress string   `json:"filter_progress,omitempty" jsonschema:"only update tasks at this progress"`
	Bucket         *string  `json:"bucket,omitempty" jsonschema:"new bucket name"`
	Priority       *string  `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Progress       *string  `json:"progress,omitempty" jsonschema:"backlog, todo, in_progress or done"`
	DueDate        *string  `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD, or empty to clear"`
}

// ParseToolCall decodes c strictly into its typed request and validates it.
func ParseToolCall(c ToolCall) (ToolRequest, error) {
	var req ToolRequest
	switch ToolKind(strings.TrimSpace(string(c.Kind))) {
	case ToolCreateTask:
		req = &CreateTaskArgs{}
	case ToolUpdateTask:
		req = &UpdateTaskArgs{}
	case ToolDeleteTask:
		req = &DeleteTaskArgs{}
	case ToolDecomposeTask:
		req = &DecomposeTaskArgs{}
	case ToolBulkUpdateTasks:
		req = &BulkUpdateTasksArgs{}
	default:
		return nil, newError(KindValidation, "unknown tool %q", c.Kind)
	}
	args := c.Arguments
	if len(bytes.TrimSpace(args)) == 0 {
		args = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, newError(KindValidation, "decoding %s arguments: %v", c.Kind, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (a *CreateTaskArgs) ToolKind() ToolKind      { return ToolCreateTask }
func (a *UpdateTaskArgs) ToolKind() ToolKind      { return ToolUpdateTask }
func (a *DeleteTaskArgs) ToolKind() ToolKind      { return ToolDeleteTask }
func (a *DecomposeTaskArgs) ToolKind() ToolKind   { return ToolDecomposeTask }
func (a *BulkUpdateTasksArgs) ToolKind() ToolKind { return ToolBulkUpdateTasks }

func (a *CreateTaskArgs) Validate() error {
	_, err := a.toNewTask()
	return err
}

func (a *UpdateTaskArgs) Validate() error {
	if strings.TrimSpace(a.TargetID) == "" {
		return newError(KindValidation, "target_id is required")
	}
	upd, err := a.toUpdate()
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return newError(KindValidation, "update_task needs at least one field to change")
	}
	return nil
}

func (a *DeleteTaskArgs) Validate() error {
	if strings.TrimSpace(a.TargetID) == "" {
		return newError(KindValidation, "target_id is required")
	}
	return nil
}

func (a *DecomposeTaskArgs) Validate() error {
	if strings.TrimSpace(a.TargetID) == "" {
		return newError(KindValidation, "target_id is required")
	}
	if len(a.Subtasks) == 0 {
		return newError(KindValidation, "decompose_task needs at least one subtask")
	}
	_, err := toSubtaskSpecs(a.Subtasks)
	return err
}

func (a *BulkUpdateTasksArgs) Validate() error {
	sel, upd, err := a.toSelectorUpdate()
	if err != nil {
		return err
	}
	if len(sel.IDs) == 0 && !sel.hasPredicate() {
		return newError(KindValidation, "bulk_update_tasks needs target_ids or a filter")
	}
	if upd.IsEmpty() {
		return newError(KindValidation, "bulk_update_tasks needs at least one field to change")
	}
	return nil
}

func (a *CreateTaskArgs) toNewTask() (NewTask, error) {
	in := NewTask{
		Title:        truncate(a.Title, MaxTitleLen),
		Description:  truncate(a.Description, MaxDescriptionLen),
		Bucket:       a.Bucket,
		Parent:       a.ParentID,
		Dependencies: a.Dependencies,
	}
	if strings.TrimSpace(in.Title) == "" {
		return NewTask{}, newError(KindValidation, "title is required")
	}
	var err error
	if in.Priority, err = parsePriorityArg(a.Priority); err != nil {
		return NewTask{}, err
	}
	if in.Progress, err = parseProgressArg(a.Progress); err != nil {
		return NewTask{}, err
	}
	if in.DueDate, err = parseDateArg(a.DueDate); err != nil {
		return NewTask{}, err
	}
	if in.Subtasks, err = toSubtaskSpecs(a.Subtasks); err != nil {
		return NewTask{}, err
	}
	return in, nil
}

func (a *UpdateTaskArgs) toUpdate() (TaskUpdate, error) {
	var upd TaskUpdate
	if a.Title != nil {
		t := truncate(*a.Title, MaxTitleLen)
		if strings.TrimSpace(t) == "" {
			return upd, newError(KindValidation, "title must not be empty")
		}
		upd.Title = &t
	}
	if a.Description != nil {
		d := truncate(*a.Description, MaxDescriptionLen)
		upd.Description = &d
	}
	upd.Bucket = a.Bucket
	if err := fillCommon(&upd, a.Priority, a.Progress, a.DueDate); err != nil {
		return upd, err
	}
	if a.ParentID != nil {
		if strings.TrimSpace(*a.ParentID) == "" {
			upd.ClearParent = true
		} else {
			p := *a.ParentID
			upd.Parent = &p
		}
	}
	if a.Dependencies != nil {
		deps := append([]string{}, a.Dependencies...)
		upd.Dependencies = &deps
	}
	subs, err := toSubtaskSpecs(a.Subtasks)
	if err != nil {
		return upd, err
	}
	upd.Subtasks = subs
	return upd, nil
}

func (a *BulkUpdateTasksArgs) toSelectorUpdate() (Selector, TaskUpdate, error) {
	sel := Selector{Bucket: a.FilterBucket}
	for _, id := range a.TargetIDs {
		if strings.TrimSpace(id) != "" {
			sel.IDs = append(sel.IDs, id)
		}
	}
	var err error
	if sel.Progress, err = parseProgressArg(a.FilterProgress); err != nil {
		return sel, TaskUpdate{}, err
	}
	upd := TaskUpdate{Bucket: a.Bucket}
	if err := fillCommon(&upd, a.Priority, a.Progress, a.DueDate); err != nil {
		return sel, upd, err
	}
	return sel, upd, nil
}

func fillCommon(upd *TaskUpdate, priority, progress, due *string) error {
	if priority != nil {
		p, ok := models.ParsePriority(*priority)
		if !ok {
			return newError(KindValidation, "invalid priority %q", *priority)
		}
		upd.Priority = &p
	}
	if progress != nil {
		p, ok := models.ParseProgress(*progress)
		if !ok {
			return newError(KindValidation, "invalid progress %q", *progress)
		}
		upd.Progress = &p
	}
	if due != nil {
		if strings.TrimSpace(*due) == "" {
			upd.ClearDueDate = true
		} else {
			d, err := models.ParseDate(strings.TrimSpace(*due))
			if err != nil {
				return newError(KindValidation, "%v", err)
			}
			upd.DueDate = &d
		}
	}
	return nil
}

func toSubtaskSpecs(args []SubtaskArgs) ([]SubtaskSpec, error) {
	if len(args) > MaxSubtasks {
		return nil, newError(KindValidation, "at most %d subtasks per call, got %d", MaxSubtasks, len(args))
	}
	var specs []SubtaskSpec
	for i, a := range args {
		s := SubtaskSpec{
			Title:       truncate(a.Title, MaxTitleLen),
			Description: truncate(a.Description, MaxDescriptionLen),
			Bucket:      a.Bucket,
			DependsOn:   a.DependsOn,
		}
		if strings.TrimSpace(s.Title) == "" {
			return nil, newError(KindValidation, "subtask %d: title is required", i)
		}
		var err error
		if s.Priority, err = parsePriorityArg(a.Priority); err != nil {
			return nil, fmt.Errorf("subtask %d: %w", i, err)
		}
		if s.Progress, err = parseProgressArg(a.Progress); err != nil {
			return nil, fmt.Errorf("subtask %d: %w", i, err)
		}
		if s.DueDate, err = parseDateArg(a.DueDate); err != nil {
			return nil, fmt.Errorf("subtask %d: %w", i, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func parsePriorityArg(s string) (*models.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p, ok := models.ParsePriority(s)
	if !ok {
		return nil, newError(KindValidation, "invalid priority %q", s)
	}
	return &p, nil
}

func parseProgressArg(s string) (*models.Progress, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p, ok := models.ParseProgress(s)
	if !ok {
		return nil, newError(KindValidation, "invalid progress %q", s)
	}
	return &p, nil
}

func parseDateArg(s string) (*models.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := models.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, newError(KindValidation, "%v", err)
	}
	return &d, nil
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

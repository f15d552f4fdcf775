package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func validationErr(format string, args ...any) error {
	return &core.Error{Kind: core.KindValidation, Message: fmt.Sprintf(format, args...)}
}

func requireTaskManager() error {
	if TaskMgr == nil {
		return fmt.Errorf("task manager not initialized")
	}
	return nil
}

func parseProgressFlag(name, value string) (*models.Progress, error) {
	if value == "" {
		return nil, nil
	}
	p, ok := models.ParseProgress(value)
	if !ok {
		return nil, validationErr("--%s %q is invalid, must be one of: backlog, todo, in_progress, done", name, value)
	}
	return &p, nil
}

func parsePriorityFlag(name, value string) (*models.Priority, error) {
	if value == "" {
		return nil, nil
	}
	p, ok := models.ParsePriority(value)
	if !ok {
		return nil, validationErr("--%s %q is invalid, must be one of: low, medium, high, critical", name, value)
	}
	return &p, nil
}

func parseDateFlag(name, value string) (*models.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return nil, validationErr("--%s %q is invalid, expected YYYY-MM-DD", name, value)
	}
	return &d, nil
}

// taskList is the output of commands that return several tasks.
type taskList struct {
	Tasks []models.Task     `json:"tasks"`
	Hints []core.ParentHint `json:"parent_hints,omitempty"`
}

func newTaskList(tasks []models.Task, hints []core.ParentHint) taskList {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return taskList{Tasks: tasks, Hints: hints}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

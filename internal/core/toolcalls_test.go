package core

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name string
		call ToolCall
		kind ErrorKind
	}{
		{"unknown tool", ToolCall{Kind: "fly"}, KindValidation},
		{"unknown field", ToolCall{Kind: ToolDeleteTask, Arguments: json.RawMessage(`{"target_id":"abcd","force":true}`)}, KindValidation},
		{"malformed json", ToolCall{Kind: ToolDeleteTask, Arguments: json.RawMessage(`{"target_id":`)}, KindValidation},
		{"missing title", ToolCall{Kind: ToolCreateTask}, KindValidation},
		{"bad priority", ToolCall{Kind: ToolCreateTask, Arguments: json.RawMessage(`{"title":"x","priority":"urgent"}`)}, KindValidation},
		{"bad due date", ToolCall{Kind: ToolCreateTask, Arguments: json.RawMessage(`{"title":"x","due_date":"tomorrow"}`)}, KindValidation},
		{"update without changes", ToolCall{Kind: ToolUpdateTask, Arguments: json.RawMessage(`{"target_id":"abcd"}`)}, KindValidation},
		{"decompose without subtasks", ToolCall{Kind: ToolDecomposeTask, Arguments: json.RawMessage(`{"target_id":"abcd","subtasks":[]}`)}, KindValidation},
		{"bulk without selector", ToolCall{Kind: ToolBulkUpdateTasks, Arguments: json.RawMessage(`{"priority":"low"}`)}, KindValidation},
		{"bulk without changes", ToolCall{Kind: ToolBulkUpdateTasks, Arguments: json.RawMessage(`{"target_ids":["all"]}`)}, KindValidation},
		{"valid delete", ToolCall{Kind: ToolDeleteTask, Arguments: json.RawMessage(`{"target_id":"abcd"}`)}, ""},
		{"valid bulk", ToolCall{Kind: " bulk_update_tasks ", Arguments: json.RawMessage(`{"filter_progress":"Todo","progress":"done"}`)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseToolCall(tt.call)
			if tt.kind != "" {
				wantKind(t, err, tt.kind)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req == nil {
				t.Fatal("expected a request")
			}
		})
	}
}

func TestUpdateTaskArgs_EmptyStringsClear(t *testing.T) {
	empty := ""
	args := UpdateTaskArgs{TargetID: "abcd", DueDate: &empty, ParentID: &empty}

	upd, err := args.toUpdate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !upd.ClearDueDate || !upd.ClearParent {
		t.Errorf("empty due_date and parent_id should clear, got %+v", upd)
	}
	if upd.DueDate != nil || upd.Parent != nil {
		t.Error("clearing must not also set")
	}
}

func TestCreateTaskArgs_Truncates(t *testing.T) {
	args := CreateTaskArgs{
		Title:       strings.Repeat("é", MaxTitleLen+20),
		Description: strings.Repeat("d", MaxDescriptionLen+1),
	}
	in, err := args.toNewTask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(in.Title); n != MaxTitleLen {
		t.Errorf("title runes = %d, want %d", n, MaxTitleLen)
	}
	if !utf8.ValidString(in.Title) {
		t.Error("truncation must not split a rune")
	}
	if len(in.Description) != MaxDescriptionLen {
		t.Errorf("description length = %d, want %d", len(in.Description), MaxDescriptionLen)
	}
}

func TestToSubtaskSpecs_TooMany(t *testing.T) {
	args := make([]SubtaskArgs, MaxSubtasks+1)
	for i := range args {
		args[i].Title = "s"
	}
	_, err := toSubtaskSpecs(args)
	wantKind(t, err, KindValidation)
}

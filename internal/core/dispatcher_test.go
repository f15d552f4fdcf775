package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valter-silva-au/aipm/pkg/models"
)

func call(t *testing.T, kind ToolKind, args any) ToolCall {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshaling %s args: %v", kind, err)
	}
	return ToolCall{Kind: kind, Arguments: raw}
}

func TestRunTurn_PartialFailureRecordsOneSnapshot(t *testing.T) {
	env := newTestManager(t)
	d := NewDispatcher(env.tm, env.events, nil)

	res, err := d.RunTurn(context.Background(), "", []ToolCall{
		call(t, ToolCreateTask, map[string]any{"title": "A", "priority": "High"}),
		call(t, ToolDeleteTask, map[string]any{"target_id": "bad-id"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", res.Succeeded, res.Failed)
	}
	if !res.Outcomes[0].OK || len(res.Outcomes[0].TaskIDs) != 1 {
		t.Errorf("create outcome = %+v", res.Outcomes[0])
	}
	if res.Outcomes[1].ErrorKind != KindNotFound {
		t.Errorf("delete outcome kind = %s, want NotFound", res.Outcomes[1].ErrorKind)
	}
	h := env.tm.History()
	if len(h) != 1 || h[0].Label != DefaultTurnLabel {
		t.Errorf("History = %+v, want one %q entry", h, DefaultTurnLabel)
	}
	tasks, _ := env.tm.ListTasks(TaskFilter{})
	if len(tasks) != 1 || tasks[0].Priority != models.PriorityHigh {
		t.Errorf("board after turn = %+v", tasks)
	}
}

func TestRunTurn_UndoRevertsWholeTurn(t *testing.T) {
	env := newTestManager(t)
	existing := mustAdd(t, env.tm, NewTask{Title: "Existing"})
	before := env.tm.State()
	d := NewDispatcher(env.tm, nil, nil)

	_, err := d.RunTurn(context.Background(), "triage inbox", []ToolCall{
		call(t, ToolCreateTask, map[string]any{"title": "New one"}),
		call(t, ToolUpdateTask, map[string]any{"target_id": existing.ID.String(), "progress": "in progress"}),
		call(t, ToolDecomposeTask, map[string]any{
			"target_id": existing.ID.String(),
			"subtasks":  []map[string]any{{"title": "step 1"}, {"title": "step 2", "depends_on": []int{0}}},
		}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(env.tm.State().Tasks); got != 4 {
		t.Fatalf("expected 4 tasks after turn, got %d", got)
	}

	label, err := env.tm.Undo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "triage inbox" {
		t.Errorf("label = %q", label)
	}
	if got := env.tm.State(); len(got.Tasks) != len(before.Tasks) {
		t.Errorf("undo should revert the whole turn, got %d tasks", len(got.Tasks))
	}
}

func TestRunTurn_AllFailuresRecordNothing(t *testing.T) {
	env := newTestManager(t)
	d := NewDispatcher(env.tm, nil, nil)

	res, err := d.RunTurn(context.Background(), "", []ToolCall{
		{Kind: "launch_rockets"},
		call(t, ToolCreateTask, map[string]any{"title": "x", "colour": "red"}),
		call(t, ToolUpdateTask, map[string]any{"target_id": "abcd"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed || res.Failed != 3 {
		t.Errorf("changed=%v failed=%d, want false/3", res.Changed, res.Failed)
	}
	for _, o := range res.Outcomes {
		if o.ErrorKind != KindValidation {
			t.Errorf("outcome %d kind = %s, want ValidationError", o.Index, o.ErrorKind)
		}
	}
	if len(env.tm.History()) != 0 {
		t.Error("a turn with no changes must not record a snapshot")
	}
}

func TestRunTurn_Cancelled(t *testing.T) {
	env := newTestManager(t)
	d := NewDispatcher(env.tm, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.RunTurn(ctx, "", []ToolCall{
		call(t, ToolCreateTask, map[string]any{"title": "A"}),
		call(t, ToolCreateTask, map[string]any{"title": "B"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range res.Outcomes {
		if o.OK || o.ErrorKind != KindCancelled {
			t.Errorf("outcome %d = %+v, want cancelled", o.Index, o)
		}
	}
	if len(env.tm.State().Tasks) != 0 {
		t.Error("cancelled calls must not be applied")
	}
}

func TestRunRequests_BulkOutcome(t *testing.T) {
	env := newTestManager(t)
	mustAdd(t, env.tm, NewTask{Title: "A", Bucket: "Team"})
	mustAdd(t, env.tm, NewTask{Title: "B", Bucket: "Team"})
	d := NewDispatcher(env.tm, nil, nil)

	res, err := d.RunRequests(context.Background(), "bulk", []ToolRequest{
		&BulkUpdateTasksArgs{FilterBucket: "Team", Progress: ptr("done")},
		&DeleteTaskArgs{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bulk := res.Outcomes[0].Bulk
	if bulk == nil || len(bulk.Changed) != 2 {
		t.Fatalf("bulk outcome = %+v", res.Outcomes[0])
	}
	if res.Outcomes[1].OK || res.Outcomes[1].ErrorKind != KindValidation {
		t.Errorf("delete without target should fail validation, got %+v", res.Outcomes[1])
	}
	if !strings.Contains(res.Outcomes[0].Message, "updated 2 tasks") {
		t.Errorf("message = %q", res.Outcomes[0].Message)
	}
}

func TestRunTurn_BulkWithNoKnownTargetsFails(t *testing.T) {
	env := newTestManager(t)
	d := NewDispatcher(env.tm, nil, nil)

	res, err := d.RunTurn(context.Background(), "", []ToolCall{
		call(t, ToolBulkUpdateTasks, map[string]any{"target_ids": []string{"ffffffff", "eeeeeeee"}, "priority": "low"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 0 || res.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 0/1", res.Succeeded, res.Failed)
	}
	if res.Outcomes[0].OK || res.Outcomes[0].ErrorKind != KindNotFound {
		t.Errorf("bulk outcome = %+v, want NotFound failure", res.Outcomes[0])
	}
	if len(env.tm.History()) != 0 {
		t.Errorf("history = %+v, want empty", env.tm.History())
	}
}

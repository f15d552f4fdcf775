package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

func newTestBoard(t *testing.T, tm core.TaskManager, showDone bool) boardModel {
	t.Helper()
	m := newBoardModel(tm, showDone)
	m = sendBoard(t, m, m.Init()())
	return sendBoard(t, m, tea.WindowSizeMsg{Width: 160, Height: 40})
}

// sendBoard delivers msg and runs any command it returns once, feeding the
// result back in, the way the program loop would for a single step.
func sendBoard(t *testing.T, m boardModel, msg tea.Msg) boardModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(boardModel)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); !quit {
				next, _ = m.Update(out)
				m = next.(boardModel)
			}
		}
	}
	return m
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBoard_LoadAndSelect(t *testing.T) {
	tm := withTaskManager(t)
	first := addTask(t, "Water plants")
	second := addTask(t, "Call plumber", "--progress", "todo")
	addTask(t, "Team standup", "--bucket", "Team")

	m := newTestBoard(t, tm, false)
	if m.loading {
		t.Fatal("board should be loaded")
	}
	if len(m.buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(m.buckets))
	}
	if m.selectedID != first.ID {
		t.Errorf("selected = %s, want first backlog task", m.selectedID)
	}

	m = sendBoard(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.selectedID != second.ID {
		t.Errorf("after down selected = %s, want %s", m.selectedID, second.ID)
	}
	m = sendBoard(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.selectedID != second.ID {
		t.Error("selection should stop at the last task")
	}
	m = sendBoard(t, m, runeKey("k"))
	if m.selectedID != first.ID {
		t.Errorf("after k selected = %s, want %s", m.selectedID, first.ID)
	}

	m = sendBoard(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeBucket != 1 {
		t.Fatalf("active bucket = %d, want 1", m.activeBucket)
	}
	if vis := m.visibleTasks(); len(vis) != 1 || vis[0].Title != "Team standup" {
		t.Errorf("visible tasks = %+v", vis)
	}
	m = sendBoard(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = sendBoard(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.activeBucket != 2 {
		t.Errorf("shift+tab should wrap, active = %d", m.activeBucket)
	}
}

func TestBoard_AdvanceIsUnrecorded(t *testing.T) {
	tm := withTaskManager(t)
	task := addTask(t, "Water plants")
	before := len(tm.History())

	m := newTestBoard(t, tm, false)
	m = sendBoard(t, m, runeKey(">"))

	got, err := tm.GetTask(task.ShortID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Progress != models.ProgressTodo {
		t.Errorf("progress = %s, want todo", got.Progress)
	}
	if n := len(tm.History()); n != before {
		t.Errorf("history = %d entries, want %d", n, before)
	}
	if !strings.Contains(m.status, "Todo") {
		t.Errorf("status = %q", m.status)
	}
	if m.selectedID != task.ID {
		t.Error("moved task should stay selected")
	}

	m = sendBoard(t, m, runeKey("<"))
	m = sendBoard(t, m, runeKey("<"))
	if !strings.Contains(m.status, "already") {
		t.Errorf("retreating past backlog should report no change, status = %q", m.status)
	}
}

func TestBoard_DoneColumn(t *testing.T) {
	tm := withTaskManager(t)
	addTask(t, "Finished", "--progress", "done")

	hidden := newTestBoard(t, tm, false)
	if len(hidden.visibleTasks()) != 0 {
		t.Error("done tasks should be hidden by default")
	}
	shown := newTestBoard(t, tm, true)
	if len(shown.visibleTasks()) != 1 {
		t.Error("done tasks should show with showDone")
	}
	if !strings.Contains(shown.View(), "Done (1)") {
		t.Error("view should have a Done column")
	}
}

func TestBoard_View(t *testing.T) {
	tm := withTaskManager(t)

	m := newBoardModel(tm, false)
	if got := m.View(); got != "Loading..." {
		t.Errorf("view before size = %q", got)
	}

	parent := addTask(t, "Move house", "--priority", "critical", "--subtask", "Pack books")
	sub := decodeJSON[taskDetail](t, mustRun(t, "task", "show", parent.ShortID())).Subtasks[0]
	mustRun(t, "task", "edit", sub.ShortID(), "--progress", "in_progress")

	m = newTestBoard(t, tm, false)
	view := m.View()
	for _, want := range []string{"aipm board", "Personal", "Team", "Admin", "Backlog (1)", "In progress (1)", "Move house", "!!", "↳", "subtasks: In progress", "q: quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestBoard_Quit(t *testing.T) {
	tm := withTaskManager(t)
	m := newTestBoard(t, tm, false)

	_, cmd := m.Update(runeKey("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a longer title", 8, "a lon..."},
		{"tiny", 2, "tiny"},
		{"ünïcödé title", 7, "ünïc..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

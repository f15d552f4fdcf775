package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/goleak"
)

type memBoard struct {
	state core.State
}

func (b *memBoard) Load() (core.State, error) { return b.state.Clone(), nil }

func (b *memBoard) Save(s core.State) error {
	b.state = s.Clone()
	return nil
}

type memRefs struct {
	mu    sync.Mutex
	refs     map[string]uuid.UUID
	saves    int
	failSave error
}

func (m *memRefs) Load() (map[string]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uuid.UUID, len(m.refs))
	for k, v := range m.refs {
		out[k] = v
	}
	return out, nil
}

func (m *memRefs) Save(refs map[string]uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.refs = make(map[string]uuid.UUID, len(refs))
	for k, v := range refs {
		m.refs[k] = v
	}
	m.saves++
	return nil
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) Fetch() ([]models.InboxItem, error) { return nil, errors.New("permission denied") }

type pollerEnv struct {
	tm     core.TaskManager
	inbox  *fileInboxSource
	reg    core.InboxRegistry
	refs   *memRefs
	poller *InboxPoller
}

func newTestPoller(t *testing.T, opts ...PollerOption) pollerEnv {
	t.Helper()
	tm, err := core.NewTaskManager(&memBoard{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inbox := newTestInbox(t)
	reg := core.NewInboxRegistry()
	if err := reg.Register(inbox); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs := &memRefs{}
	return pollerEnv{tm: tm, inbox: inbox, reg: reg, refs: refs, poller: NewInboxPoller(tm, reg, refs, opts...)}
}

func listTasks(t *testing.T, tm core.TaskManager) []models.Task {
	t.Helper()
	tasks, err := tm.ListTasks(core.TaskFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tasks
}

func TestPoll_CreatesTasksOnce(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "m1.md", "---\nid: m1\nsubject: Review budget\nfrom: Dana\nbucket: admin\npriority: crit\n---\n\nNumbers attached.\n")
	writeInboxFile(t, env.inbox.Dir(), "m2.md", "---\nid: m2\nsubject: Old news\nstatus: read\n---\n")

	res, err := env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 1 {
		t.Fatalf("expected 1 created, got %+v", res)
	}
	tasks := listTasks(t, env.tm)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Title != "Review budget (from Dana)" || task.Bucket != "Admin" || task.Priority != models.PriorityCritical {
		t.Errorf("unexpected task %+v", task)
	}
	if task.Description != "Numbers attached." {
		t.Errorf("Description = %q", task.Description)
	}
	if env.refs.refs["file:m1"] != task.ID {
		t.Errorf("ref map = %v", env.refs.refs)
	}
	if h := env.tm.History(); len(h) != 1 || h[0].Label != "inbox: Review budget (from Dana)" {
		t.Errorf("History = %+v", h)
	}

	res, err = env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 0 || len(res.Retracted) != 0 {
		t.Errorf("second poll should be a no-op, got %+v", res)
	}
	if env.refs.saves != 1 {
		t.Errorf("refs should be saved only when they change, saves = %d", env.refs.saves)
	}
}

func TestPoll_RefSaveFailureRollsBackCreate(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "m1.md", "---\nid: m1\nsubject: Renew insurance\n---\n")
	env.refs.failSave = errors.New("disk full")

	res, err := env.poller.Poll(context.Background())
	if err == nil {
		t.Fatal("expected error when refs cannot be saved")
	}
	if len(res.Created) != 0 {
		t.Errorf("created = %v, want none reported", res.Created)
	}
	if tasks := listTasks(t, env.tm); len(tasks) != 0 {
		t.Fatalf("task should be rolled back, board has %d", len(tasks))
	}

	env.refs.failSave = nil
	res, err = env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 1 {
		t.Fatalf("created = %v, want 1", res.Created)
	}
	if tasks := listTasks(t, env.tm); len(tasks) != 1 {
		t.Errorf("expected exactly one task after recovery, got %d", len(tasks))
	}
	if env.refs.refs["file:m1"] != res.Created[0] {
		t.Errorf("ref map = %v", env.refs.refs)
	}
}

func TestPoll_SavesRefsAfterEachEvent(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "m1.md", "---\nid: m1\nsubject: One\n---\n")
	writeInboxFile(t, env.inbox.Dir(), "m2.md", "---\nid: m2\nsubject: Two\n---\n")

	if _, err := env.poller.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.refs.saves != 2 {
		t.Errorf("saves = %d, want one per created task", env.refs.saves)
	}
}

func TestPoll_RetractsArchivedAndRemoved(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "a.md", "---\nid: a\nsubject: A\n---\n")
	writeInboxFile(t, env.inbox.Dir(), "b.md", "---\nid: b\nsubject: B\n---\n")
	if _, err := env.poller.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(listTasks(t, env.tm)); got != 2 {
		t.Fatalf("expected 2 tasks, got %d", got)
	}

	if err := env.inbox.Archive("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(filepath.Join(env.inbox.Dir(), "b.md")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Retracted) != 2 {
		t.Errorf("expected 2 retracted, got %+v", res)
	}
	if got := len(listTasks(t, env.tm)); got != 0 {
		t.Errorf("expected no tasks left, got %d", got)
	}
	if len(env.refs.refs) != 0 {
		t.Errorf("ref map should be empty, got %v", env.refs.refs)
	}
	h := env.tm.History()
	if h[len(h)-1].Label != "inbox retract" {
		t.Errorf("last label = %q", h[len(h)-1].Label)
	}
}

func TestPoll_DropsMappingForDeletedTask(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "a.md", "---\nid: a\nsubject: A\n---\n")
	res, err := env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.tm.DeleteTask(res.Created[0].String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.inbox.Archive("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err = env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dropped != 1 || len(res.Retracted) != 0 || len(res.Failed) != 0 {
		t.Errorf("expected one dropped mapping, got %+v", res)
	}
	if len(env.refs.refs) != 0 {
		t.Errorf("mapping should be dropped, got %v", env.refs.refs)
	}
}

func TestPoll_DoesNotRecreateUserDeletedTask(t *testing.T) {
	env := newTestPoller(t)
	writeInboxFile(t, env.inbox.Dir(), "a.md", "---\nid: a\nsubject: A\n---\n")
	res, err := env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.tm.DeleteTask(res.Created[0].String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err = env.poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 0 {
		t.Errorf("a still-pending mapped item must not be recreated, got %+v", res)
	}
}

func TestPoll_FetchErrorLeavesRefsAlone(t *testing.T) {
	tm, err := core.NewTaskManager(&memBoard{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg := core.NewInboxRegistry()
	_ = reg.Register(failingSource{})
	refs := &memRefs{refs: map[string]uuid.UUID{"broken:x": uuid.New()}}
	p := NewInboxPoller(tm, reg, refs)

	if _, err := p.Poll(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(refs.refs) != 1 || refs.saves != 0 {
		t.Errorf("a failed fetch must not retract anything, refs = %v", refs.refs)
	}
}

func waitForTasks(t *testing.T, tm core.TaskManager, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(listTasks(t, tm)) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d tasks, have %d", n, len(listTasks(t, tm)))
}

func TestRun_PollsOnIntervalAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestPoller(t, WithPollInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.poller.Run(ctx) }()

	writeInboxFile(t, env.inbox.Dir(), "late.md", "---\nid: late\nsubject: Arrived later\n---\n")
	waitForTasks(t, env.tm, 1)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_WatcherNudgesEarlyPoll(t *testing.T) {
	env := newTestPoller(t)
	p := NewInboxPoller(env.tm, env.reg, env.refs,
		WithPollInterval(time.Hour),
		WithWatchDirs(20*time.Millisecond, env.inbox.Dir()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	writeInboxFile(t, env.inbox.Dir(), "nudge.md", "---\nid: nudge\nsubject: Watch me\n---\n")
	waitForTasks(t, env.tm, 1)
}

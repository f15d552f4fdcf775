package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// BoardStore persists the whole board. Defining it here keeps core
// independent of the storage package.
type BoardStore interface {
	Load() (State, error)
	Save(state State) error
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Bucket   string
	Progress *models.Progress
	Priority *models.Priority
	// Parent is an id prefix; only direct children of that task match.
	Parent string
	// RootsOnly keeps tasks without a parent.
	RootsOnly bool
}

// TaskManager is the single entry point for reading and changing the board.
// Every recorded mutation runs under one lock, captures a snapshot lazily
// before its first change, and persists on success.
type TaskManager interface {
	GetTask(prefix string) (models.Task, error)
	ListTasks(filter TaskFilter) ([]models.Task, error)
	Buckets() []models.Bucket
	State() State
	ParentHints() []ParentHint
	History() []models.HistoryEntry

	AddTask(in NewTask) (EditResult, error)
	EditTask(prefix string, upd TaskUpdate) (EditResult, error)
	AdvanceProgress(prefix string) (EditResult, error)
	RetreatProgress(prefix string) (EditResult, error)
	DeleteTask(prefix string) (DeleteResult, error)
	DecomposeTask(prefix string, specs []SubtaskSpec) (EditResult, error)
	BulkUpdate(sel Selector, upd TaskUpdate) (BulkResult, error)
	AddBucket(name, description string) (models.Bucket, error)
	RenameBucket(oldName, newName string) (RenameBucketResult, error)
	DescribeBucket(name, description string) (models.Bucket, error)
	DeleteBucket(name string) (DeleteBucketResult, error)

	// Exec runs fn as one recorded operation labelled label. It reports
	// whether the board changed. If fn fails after changing the board, the
	// change is rolled back and no snapshot is kept.
	Exec(label string, fn func(*Engine) error) (bool, error)
	// ExecUnrecorded is Exec without a snapshot, for in-place interactive edits.
	ExecUnrecorded(fn func(*Engine) error) (bool, error)
	Undo() (string, error)
}

// ManagerOption customizes a TaskManager.
type ManagerOption func(*taskManager)

// WithLogger sets the process logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(tm *taskManager) { tm.log = l }
}

// WithMaxSnapshots lowers the history cap. Values outside 1..MaxSnapshots
// fall back to MaxSnapshots.
func WithMaxSnapshots(n int) ManagerOption {
	return func(tm *taskManager) {
		if n > 0 && n <= models.MaxSnapshots {
			tm.maxSnapshots = n
		}
	}
}

// WithEngineOptions passes options through to the Engine.
func WithEngineOptions(opts ...EngineOption) ManagerOption {
	return func(tm *taskManager) { tm.engineOpts = append(tm.engineOpts, opts...) }
}

// taskManager implements TaskManager over a Store, a BoardStore for
// persistence and a SnapshotStore for undo history.
type taskManager struct {
	mu           sync.Mutex
	store        *Store
	engine       *Engine
	board        BoardStore
	history      *history
	events       EventLogger
	log          *zap.Logger
	maxSnapshots int
	engineOpts   []EngineOption
}

// NewTaskManager loads the board and history and returns a ready manager.
// snaps and events may be nil.
func NewTaskManager(board BoardStore, snaps SnapshotStore, events EventLogger, opts ...ManagerOption) (TaskManager, error) {
	tm := &taskManager{
		board:        board,
		events:       events,
		log:          zap.NewNop(),
		maxSnapshots: models.MaxSnapshots,
	}
	for _, o := range opts {
		o(tm)
	}

	state, err := board.Load()
	if err != nil {
		return nil, fmt.Errorf("loading board: %w", err)
	}
	store, repairs := NewStore(state)
	for _, r := range repairs {
		tm.log.Warn("repaired board on load", zap.String("repair", r))
	}
	tm.store = store
	tm.engine = NewEngine(store, tm.engineOpts...)

	tm.history, err = loadHistory(snaps, tm.maxSnapshots, tm.log)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	if len(repairs) > 0 {
		if err := board.Save(store.State()); err != nil {
			return nil, fmt.Errorf("saving repaired board: %w", err)
		}
	}
	return tm, nil
}

func (tm *taskManager) GetTask(prefix string) (models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	id, err := tm.store.Resolve(prefix)
	if err != nil {
		return models.Task{}, err
	}
	t, _ := tm.store.Task(id)
	return t, nil
}

func (tm *taskManager) ListTasks(filter TaskFilter) ([]models.Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var parent *uuid.UUID
	if strings.TrimSpace(filter.Parent) != "" {
		id, err := tm.store.Resolve(filter.Parent)
		if err != nil {
			return nil, err
		}
		parent = &id
	}
	if filter.Bucket != "" {
		if _, ok := tm.store.Bucket(filter.Bucket); !ok {
			return nil, newError(KindUnknownBucket, "unknown bucket %q", filter.Bucket)
		}
	}

	var out []models.Task
	for _, t := range tm.store.Tasks() {
		switch {
		case filter.Bucket != "" && !models.SameBucketName(t.Bucket, filter.Bucket):
		case filter.Progress != nil && t.Progress != *filter.Progress:
		case filter.Priority != nil && t.Priority != *filter.Priority:
		case parent != nil && (t.ParentID == nil || *t.ParentID != *parent):
		case filter.RootsOnly && t.ParentID != nil:
		default:
			out = append(out, t)
		}
	}
	return out, nil
}

func (tm *taskManager) Buckets() []models.Bucket {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.store.Buckets()
}

func (tm *taskManager) State() State {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.store.State()
}

func (tm *taskManager) ParentHints() []ParentHint {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return parentHints(tm.store)
}

func (tm *taskManager) History() []models.HistoryEntry {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.history.entries()
}

func (tm *taskManager) AddTask(in NewTask) (EditResult, error) {
	var res EditResult
	_, err := tm.Exec("add task: "+strings.TrimSpace(in.Title), func(e *Engine) error {
		var err error
		res, err = e.AddTask(in)
		return err
	})
	if err != nil {
		return EditResult{}, err
	}
	tm.logEvent("task.created", map[string]any{
		"task_id":  res.Task.ID.String(),
		"title":    res.Task.Title,
		"bucket":   res.Task.Bucket,
		"subtasks": len(res.Subtasks),
	})
	return res, nil
}

func (tm *taskManager) EditTask(prefix string, upd TaskUpdate) (EditResult, error) {
	var res EditResult
	_, err := tm.Exec("edit task "+prefix, func(e *Engine) error {
		var err error
		res, err = e.EditTask(prefix, upd)
		return err
	})
	if err != nil {
		return EditResult{}, err
	}
	if res.Changed {
		tm.logEvent("task.updated", map[string]any{"task_id": res.Task.ID.String()})
	}
	return res, nil
}

func (tm *taskManager) AdvanceProgress(prefix string) (EditResult, error) {
	return tm.step("advance "+prefix, prefix, (*Engine).AdvanceProgress)
}

func (tm *taskManager) RetreatProgress(prefix string) (EditResult, error) {
	return tm.step("retreat "+prefix, prefix, (*Engine).RetreatProgress)
}

func (tm *taskManager) step(label, prefix string, op func(*Engine, string) (EditResult, error)) (EditResult, error) {
	var res EditResult
	_, err := tm.Exec(label, func(e *Engine) error {
		var err error
		res, err = op(e, prefix)
		return err
	})
	if err != nil {
		return EditResult{}, err
	}
	if res.Changed {
		tm.logEvent("task.progress_changed", map[string]any{
			"task_id":  res.Task.ID.String(),
			"progress": string(res.Task.Progress),
		})
	}
	return res, nil
}

func (tm *taskManager) DeleteTask(prefix string) (DeleteResult, error) {
	var res DeleteResult
	_, err := tm.Exec("delete task "+prefix, func(e *Engine) error {
		var err error
		res, err = e.DeleteTask(prefix)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	tm.logEvent("task.deleted", map[string]any{"task_id": res.ID.String(), "removed": res.Count()})
	return res, nil
}

func (tm *taskManager) DecomposeTask(prefix string, specs []SubtaskSpec) (EditResult, error) {
	var res EditResult
	_, err := tm.Exec("decompose "+prefix, func(e *Engine) error {
		var err error
		res, err = e.DecomposeTask(prefix, specs)
		return err
	})
	if err != nil {
		return EditResult{}, err
	}
	tm.logEvent("task.decomposed", map[string]any{"task_id": res.Task.ID.String(), "subtasks": len(res.Subtasks)})
	return res, nil
}

func (tm *taskManager) BulkUpdate(sel Selector, upd TaskUpdate) (BulkResult, error) {
	var res BulkResult
	_, err := tm.Exec("bulk update", func(e *Engine) error {
		var err error
		res, err = e.BulkUpdate(sel, upd)
		return err
	})
	if err != nil {
		return BulkResult{}, err
	}
	tm.logEvent("task.bulk_updated", map[string]any{
		"changed": len(res.Changed),
		"failed":  len(res.Failed),
	})
	return res, nil
}

func (tm *taskManager) AddBucket(name, description string) (models.Bucket, error) {
	var b models.Bucket
	_, err := tm.Exec("add bucket "+name, func(e *Engine) error {
		var err error
		b, err = e.AddBucket(name, description)
		return err
	})
	if err != nil {
		return models.Bucket{}, err
	}
	tm.logEvent("bucket.created", map[string]any{"bucket": b.Name})
	return b, nil
}

func (tm *taskManager) RenameBucket(oldName, newName string) (RenameBucketResult, error) {
	var res RenameBucketResult
	_, err := tm.Exec(fmt.Sprintf("rename bucket %s -> %s", oldName, newName), func(e *Engine) error {
		var err error
		res, err = e.RenameBucket(oldName, newName)
		return err
	})
	if err != nil {
		return RenameBucketResult{}, err
	}
	tm.logEvent("bucket.renamed", map[string]any{"old": res.Old, "new": res.New, "tasks_updated": res.TasksUpdated})
	return res, nil
}

func (tm *taskManager) DescribeBucket(name, description string) (models.Bucket, error) {
	var b models.Bucket
	_, err := tm.Exec("describe bucket "+name, func(e *Engine) error {
		var err error
		b, err = e.DescribeBucket(name, description)
		return err
	})
	return b, err
}

func (tm *taskManager) DeleteBucket(name string) (DeleteBucketResult, error) {
	var res DeleteBucketResult
	_, err := tm.Exec("delete bucket "+name, func(e *Engine) error {
		var err error
		res, err = e.DeleteBucket(name)
		return err
	})
	if err != nil {
		return DeleteBucketResult{}, err
	}
	tm.logEvent("bucket.deleted", map[string]any{"bucket": res.Deleted, "moved_to": res.TasksMovedTo, "tasks_moved": res.TasksMoved})
	return res, nil
}

func (tm *taskManager) Exec(label string, fn func(*Engine) error) (bool, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.exec(label, true, fn)
}

func (tm *taskManager) ExecUnrecorded(fn func(*Engine) error) (bool, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.exec("", false, fn)
}

// exec must be called with tm.mu held.
func (tm *taskManager) exec(label string, record bool, fn func(*Engine) error) (bool, error) {
	var before *State
	tm.engine.hints = nil
	tm.engine.beforeChange = func() {
		if before == nil {
			s := tm.store.State()
			before = &s
		}
	}
	defer func() { tm.engine.beforeChange = nil }()

	err := fn(tm.engine)
	if before == nil {
		return false, err
	}
	if err != nil {
		tm.store.restore(*before)
		return false, err
	}
	if saveErr := tm.board.Save(tm.store.State()); saveErr != nil {
		tm.store.restore(*before)
		if err := tm.board.Save(*before); err != nil {
			tm.log.Error("restoring board after failed save", zap.Error(err))
		}
		return false, fmt.Errorf("saving board: %w", saveErr)
	}
	if record {
		tm.history.push(label, *before, tm.engine.now())
	}
	return true, nil
}

func (tm *taskManager) Undo() (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap, ok := tm.history.latest()
	if !ok {
		return "", newError(KindNoHistory, "nothing to undo")
	}
	current := tm.store.State()
	tm.store.restore(snapshotState(snap))
	if err := tm.board.Save(tm.store.State()); err != nil {
		tm.store.restore(current)
		return "", fmt.Errorf("saving board after undo: %w", err)
	}
	tm.history.pop()
	tm.logEvent("history.undo", map[string]any{"label": snap.Label, "seq": snap.Seq})
	return snap.Label, nil
}

func (tm *taskManager) logEvent(eventType string, data map[string]any) {
	tm.log.Debug(eventType, zap.Any("data", data))
	if tm.events == nil {
		return
	}
	if err := tm.events.LogEvent(eventType, data); err != nil {
		tm.log.Warn("writing event log", zap.String("event", eventType), zap.Error(err))
	}
}

func snapshotState(s models.Snapshot) State {
	return StateFromTasks(s.Tasks, slices.Clone(s.Buckets))
}

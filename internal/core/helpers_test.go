package core

import (
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// memBoard implements BoardStore in memory.
type memBoard struct {
	state    State
	saves    int
	failNext error
}

func (b *memBoard) Load() (State, error) {
	return b.state.Clone(), nil
}

func (b *memBoard) Save(s State) error {
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	b.state = s.Clone()
	b.saves++
	return nil
}

// memSnapshots implements SnapshotStore in memory.
type memSnapshots struct {
	snaps map[uint64]models.Snapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: make(map[uint64]models.Snapshot)}
}

func (m *memSnapshots) LoadSnapshots() ([]models.Snapshot, error) {
	return slices.Collect(maps.Values(m.snaps)), nil
}

func (m *memSnapshots) AppendSnapshot(s models.Snapshot) error {
	m.snaps[s.Seq] = s
	return nil
}

func (m *memSnapshots) RemoveSnapshot(seq uint64) error {
	delete(m.snaps, seq)
	return nil
}

// memEvents implements EventLogger and records event types.
type memEvents struct {
	types []string
}

func (m *memEvents) LogEvent(eventType string, _ map[string]any) error {
	m.types = append(m.types, eventType)
	return nil
}

var errDiskFull = errors.New("disk full")

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// sequenceIDs hands out the given ids in order, then random ones.
func sequenceIDs(ids ...string) func() uuid.UUID {
	i := 0
	return func() uuid.UUID {
		if i < len(ids) {
			id := uuid.MustParse(ids[i])
			i++
			return id
		}
		return uuid.New()
	}
}

type testEnv struct {
	tm     TaskManager
	board  *memBoard
	snaps  *memSnapshots
	events *memEvents
}

func newTestManager(t *testing.T, opts ...ManagerOption) testEnv {
	t.Helper()
	env := testEnv{board: &memBoard{}, snaps: newMemSnapshots(), events: &memEvents{}}
	opts = append([]ManagerOption{WithEngineOptions(WithClock(steppingClock()))}, opts...)
	tm, err := NewTaskManager(env.board, env.snaps, env.events, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.tm = tm
	return env
}

func mustAdd(t *testing.T, tm TaskManager, in NewTask) models.Task {
	t.Helper()
	res, err := tm.AddTask(in)
	if err != nil {
		t.Fatalf("AddTask(%q) failed: %v", in.Title, err)
	}
	return res.Task
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}

func ptr[T any](v T) *T { return &v }

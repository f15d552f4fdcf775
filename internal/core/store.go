package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// State is the full board: every task keyed by id plus the ordered bucket
// list. It is the value exchanged with persistence and captured in snapshots.
type State struct {
	Tasks   map[uuid.UUID]models.Task
	Buckets []models.Bucket
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{
		Tasks:   make(map[uuid.UUID]models.Task, len(s.Tasks)),
		Buckets: slices.Clone(s.Buckets),
	}
	for id, t := range s.Tasks {
		c.Tasks[id] = t.Clone()
	}
	return c
}

// SortedTasks returns copies of the tasks ordered by creation time, then id.
func (s State) SortedTasks() []models.Task {
	out := make([]models.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t.Clone())
	}
	sortTasks(out)
	return out
}

// StateFromTasks builds a State from a task list.
func StateFromTasks(tasks []models.Task, buckets []models.Bucket) State {
	s := State{Tasks: make(map[uuid.UUID]models.Task, len(tasks)), Buckets: slices.Clone(buckets)}
	for _, t := range tasks {
		s.Tasks[t.ID] = t.Clone()
	}
	return s
}

func sortTasks(tasks []models.Task) {
	slices.SortFunc(tasks, func(a, b models.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// Store holds the in-memory board for one process. Its mutating methods are
// unexported; all changes go through Engine.
type Store struct {
	tasks   map[uuid.UUID]models.Task
	buckets []models.Bucket
}

// NewStore builds a Store from loaded state, repairing anything that breaks
// the board invariants. Each repair is described in the returned slice.
func NewStore(state State) (*Store, []string) {
	s := &Store{tasks: make(map[uuid.UUID]models.Task, len(state.Tasks))}
	var repairs []string

	for _, b := range state.Buckets {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			repairs = append(repairs, "dropped bucket with empty name")
			continue
		}
		if _, ok := s.bucketIndex(name); ok {
			repairs = append(repairs, fmt.Sprintf("dropped duplicate bucket %q", name))
			continue
		}
		s.buckets = append(s.buckets, models.Bucket{Name: name, Description: b.Description})
	}
	if len(s.buckets) == 0 {
		s.buckets = models.DefaultBuckets()
	}

	for id, t := range state.Tasks {
		if id == uuid.Nil || t.ID != id {
			repairs = append(repairs, fmt.Sprintf("dropped task with mismatched id %s", id))
			continue
		}
		t = t.Clone()
		if b, ok := s.Bucket(t.Bucket); ok {
			t.Bucket = b.Name
		} else {
			repairs = append(repairs, fmt.Sprintf("task %s: unknown bucket %q moved to %q", t.ShortID(), t.Bucket, s.buckets[0].Name))
			t.Bucket = s.buckets[0].Name
		}
		if t.Progress.Stage() < 0 {
			t.Progress = models.ProgressBacklog
		}
		if t.Priority.Rank() < 0 {
			t.Priority = models.PriorityMedium
		}
		s.tasks[id] = t
	}

	for _, id := range s.sortedIDs() {
		t := s.tasks[id]
		changed := false
		if t.ParentID != nil {
			if _, ok := s.tasks[*t.ParentID]; !ok || s.wouldCycle(id, *t.ParentID) {
				repairs = append(repairs, fmt.Sprintf("task %s: cleared invalid parent", t.ShortID()))
				t.ParentID = nil
				changed = true
			}
		}
		deps := t.Dependencies[:0:0]
		for _, d := range t.Dependencies {
			if _, ok := s.tasks[d]; !ok || d == id || slices.Contains(deps, d) {
				changed = true
				continue
			}
			deps = append(deps, d)
		}
		if len(deps) != len(t.Dependencies) {
			repairs = append(repairs, fmt.Sprintf("task %s: dropped %d invalid dependencies", t.ShortID(), len(t.Dependencies)-len(deps)))
			t.Dependencies = deps
		}
		if len(t.Dependencies) == 0 && t.Dependencies != nil {
			t.Dependencies = nil
			changed = true
		}
		if changed {
			s.tasks[id] = t
		}
	}
	return s, repairs
}

// Len returns the number of tasks.
func (s *Store) Len() int { return len(s.tasks) }

// Task returns a copy of the task with the given id.
func (s *Store) Task(id uuid.UUID) (models.Task, bool) {
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return t.Clone(), true
}

// Tasks returns copies of all tasks ordered by creation time, then id.
func (s *Store) Tasks() []models.Task {
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sortTasks(out)
	return out
}

// Children returns the ids of the direct children of id in creation order.
func (s *Store) Children(id uuid.UUID) []uuid.UUID {
	var kids []models.Task
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == id {
			kids = append(kids, t)
		}
	}
	sortTasks(kids)
	ids := make([]uuid.UUID, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	return ids
}

// Descendants returns id's subtree below id, parents before children.
func (s *Store) Descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	queue := s.Children(id)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, s.Children(next)...)
	}
	return out
}

// Buckets returns the buckets in registration order.
func (s *Store) Buckets() []models.Bucket {
	return slices.Clone(s.buckets)
}

// DefaultBucket returns the first registered bucket.
func (s *Store) DefaultBucket() models.Bucket {
	return s.buckets[0]
}

// Bucket finds a bucket by case-insensitive name.
func (s *Store) Bucket(name string) (models.Bucket, bool) {
	i, ok := s.bucketIndex(name)
	if !ok {
		return models.Bucket{}, false
	}
	return s.buckets[i], true
}

func (s *Store) bucketIndex(name string) (int, bool) {
	for i, b := range s.buckets {
		if models.SameBucketName(b.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// Resolve maps an id prefix to exactly one task id.
func (s *Store) Resolve(prefix string) (uuid.UUID, error) {
	return resolveID(prefix, maps.Keys(s.tasks))
}

// State returns a deep copy of the whole board.
func (s *Store) State() State {
	return State{Tasks: s.tasks, Buckets: s.buckets}.Clone()
}

// wouldCycle reports whether making parent the parent of child would
// create a cycle.
func (s *Store) wouldCycle(child, parent uuid.UUID) bool {
	seen := map[uuid.UUID]bool{}
	for cur := &parent; cur != nil; {
		if *cur == child || seen[*cur] {
			return true
		}
		seen[*cur] = true
		t, ok := s.tasks[*cur]
		if !ok {
			return false
		}
		cur = t.ParentID
	}
	return false
}

func (s *Store) sortedIDs() []uuid.UUID {
	ts := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		ts = append(ts, t)
	}
	sortTasks(ts)
	ids := make([]uuid.UUID, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func (s *Store) put(t models.Task) {
	s.tasks[t.ID] = t.Clone()
}

func (s *Store) remove(id uuid.UUID) {
	delete(s.tasks, id)
}

func (s *Store) setBuckets(b []models.Bucket) {
	s.buckets = slices.Clone(b)
}

func (s *Store) restore(state State) {
	c := state.Clone()
	s.tasks = c.Tasks
	s.buckets = c.Buckets
}

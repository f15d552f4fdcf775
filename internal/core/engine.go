package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// MaxSubtasks caps how many subtasks a single decomposition may create.
const MaxSubtasks = 12

// NewTask describes a task to create. Parent and Dependencies are id prefixes.
type NewTask struct {
	Title        string
	Description  string
	Bucket       string
	Priority     *models.Priority
	Progress     *models.Progress
	DueDate      *models.Date
	Parent       string
	Dependencies []string
	Subtasks     []SubtaskSpec
}

// SubtaskSpec describes one child created by a decomposition. DependsOn
// holds zero-based positions of sibling specs in the same call.
type SubtaskSpec struct {
	Title       string
	Description string
	Bucket      string
	Priority    *models.Priority
	Progress    *models.Progress
	DueDate     *models.Date
	DependsOn   []int
}

// TaskUpdate lists the fields to change; nil fields are left alone.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Bucket       *string
	Progress     *models.Progress
	Priority     *models.Priority
	DueDate      *models.Date
	ClearDueDate bool
	Parent       *string
	ClearParent  bool
	// Dependencies replaces the whole set when non-nil.
	Dependencies *[]string
	Subtasks     []SubtaskSpec
}

// IsEmpty reports whether u changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return reflect.ValueOf(u).IsZero()
}

// EditResult describes the outcome of a single-task change.
type EditResult struct {
	Task     models.Task   `json:"task"`
	Changed  bool          `json:"changed"`
	Subtasks []models.Task `json:"subtasks,omitempty"`
	Hints    []ParentHint  `json:"parent_hints,omitempty"`
}

// DeleteResult describes a cascading delete. Removed includes the target.
type DeleteResult struct {
	ID      uuid.UUID    `json:"deleted"`
	Title   string       `json:"title"`
	Removed []uuid.UUID  `json:"removed"`
	Hints   []ParentHint `json:"parent_hints,omitempty"`
}

// Count returns the number of tasks removed, the target included.
func (r DeleteResult) Count() int { return len(r.Removed) }

// Selector picks bulk-update targets. IDs are prefixes; the literal "all"
// selects every task. Bucket and Progress narrow the selection.
type Selector struct {
	IDs      []string
	Bucket   string
	Progress *models.Progress
}

func (s Selector) hasPredicate() bool {
	return strings.TrimSpace(s.Bucket) != "" || s.Progress != nil
}

// BulkFailure records one selector entry that could not be applied.
type BulkFailure struct {
	Selector string    `json:"selector"`
	Kind     ErrorKind `json:"error_kind"`
	Message  string    `json:"message"`
}

// BulkResult reports a bulk update per target.
type BulkResult struct {
	Changed   []uuid.UUID   `json:"changed"`
	Unchanged []uuid.UUID   `json:"unchanged"`
	Failed    []BulkFailure `json:"failed"`
	Hints     []ParentHint  `json:"parent_hints,omitempty"`
}

// RenameBucketResult reports a bucket rename.
type RenameBucketResult struct {
	Old          string `json:"old"`
	New          string `json:"new"`
	TasksUpdated int    `json:"tasks_updated"`
}

// DeleteBucketResult reports a bucket deletion.
type DeleteBucketResult struct {
	Deleted      string `json:"deleted"`
	TasksMovedTo string `json:"tasks_moved_to"`
	TasksMoved   int    `json:"tasks_moved"`
}

// Engine applies validated mutations to a Store. Every operation checks all
// of its inputs before the first write, so a failed call leaves the store
// untouched. beforeChange runs before each write so the caller can capture
// the prior state.
type Engine struct {
	store        *Store
	now          func() time.Time
	newID        func() uuid.UUID
	sync         models.ParentSync
	beforeChange func()
	hints        []ParentHint
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDSource sets the id generator.
func WithIDSource(newID func() uuid.UUID) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

// WithParentSync sets the parent progress policy.
func WithParentSync(p models.ParentSync) EngineOption {
	return func(e *Engine) { e.sync = p }
}

// NewEngine creates an Engine over store.
func NewEngine(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
		sync:  models.ParentSyncHint,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Store returns the underlying store for reads.
func (e *Engine) Store() *Store { return e.store }

func (e *Engine) changing() {
	if e.beforeChange != nil {
		e.beforeChange()
	}
}

func (e *Engine) write(t models.Task) {
	e.changing()
	e.store.put(t)
}

func (e *Engine) drainHints() []ParentHint {
	h := e.hints
	e.hints = nil
	return h
}

// AddTask creates a task and any subtasks it lists.
func (e *Engine) AddTask(in NewTask) (EditResult, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return EditResult{}, newError(KindValidation, "title must not be empty")
	}
	bucket, err := e.bucketOrDefault(in.Bucket)
	if err != nil {
		return EditResult{}, err
	}
	var parent *uuid.UUID
	if strings.TrimSpace(in.Parent) != "" {
		pid, err := e.resolveParent(in.Parent)
		if err != nil {
			return EditResult{}, err
		}
		parent = &pid
	}
	deps, err := e.resolveDependencies(in.Dependencies, uuid.Nil)
	if err != nil {
		return EditResult{}, err
	}
	priority := models.PriorityMedium
	if in.Priority != nil {
		priority = *in.Priority
	}
	if err := validateEnums(in.Priority, in.Progress); err != nil {
		return EditResult{}, err
	}
	if err := e.validateSubtasks(in.Subtasks, false); err != nil {
		return EditResult{}, err
	}

	now := e.now()
	t := models.Task{
		ID:           e.newID(),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Bucket:       bucket,
		Progress:     models.ProgressBacklog,
		Priority:     priority,
		DueDate:      copyDate(in.DueDate),
		ParentID:     parent,
		Dependencies: deps,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Progress != nil {
		setProgress(&t, *in.Progress, now)
	}
	e.write(t)
	if parent != nil {
		e.syncParent(*parent)
	}
	subs := e.createSubtasks(t, in.Subtasks)
	created, _ := e.store.Task(t.ID)
	return EditResult{Task: created, Changed: true, Subtasks: subs, Hints: dedupeHints(e.drainHints())}, nil
}

// EditTask applies upd to the task matching prefix. An update that changes
// nothing leaves updated_at untouched and reports Changed false.
func (e *Engine) EditTask(prefix string, upd TaskUpdate) (EditResult, error) {
	id, err := e.store.Resolve(prefix)
	if err != nil {
		return EditResult{}, err
	}
	return e.editByID(id, upd)
}

func (e *Engine) editByID(id uuid.UUID, upd TaskUpdate) (EditResult, error) {
	cur, _ := e.store.Task(id)
	next, err := e.applyUpdate(cur, upd)
	if err != nil {
		return EditResult{}, err
	}
	if err := e.validateSubtasks(upd.Subtasks, false); err != nil {
		return EditResult{}, err
	}

	res := EditResult{Task: cur}
	if !sameEditableFields(cur, next) {
		now := e.now()
		if next.Progress != cur.Progress {
			next.Progress = cur.Progress
			setProgress(&next, *upd.Progress, now)
		}
		next.UpdatedAt = now
		e.write(next)
		res.Changed = true
		if cur.ParentID != nil && (next.ParentID == nil || *next.ParentID != *cur.ParentID) {
			e.syncParent(*cur.ParentID)
		}
		if next.ParentID != nil {
			e.syncParent(*next.ParentID)
		}
	}
	if len(upd.Subtasks) > 0 {
		res.Subtasks = e.createSubtasks(next, upd.Subtasks)
		res.Changed = true
	}
	res.Task, _ = e.store.Task(id)
	res.Hints = dedupeHints(e.drainHints())
	return res, nil
}

// sameEditableFields reports whether a and b agree on every field an update
// can touch. A nil and an empty dependency list are the same.
func sameEditableFields(a, b models.Task) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.Bucket == b.Bucket &&
		a.Progress == b.Progress &&
		a.Priority == b.Priority &&
		equalPtr(a.DueDate, b.DueDate, func(x, y models.Date) bool { return x.Equal(y.Time) }) &&
		equalPtr(a.ParentID, b.ParentID, func(x, y uuid.UUID) bool { return x == y }) &&
		slices.Equal(a.Dependencies, b.Dependencies)
}

func equalPtr[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return eq(*a, *b)
}

// applyUpdate returns cur with upd applied, without touching the store.
func (e *Engine) applyUpdate(cur models.Task, upd TaskUpdate) (models.Task, error) {
	next := cur.Clone()
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return cur, newError(KindValidation, "title must not be empty")
		}
		next.Title = title
	}
	if upd.Description != nil {
		next.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Bucket != nil {
		b, ok := e.store.Bucket(*upd.Bucket)
		if !ok {
			return cur, newError(KindUnknownBucket, "unknown bucket %q", *upd.Bucket)
		}
		next.Bucket = b.Name
	}
	if err := validateEnums(upd.Priority, upd.Progress); err != nil {
		return cur, err
	}
	if upd.Priority != nil {
		next.Priority = *upd.Priority
	}
	if upd.Progress != nil {
		next.Progress = *upd.Progress
	}
	switch {
	case upd.ClearDueDate && upd.DueDate != nil:
		return cur, newError(KindValidation, "cannot both set and clear the due date")
	case upd.ClearDueDate:
		next.DueDate = nil
	case upd.DueDate != nil:
		next.DueDate = copyDate(upd.DueDate)
	}
	switch {
	case upd.ClearParent && upd.Parent != nil:
		return cur, newError(KindValidation, "cannot both set and clear the parent")
	case upd.ClearParent:
		next.ParentID = nil
	case upd.Parent != nil:
		pid, err := e.resolveParent(*upd.Parent)
		if err != nil {
			return cur, err
		}
		if pid == cur.ID {
			return cur, newError(KindValidation, "task %s cannot be its own parent", cur.ShortID())
		}
		if e.store.wouldCycle(cur.ID, pid) {
			return cur, newError(KindValidation, "moving %s under %s would create a cycle", cur.ShortID(), models.ShortID(pid))
		}
		next.ParentID = &pid
	}
	if upd.Dependencies != nil {
		deps, err := e.resolveDependencies(*upd.Dependencies, cur.ID)
		if err != nil {
			return cur, err
		}
		next.Dependencies = deps
	}
	return next, nil
}

// AdvanceProgress moves a task one stage forward. At Done it is a no-op.
func (e *Engine) AdvanceProgress(prefix string) (EditResult, error) {
	return e.step(prefix, models.Progress.Advance)
}

// RetreatProgress moves a task one stage back. At Backlog it is a no-op.
func (e *Engine) RetreatProgress(prefix string) (EditResult, error) {
	return e.step(prefix, models.Progress.Retreat)
}

func (e *Engine) step(prefix string, next func(models.Progress) models.Progress) (EditResult, error) {
	id, err := e.store.Resolve(prefix)
	if err != nil {
		return EditResult{}, err
	}
	cur, _ := e.store.Task(id)
	p := next(cur.Progress)
	return e.editByID(id, TaskUpdate{Progress: &p})
}

// DeleteTask removes a task with all of its descendants and strips the
// removed ids from every surviving task's dependencies.
func (e *Engine) DeleteTask(prefix string) (DeleteResult, error) {
	id, err := e.store.Resolve(prefix)
	if err != nil {
		return DeleteResult{}, err
	}
	return e.deleteByID(id), nil
}

func (e *Engine) deleteByID(id uuid.UUID) DeleteResult {
	target, _ := e.store.Task(id)
	removed := append([]uuid.UUID{id}, e.store.Descendants(id)...)

	e.changing()
	gone := make(map[uuid.UUID]bool, len(removed))
	for _, r := range removed {
		gone[r] = true
		e.store.remove(r)
	}
	now := e.now()
	for _, t := range e.store.Tasks() {
		kept := slices.DeleteFunc(slices.Clone(t.Dependencies), func(d uuid.UUID) bool { return gone[d] })
		if len(kept) == len(t.Dependencies) {
			continue
		}
		if len(kept) == 0 {
			kept = nil
		}
		t.Dependencies = kept
		t.UpdatedAt = now
		e.store.put(t)
	}
	if target.ParentID != nil {
		e.syncParent(*target.ParentID)
	}
	return DeleteResult{ID: id, Title: target.Title, Removed: removed, Hints: dedupeHints(e.drainHints())}
}

// DecomposeTask creates one child of the target per spec. The target itself
// is not modified unless parent sync is automatic.
func (e *Engine) DecomposeTask(prefix string, specs []SubtaskSpec) (EditResult, error) {
	id, err := e.store.Resolve(prefix)
	if err != nil {
		return EditResult{}, err
	}
	if err := e.validateSubtasks(specs, true); err != nil {
		return EditResult{}, err
	}
	parent, _ := e.store.Task(id)
	subs := e.createSubtasks(parent, specs)
	res := EditResult{Changed: true, Subtasks: subs, Hints: dedupeHints(e.drainHints())}
	res.Task, _ = e.store.Task(id)
	return res, nil
}

func (e *Engine) validateSubtasks(specs []SubtaskSpec, required bool) error {
	if required && len(specs) == 0 {
		return newError(KindValidation, "at least one subtask is required")
	}
	if len(specs) > MaxSubtasks {
		return newError(KindValidation, "at most %d subtasks per call, got %d", MaxSubtasks, len(specs))
	}
	for i, s := range specs {
		if strings.TrimSpace(s.Title) == "" {
			return newError(KindValidation, "subtask %d: title must not be empty", i)
		}
		if s.Bucket != "" {
			if _, ok := e.store.Bucket(s.Bucket); !ok {
				return newError(KindUnknownBucket, "subtask %d: unknown bucket %q", i, s.Bucket)
			}
		}
		if err := validateEnums(s.Priority, s.Progress); err != nil {
			return fmt.Errorf("subtask %d: %w", i, err)
		}
		for _, d := range s.DependsOn {
			if d < 0 || d >= len(specs) {
				return newError(KindValidation, "subtask %d: depends_on index %d out of range", i, d)
			}
			if d == i {
				return newError(KindValidation, "subtask %d: cannot depend on itself", i)
			}
		}
	}
	return nil
}

// createSubtasks assumes specs were validated against the current store.
func (e *Engine) createSubtasks(parent models.Task, specs []SubtaskSpec) []models.Task {
	if len(specs) == 0 {
		return nil
	}
	now := e.now()
	ids := make([]uuid.UUID, len(specs))
	for i := range specs {
		ids[i] = e.newID()
	}
	out := make([]models.Task, 0, len(specs))
	for i, s := range specs {
		bucket := parent.Bucket
		if s.Bucket != "" {
			b, _ := e.store.Bucket(s.Bucket)
			bucket = b.Name
		}
		priority := parent.Priority
		if s.Priority != nil {
			priority = *s.Priority
		}
		var deps []uuid.UUID
		for _, d := range s.DependsOn {
			if !slices.Contains(deps, ids[d]) {
				deps = append(deps, ids[d])
			}
		}
		pid := parent.ID
		// Offset creation times so siblings list in spec order.
		created := now.Add(time.Duration(i))
		t := models.Task{
			ID:           ids[i],
			Title:        strings.TrimSpace(s.Title),
			Description:  strings.TrimSpace(s.Description),
			Bucket:       bucket,
			Progress:     models.ProgressBacklog,
			Priority:     priority,
			DueDate:      copyDate(s.DueDate),
			ParentID:     &pid,
			Dependencies: deps,
			CreatedAt:    created,
			UpdatedAt:    created,
		}
		if s.Progress != nil {
			setProgress(&t, *s.Progress, created)
		}
		e.write(t)
		out = append(out, t.Clone())
	}
	e.syncParent(parent.ID)
	return out
}

// BulkUpdate applies upd to every selected task independently. Per-target
// failures are reported in the result; the call itself fails only for an
// empty selector, a predicate that matches nothing, or target ids none of
// which identify a task.
func (e *Engine) BulkUpdate(sel Selector, upd TaskUpdate) (BulkResult, error) {
	if len(sel.IDs) == 0 && !sel.hasPredicate() {
		return BulkResult{}, newError(KindValidation, "bulk update needs target ids or a filter")
	}
	if len(upd.Subtasks) > 0 {
		return BulkResult{}, newError(KindValidation, "bulk update cannot create subtasks")
	}
	if upd.IsEmpty() {
		return BulkResult{}, newError(KindValidation, "bulk update has no changes")
	}
	if sel.Bucket != "" {
		if _, ok := e.store.Bucket(sel.Bucket); !ok {
			return BulkResult{}, newError(KindUnknownBucket, "unknown bucket %q", sel.Bucket)
		}
	}

	res := BulkResult{Changed: []uuid.UUID{}, Unchanged: []uuid.UUID{}, Failed: []BulkFailure{}}
	var targets []uuid.UUID
	seen := map[uuid.UUID]bool{}
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}

	all := len(sel.IDs) == 0
	for _, raw := range sel.IDs {
		if strings.EqualFold(strings.TrimSpace(raw), "all") {
			all = true
		}
	}
	if all {
		for _, t := range e.store.Tasks() {
			if e.matches(t, sel) {
				add(t.ID)
			}
		}
		if len(sel.IDs) == 0 && len(targets) == 0 {
			return BulkResult{}, newError(KindNotFound, "no tasks match the filter")
		}
	} else {
		for _, raw := range sel.IDs {
			id, err := e.store.Resolve(raw)
			if err != nil {
				res.Failed = append(res.Failed, BulkFailure{Selector: raw, Kind: KindOf(err), Message: err.Error()})
				continue
			}
			t, _ := e.store.Task(id)
			if !e.matches(t, sel) {
				res.Unchanged = append(res.Unchanged, id)
				continue
			}
			add(id)
		}
		if len(targets) == 0 && len(res.Unchanged) == 0 {
			return BulkResult{}, newError(KindNotFound, "none of the %d target ids match a task", len(sel.IDs)).
				WithDetails(map[string]any{"failed": res.Failed})
		}
	}

	for _, id := range targets {
		r, err := e.editByID(id, upd)
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{Selector: models.ShortID(id), Kind: KindOf(err), Message: err.Error()})
			continue
		}
		res.Hints = append(res.Hints, r.Hints...)
		if r.Changed {
			res.Changed = append(res.Changed, id)
		} else {
			res.Unchanged = append(res.Unchanged, id)
		}
	}
	res.Hints = dedupeHints(res.Hints)
	return res, nil
}

func (e *Engine) matches(t models.Task, sel Selector) bool {
	if sel.Bucket != "" && !models.SameBucketName(t.Bucket, sel.Bucket) {
		return false
	}
	if sel.Progress != nil && t.Progress != *sel.Progress {
		return false
	}
	return true
}

// AddBucket registers a new bucket at the end of the list.
func (e *Engine) AddBucket(name, description string) (models.Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Bucket{}, newError(KindValidation, "bucket name must not be empty")
	}
	if existing, ok := e.store.Bucket(name); ok {
		return models.Bucket{}, newError(KindDuplicateBucket, "bucket %q already exists", existing.Name)
	}
	b := models.Bucket{Name: name, Description: strings.TrimSpace(description)}
	e.changing()
	e.store.setBuckets(append(e.store.Buckets(), b))
	return b, nil
}

// RenameBucket renames a bucket and moves its tasks along. A rename that
// only changes letter case is allowed.
func (e *Engine) RenameBucket(oldName, newName string) (RenameBucketResult, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return RenameBucketResult{}, newError(KindValidation, "bucket name must not be empty")
	}
	i, ok := e.store.bucketIndex(oldName)
	if !ok {
		return RenameBucketResult{}, newError(KindNotFound, "bucket %q not found", oldName)
	}
	if j, ok := e.store.bucketIndex(newName); ok && j != i {
		return RenameBucketResult{}, newError(KindDuplicateBucket, "bucket %q already exists", e.store.buckets[j].Name)
	}
	buckets := e.store.Buckets()
	old := buckets[i].Name
	res := RenameBucketResult{Old: old, New: newName}
	if old == newName {
		return res, nil
	}
	e.changing()
	buckets[i].Name = newName
	e.store.setBuckets(buckets)
	now := e.now()
	for _, t := range e.store.Tasks() {
		if t.Bucket == old {
			t.Bucket = newName
			t.UpdatedAt = now
			e.store.put(t)
			res.TasksUpdated++
		}
	}
	return res, nil
}

// DescribeBucket sets or clears a bucket's description.
func (e *Engine) DescribeBucket(name, description string) (models.Bucket, error) {
	i, ok := e.store.bucketIndex(name)
	if !ok {
		return models.Bucket{}, newError(KindNotFound, "bucket %q not found", name)
	}
	buckets := e.store.Buckets()
	description = strings.TrimSpace(description)
	if buckets[i].Description == description {
		return buckets[i], nil
	}
	e.changing()
	buckets[i].Description = description
	e.store.setBuckets(buckets)
	return buckets[i], nil
}

// DeleteBucket removes a bucket, moving its tasks to the first remaining
// bucket. The last bucket cannot be deleted.
func (e *Engine) DeleteBucket(name string) (DeleteBucketResult, error) {
	i, ok := e.store.bucketIndex(name)
	if !ok {
		return DeleteBucketResult{}, newError(KindNotFound, "bucket %q not found", name)
	}
	buckets := e.store.Buckets()
	if len(buckets) == 1 {
		return DeleteBucketResult{}, newError(KindLastBucket, "cannot delete %q: it is the only bucket", buckets[i].Name)
	}
	deleted := buckets[i].Name
	buckets = slices.Delete(buckets, i, i+1)
	fallback := buckets[0].Name

	e.changing()
	e.store.setBuckets(buckets)
	res := DeleteBucketResult{Deleted: deleted, TasksMovedTo: fallback}
	now := e.now()
	for _, t := range e.store.Tasks() {
		if t.Bucket == deleted {
			t.Bucket = fallback
			t.UpdatedAt = now
			e.store.put(t)
			res.TasksMoved++
		}
	}
	return res, nil
}

// syncParent reconciles parentID with its children under the configured
// policy. In auto mode the change cascades to ancestors.
func (e *Engine) syncParent(parentID uuid.UUID) {
	h, ok := hintFor(e.store, parentID)
	if !ok {
		return
	}
	if e.sync != models.ParentSyncAuto {
		e.hints = append(e.hints, h)
		return
	}
	parent, _ := e.store.Task(parentID)
	now := e.now()
	setProgress(&parent, h.Suggested, now)
	parent.UpdatedAt = now
	e.write(parent)
	h.Applied = true
	e.hints = append(e.hints, h)
	if parent.ParentID != nil {
		e.syncParent(*parent.ParentID)
	}
}

func (e *Engine) bucketOrDefault(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return e.store.DefaultBucket().Name, nil
	}
	b, ok := e.store.Bucket(name)
	if !ok {
		return "", newError(KindUnknownBucket, "unknown bucket %q", name)
	}
	return b.Name, nil
}

func (e *Engine) resolveParent(prefix string) (uuid.UUID, error) {
	id, err := e.store.Resolve(prefix)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return uuid.Nil, newError(KindUnknownParent, "parent %q not found", prefix)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (e *Engine) resolveDependencies(prefixes []string, self uuid.UUID) ([]uuid.UUID, error) {
	var deps []uuid.UUID
	for _, p := range prefixes {
		id, err := e.store.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("resolving dependency: %w", err)
		}
		if id == self {
			return nil, newError(KindValidation, "task %s cannot depend on itself", models.ShortID(id))
		}
		if !slices.Contains(deps, id) {
			deps = append(deps, id)
		}
	}
	return deps, nil
}

// setProgress changes t's progress, stamping start_date on the first entry
// into InProgress.
func setProgress(t *models.Task, p models.Progress, now time.Time) {
	t.Progress = p
	if p == models.ProgressInProgress && t.StartDate == nil {
		ts := now
		t.StartDate = &ts
	}
}

func validateEnums(priority *models.Priority, progress *models.Progress) error {
	if priority != nil && priority.Rank() < 0 {
		return newError(KindValidation, "invalid priority %q", *priority)
	}
	if progress != nil && progress.Stage() < 0 {
		return newError(KindValidation, "invalid progress %q", *progress)
	}
	return nil
}

func copyDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func dedupeHints(hints []ParentHint) []ParentHint {
	if len(hints) == 0 {
		return nil
	}
	idx := map[uuid.UUID]int{}
	var out []ParentHint
	for _, h := range hints {
		if i, ok := idx[h.ParentID]; ok {
			out[i] = h
			continue
		}
		idx[h.ParentID] = len(out)
		out = append(out, h)
	}
	return out
}

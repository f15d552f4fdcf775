package storage

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"pgregory.net/rapid"
)

func genWords(t *rapid.T, label string, minWords, maxWords int) string {
	n := rapid.IntRange(minWords, maxWords).Draw(t, label+"Words")
	words := make([]string, n)
	for i := range words {
		words[i] = rapid.StringMatching(`[A-Za-z0-9]{1,8}`).Draw(t, fmt.Sprintf("%sWord%d", label, i))
	}
	return strings.Join(words, " ")
}

func genTask(t *rapid.T, i int, earlier []models.Task) models.Task {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	task := models.Task{
		ID:          uuid.New(),
		Title:       genWords(t, fmt.Sprintf("title%d", i), 1, 6),
		Description: genWords(t, fmt.Sprintf("desc%d", i), 0, 12),
		Bucket:      rapid.SampledFrom([]string{"Personal", "Team", "Admin"}).Draw(t, fmt.Sprintf("bucket%d", i)),
		Progress:    rapid.SampledFrom(models.AllProgress).Draw(t, fmt.Sprintf("progress%d", i)),
		Priority:    rapid.SampledFrom(models.AllPriorities).Draw(t, fmt.Sprintf("priority%d", i)),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if rapid.Bool().Draw(t, fmt.Sprintf("hasDue%d", i)) {
		d := models.NewDate(2026, time.Month(rapid.IntRange(1, 12).Draw(t, fmt.Sprintf("month%d", i))), rapid.IntRange(1, 28).Draw(t, fmt.Sprintf("day%d", i)))
		task.DueDate = &d
	}
	if len(earlier) > 0 && rapid.Bool().Draw(t, fmt.Sprintf("hasParent%d", i)) {
		p := earlier[rapid.IntRange(0, len(earlier)-1).Draw(t, fmt.Sprintf("parent%d", i))].ID
		task.ParentID = &p
	}
	return task
}

// Property: saving a board and loading it back yields the same tasks and
// buckets, and the tasks directory holds exactly one file per task.
func TestProperty_SaveLoadPreservesBoard(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "aipm-board-*")
		if err != nil {
			rt.Fatalf("creating temp dir: %v", err)
		}
		defer os.RemoveAll(dir)
		mgr := NewBoardManager(dir, nil)

		n := rapid.IntRange(0, 12).Draw(rt, "numTasks")
		var tasks []models.Task
		for i := range n {
			tasks = append(tasks, genTask(rt, i, tasks))
		}
		in := Board{Tasks: tasks, Buckets: models.DefaultBuckets()}
		if err := mgr.Save(in); err != nil {
			rt.Fatalf("save: %v", err)
		}

		out, err := mgr.Load()
		if err != nil {
			rt.Fatalf("load: %v", err)
		}
		if len(out.Tasks) != len(in.Tasks) {
			rt.Fatalf("loaded %d tasks, saved %d", len(out.Tasks), len(in.Tasks))
		}
		got := map[uuid.UUID]models.Task{}
		for _, task := range out.Tasks {
			got[task.ID] = task
		}
		for _, want := range in.Tasks {
			if diff := cmp.Diff(want, got[want.ID]); diff != "" {
				rt.Fatalf("task mismatch (-want +got):\n%s", diff)
			}
		}

		entries, err := os.ReadDir(mgr.(*fileBoardManager).tasksDir())
		if err != nil && n > 0 {
			rt.Fatalf("reading tasks dir: %v", err)
		}
		if len(entries) != n {
			rt.Fatalf("expected %d files, found %d", n, len(entries))
		}
	})
}

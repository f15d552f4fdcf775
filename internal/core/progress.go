package core

import (
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// ParentHint reports a parent whose progress differs from the aggregate of
// its children. Applied is set when the parent was updated automatically.
type ParentHint struct {
	ParentID  uuid.UUID       `json:"parent_id"`
	Title     string          `json:"title"`
	Current   models.Progress `json:"current"`
	Suggested models.Progress `json:"suggested"`
	Applied   bool            `json:"applied,omitempty"`
}

// AggregateProgress derives a parent's progress from its children:
// all Done gives Done, any InProgress or Done gives InProgress, any Todo
// gives Todo, otherwise Backlog. It reports false when there are no children.
func AggregateProgress(children []models.Progress) (models.Progress, bool) {
	if len(children) == 0 {
		return "", false
	}
	var done, started, todo int
	for _, p := range children {
		switch p {
		case models.ProgressDone:
			done++
		case models.ProgressInProgress:
			started++
		case models.ProgressTodo:
			todo++
		}
	}
	switch {
	case done == len(children):
		return models.ProgressDone, true
	case started > 0 || done > 0:
		return models.ProgressInProgress, true
	case todo > 0:
		return models.ProgressTodo, true
	}
	return models.ProgressBacklog, true
}

// parentHints lists every parent in s whose progress disagrees with its
// children.
func parentHints(s *Store) []ParentHint {
	var hints []ParentHint
	for _, t := range s.Tasks() {
		if h, ok := hintFor(s, t.ID); ok {
			hints = append(hints, h)
		}
	}
	return hints
}

func hintFor(s *Store, parentID uuid.UUID) (ParentHint, bool) {
	parent, ok := s.Task(parentID)
	if !ok {
		return ParentHint{}, false
	}
	kids := s.Children(parentID)
	progress := make([]models.Progress, 0, len(kids))
	for _, k := range kids {
		progress = append(progress, s.tasks[k].Progress)
	}
	agg, ok := AggregateProgress(progress)
	if !ok || agg == parent.Progress {
		return ParentHint{}, false
	}
	return ParentHint{ParentID: parentID, Title: parent.Title, Current: parent.Progress, Suggested: agg}, true
}

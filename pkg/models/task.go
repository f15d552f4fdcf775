package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Progress is the lifecycle stage of a task. Stages are ordered
// Backlog < Todo < InProgress < Done.
type Progress string

const (
	ProgressBacklog    Progress = "backlog"
	ProgressTodo       Progress = "todo"
	ProgressInProgress Progress = "in_progress"
	ProgressDone       Progress = "done"
)

// AllProgress lists the stages in order.
var AllProgress = []Progress{ProgressBacklog, ProgressTodo, ProgressInProgress, ProgressDone}

// Stage returns the zero-based position of p, or -1 for an unknown value.
func (p Progress) Stage() int {
	for i, s := range AllProgress {
		if s == p {
			return i
		}
	}
	return -1
}

// Advance returns the next stage. Done saturates.
func (p Progress) Advance() Progress {
	i := p.Stage()
	if i < 0 || i == len(AllProgress)-1 {
		return p
	}
	return AllProgress[i+1]
}

// Retreat returns the previous stage. Backlog saturates.
func (p Progress) Retreat() Progress {
	i := p.Stage()
	if i <= 0 {
		return p
	}
	return AllProgress[i-1]
}

// Title returns the display name.
func (p Progress) Title() string {
	switch p {
	case ProgressBacklog:
		return "Backlog"
	case ProgressTodo:
		return "Todo"
	case ProgressInProgress:
		return "In progress"
	case ProgressDone:
		return "Done"
	}
	return string(p)
}

// ParseProgress accepts the canonical values plus the common spellings
// agents and humans use ("In progress", "inprogress", "in-progress").
func ParseProgress(s string) (Progress, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backlog":
		return ProgressBacklog, true
	case "todo", "to do", "to-do":
		return ProgressTodo, true
	case "in_progress", "in progress", "inprogress", "in-progress", "doing":
		return ProgressInProgress, true
	case "done", "complete", "completed":
		return ProgressDone, true
	}
	return "", false
}

// Priority represents the urgency of a task, ordered Low < Medium < High < Critical.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities lists priorities from lowest to highest.
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank returns the zero-based position of p, or -1 for an unknown value.
func (p Priority) Rank() int {
	for i, v := range AllPriorities {
		if v == p {
			return i
		}
	}
	return -1
}

// Title returns the display name.
func (p Priority) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// ParsePriority accepts the canonical values plus "med" and "crit".
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium", "med":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "critical", "crit":
		return PriorityCritical, true
	}
	return "", false
}

// Task is a unit of work. ID is assigned once at creation and never reused.
type Task struct {
	ID           uuid.UUID   `yaml:"id" json:"id"`
	Title        string      `yaml:"title" json:"title"`
	Description  string      `yaml:"-" json:"description"`
	Bucket       string      `yaml:"bucket" json:"bucket"`
	Progress     Progress    `yaml:"progress" json:"progress"`
	Priority     Priority    `yaml:"priority" json:"priority"`
	DueDate      *Date       `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	ParentID     *uuid.UUID  `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	Dependencies []uuid.UUID `yaml:"dependencies,omitempty" json:"dependencies"`
	CreatedAt    time.Time   `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `yaml:"updated_at" json:"updated_at"`
	StartDate    *time.Time  `yaml:"start_date,omitempty" json:"start_date,omitempty"`
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.ParentID != nil {
		p := *t.ParentID
		c.ParentID = &p
	}
	if t.StartDate != nil {
		s := *t.StartDate
		c.StartDate = &s
	}
	if t.Dependencies != nil {
		c.Dependencies = append([]uuid.UUID(nil), t.Dependencies...)
	}
	return c
}

// ShortID returns the first 8 hex characters of the task ID.
func (t Task) ShortID() string {
	return ShortID(t.ID)
}

// ShortID returns the 8-character display prefix of id.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

// HasDependency reports whether t lists id as a dependency.
func (t Task) HasDependency(id uuid.UUID) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

package observability

import (
	"fmt"
	"slices"
	"time"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionTaskOverdue     = "task_overdue"
	ConditionTaskStale       = "task_stale"
	ConditionBacklogTooLarge = "backlog_too_large"
)

// Alert represents a triggered alert condition. Task is set for per-task
// conditions, Backlog for the backlog size condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
	Task        *AlertTask    `json:"task,omitempty"`
	Backlog     *BacklogCount `json:"backlog,omitempty"`
}

// AlertTask is the part of a task an alert reports on.
type AlertTask struct {
	ShortID   string       `json:"short_id"`
	Title     string       `json:"title"`
	Bucket    string       `json:"bucket"`
	DueDate   *models.Date `json:"due_date,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BacklogCount is the backlog size against its configured limit.
type BacklogCount struct {
	Tasks int `json:"tasks"`
	Limit int `json:"limit"`
}

func alertTaskFrom(t models.Task) *AlertTask {
	a := &AlertTask{ShortID: t.ShortID(), Title: t.Title, Bucket: t.Bucket, UpdatedAt: t.UpdatedAt}
	if t.DueDate != nil {
		d := *t.DueDate
		a.DueDate = &d
	}
	return a
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	StaleDays  int `json:"stale_days"`
	MaxBacklog int `json:"max_backlog"`
}

// DefaultAlertThresholds mirrors the config defaults.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{StaleDays: 14, MaxBacklog: 25}
}

// ThresholdsFromConfig converts the alerts config section.
func ThresholdsFromConfig(cfg models.AlertsConfig) AlertThresholds {
	return AlertThresholds{StaleDays: cfg.StaleDays, MaxBacklog: cfg.MaxBacklog}
}

// AlertEngine evaluates alert conditions against the current board.
type AlertEngine interface {
	Evaluate(tasks []models.Task) []Alert
}

type alertEngine struct {
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine with the given thresholds.
func NewAlertEngine(thresholds AlertThresholds) AlertEngine {
	return &alertEngine{thresholds: thresholds, now: time.Now}
}

// Evaluate returns overdue alerts first, then stale, then backlog size.
func (ae *alertEngine) Evaluate(tasks []models.Task) []Alert {
	now := ae.now().UTC()
	sorted := slices.Clone(tasks)
	slices.SortFunc(sorted, func(a, b models.Task) int { return a.CreatedAt.Compare(b.CreatedAt) })

	var alerts []Alert
	alerts = append(alerts, ae.checkOverdue(sorted, now)...)
	alerts = append(alerts, ae.checkStale(sorted, now)...)
	alerts = append(alerts, ae.checkBacklogSize(sorted, now)...)
	return alerts
}

func (ae *alertEngine) checkOverdue(tasks []models.Task, now time.Time) []Alert {
	today := models.NewDate(now.Year(), now.Month(), now.Day())
	var alerts []Alert
	for _, t := range tasks {
		if t.Progress == models.ProgressDone || t.DueDate == nil || !t.DueDate.Before(today.Time) {
			continue
		}
		days := int(today.Sub(t.DueDate.Time).Hours() / 24)
		alerts = append(alerts, Alert{
			ID:          "overdue-" + t.ShortID(),
			Condition:   ConditionTaskOverdue,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("%s %q was due %s (%d day(s) ago)", t.ShortID(), t.Title, t.DueDate, days),
			TriggeredAt: now,
			Task:        alertTaskFrom(t),
		})
	}
	return alerts
}

func (ae *alertEngine) checkStale(tasks []models.Task, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	var alerts []Alert
	for _, t := range tasks {
		if t.Progress != models.ProgressInProgress || now.Sub(t.UpdatedAt) <= threshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "stale-" + t.ShortID(),
			Condition:   ConditionTaskStale,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("%s %q has been in progress without changes for more than %d days", t.ShortID(), t.Title, ae.thresholds.StaleDays),
			TriggeredAt: now,
			Task:        alertTaskFrom(t),
		})
	}
	return alerts
}

func (ae *alertEngine) checkBacklogSize(tasks []models.Task, now time.Time) []Alert {
	backlog := 0
	for _, t := range tasks {
		if t.Progress == models.ProgressBacklog {
			backlog++
		}
	}
	if backlog <= ae.thresholds.MaxBacklog {
		return nil
	}
	return []Alert{{
		ID:          "backlog-size",
		Condition:   ConditionBacklogTooLarge,
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("backlog has %d tasks, exceeding the maximum of %d", backlog, ae.thresholds.MaxBacklog),
		TriggeredAt: now,
		Backlog:     &BacklogCount{Tasks: backlog, Limit: ae.thresholds.MaxBacklog},
	}}
}

package observability

import (
	"fmt"
	"time"
)

// Metrics holds activity counts derived from the event log.
type Metrics struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksDeleted    int            `json:"tasks_deleted"`
	ProgressChanges map[string]int `json:"progress_changes"`
	BulkChanged     int            `json:"bulk_changed"`
	Undos           int            `json:"undos"`
	AITurns         int            `json:"ai_turns"`
	AICallsOK       int            `json:"ai_calls_succeeded"`
	AICallsFailed   int            `json:"ai_calls_failed"`
	InboxCreated    int            `json:"inbox_created"`
	InboxRetracted  int            `json:"inbox_retracted"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{ProgressChanges: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "task.created":
			m.TasksCreated += 1 + intValue(event.Data["subtasks"])
		case "task.decomposed":
			m.TasksCreated += intValue(event.Data["subtasks"])
		case "task.progress_changed":
			progress, _ := event.Data["progress"].(string)
			if progress != "" {
				m.ProgressChanges[progress]++
			}
			if progress == "done" {
				m.TasksCompleted++
			}
		case "task.deleted":
			m.TasksDeleted += intValue(event.Data["removed"])
		case "task.bulk_updated":
			m.BulkChanged += intValue(event.Data["changed"])
		case "history.undo":
			m.Undos++
		case "ai.turn":
			m.AITurns++
			m.AICallsOK += intValue(event.Data["succeeded"])
			m.AICallsFailed += intValue(event.Data["failed"])
		case "inbox.created":
			m.InboxCreated++
		case "inbox.retracted":
			m.InboxRetracted++
		}
	}

	return m, nil
}

// ParseSince turns a window such as "7d", "30d" or "24h" into the instant
// that far before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if num < 0 {
		return time.Time{}, fmt.Errorf("invalid duration %q: must not be negative", s)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}

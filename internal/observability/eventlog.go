package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventsFileName is the event log file inside the data directory.
const EventsFileName = "events.jsonl"

// Event is one line of the event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN
	Type    string         `json:"type"`  // e.g. "task.created", "ai.turn"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter specifies criteria for reading events.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
}

// EventLog is an append-only event store. It satisfies core.EventLogger.
type EventLog interface {
	Write(event Event) error
	LogEvent(eventType string, data map[string]any) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

type jsonlEventLog struct {
	path string
	file *os.File
	now  func() time.Time
	mu   sync.Mutex
}

// NewJSONLEventLog opens (or creates) the JSONL file at path for appending.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f, now: time.Now}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// LogEvent stamps and writes a domain event.
func (l *jsonlEventLog) LogEvent(eventType string, data map[string]any) error {
	return l.Write(Event{
		Time:    l.now().UTC(),
		Level:   levelFor(eventType, data),
		Type:    eventType,
		Message: messageFor(eventType, data),
		Data:    data,
	})
}

func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}

		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	return true
}

// levelFor marks agent turns and bulk updates with failures as warnings.
func levelFor(eventType string, data map[string]any) string {
	switch eventType {
	case "ai.turn", "task.bulk_updated":
		if intValue(data["failed"]) > 0 {
			return "WARN"
		}
	}
	return "INFO"
}

func messageFor(eventType string, data map[string]any) string {
	switch eventType {
	case "task.created":
		return fmt.Sprintf("created %q", data["title"])
	case "task.deleted":
		return fmt.Sprintf("deleted %d task(s)", intValue(data["removed"]))
	case "task.progress_changed":
		return fmt.Sprintf("progress -> %v", data["progress"])
	case "bucket.renamed":
		return fmt.Sprintf("bucket %v renamed to %v", data["old"], data["new"])
	case "history.undo":
		return fmt.Sprintf("undid %q", data["label"])
	case "ai.turn":
		return fmt.Sprintf("%d/%d tool calls succeeded", intValue(data["succeeded"]), intValue(data["calls"]))
	}
	return eventType
}

// intValue reads a count that may have round-tripped through JSON as float64.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

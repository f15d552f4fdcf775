package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), EventsFileName)
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, Level: "INFO", Type: "task.created", Message: "created", Data: map[string]any{"task_id": "0a1b2c3d"}},
		{Time: now.Add(time.Second), Level: "WARN", Type: "ai.turn", Message: "1/2 tool calls succeeded"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != "task.created" || result[0].Data["task_id"] != "0a1b2c3d" {
		t.Errorf("unexpected first event %+v", result[0])
	}
	if result[1].Level != "WARN" {
		t.Errorf("expected level WARN, got %s", result[1].Level)
	}
}

func TestEventLog_LogEvent(t *testing.T) {
	log, _ := newTestLog(t)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	log.(*jsonlEventLog).now = func() time.Time { return fixed }

	if err := log.LogEvent("task.created", map[string]any{"title": "Pay rent"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := log.LogEvent("ai.turn", map[string]any{"calls": 2, "succeeded": 1, "failed": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := log.LogEvent("bucket.created", map[string]any{"bucket": "Garden"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 events, got %d", len(result))
	}
	tests := []struct {
		typ, level, msg string
	}{
		{"task.created", "INFO", `created "Pay rent"`},
		{"ai.turn", "WARN", "1/2 tool calls succeeded"},
		{"bucket.created", "INFO", "bucket.created"},
	}
	for i, tt := range tests {
		got := result[i]
		if got.Type != tt.typ || got.Level != tt.level || got.Message != tt.msg {
			t.Errorf("event %d = %s/%s/%q, want %s/%s/%q", i, got.Type, got.Level, got.Message, tt.typ, tt.level, tt.msg)
		}
		if !got.Time.Equal(fixed) {
			t.Errorf("event %d time = %v, want %v", i, got.Time, fixed)
		}
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := newTestLog(t)

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Time: base, Level: "INFO", Type: "task.created", Message: "first"},
		{Time: base.Add(time.Hour), Level: "WARN", Type: "ai.turn", Message: "second"},
		{Time: base.Add(2 * time.Hour), Level: "INFO", Type: "task.created", Message: "third"},
		{Time: base.Add(3 * time.Hour), Level: "INFO", Type: "history.undo", Message: "fourth"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"first", "second", "third", "fourth"}},
		{"by type", EventFilter{Type: "task.created"}, []string{"first", "third"}},
		{"by level", EventFilter{Level: "WARN"}, []string{"second"}},
		{"by time range", EventFilter{Since: &since, Until: &until}, []string{"second", "third"}},
		{"combined", EventFilter{Since: &since, Type: "task.created"}, []string{"third"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(result) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(result))
			}
			for i, e := range result {
				if e.Message != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, e.Message, tt.want[i])
				}
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestLog(t)
	if err := log.LogEvent("task.created", map[string]any{"title": "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = f.WriteString("{not json\n\n")
	_ = f.Close()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 event, got %d", len(result))
	}
}

func TestEventLog_EmptyLog(t *testing.T) {
	log, _ := newTestLog(t)

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading empty log: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected 0 events from empty log, got %d", len(result))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log, _ := newTestLog(t)

	const goroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < eventsPerGoroutine; i++ {
				if err := log.LogEvent("task.updated", map[string]any{"goroutine": id, "index": i}); err != nil {
					t.Errorf("concurrent write error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events after concurrent writes: %v", err)
	}
	if expected := goroutines * eventsPerGoroutine; len(result) != expected {
		t.Errorf("expected %d events, got %d", expected, len(result))
	}
}

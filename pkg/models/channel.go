package models

import "github.com/google/uuid"

// InboxItemStatus is the processing state of an external inbox item.
type InboxItemStatus string

const (
	InboxStatusPending  InboxItemStatus = "pending"
	InboxStatusArchived InboxItemStatus = "archived"
	InboxStatusRead     InboxItemStatus = "read"
)

// InboxItem is one message picked up from an external inbox.
type InboxItem struct {
	ID       string          `yaml:"id"`
	From     string          `yaml:"from,omitempty"`
	Subject  string          `yaml:"subject"`
	Date     string          `yaml:"date,omitempty"`
	Priority string          `yaml:"priority,omitempty"`
	Bucket   string          `yaml:"bucket,omitempty"`
	Status   InboxItemStatus `yaml:"status"`
	Content  string          `yaml:"-"`
}

// InboxEventKind distinguishes proposals from retractions.
type InboxEventKind string

const (
	InboxCreate  InboxEventKind = "create"
	InboxRetract InboxEventKind = "retract"
)

// InboxEvent is a background create or retract request derived from the inbox.
type InboxEvent struct {
	Kind         InboxEventKind `json:"kind"`
	ExternalRef  string         `json:"external_ref"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	BucketHint   string         `json:"bucket_hint,omitempty"`
	PriorityHint string         `json:"priority_hint,omitempty"`
	// TaskID is filled for retractions from the poller's ref map.
	TaskID uuid.UUID `json:"task_id,omitempty"`
}

package models

import "time"

// Snapshot is a full copy of the board captured before a recorded mutation.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Tasks     []Task    `json:"tasks"`
	Buckets   []Bucket  `json:"buckets"`
}

// Entry returns the history listing entry for s.
func (s Snapshot) Entry() HistoryEntry {
	return HistoryEntry{Seq: s.Seq, Label: s.Label, Timestamp: s.Timestamp}
}

// HistoryEntry describes a snapshot without its payload.
type HistoryEntry struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	Label     string    `json:"label" yaml:"label"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

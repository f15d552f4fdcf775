package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/valter-silva-au/aipm/pkg/models"
)

func sampleSnapshot(seq uint64, label string) models.Snapshot {
	task := sampleTask("Snapshot task")
	return models.Snapshot{
		Seq:       seq,
		Label:     label,
		Timestamp: time.Date(2026, 5, 2, 14, 3, 9, 0, time.UTC),
		Tasks:     []models.Task{task},
		Buckets:   models.DefaultBuckets(),
	}
}

func TestSnapshotFileName(t *testing.T) {
	got := SnapshotFileName(sampleSnapshot(7, "x"))
	if got != "00007-20260502T140309.json" {
		t.Errorf("SnapshotFileName = %q", got)
	}
}

func TestSnapshots_AppendLoadRemove(t *testing.T) {
	dir := t.TempDir()
	mgr := NewSnapshotManager(dir, nil)

	snaps, err := mgr.LoadSnapshots()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(snaps))
	}

	first := sampleSnapshot(1, "add task: one")
	second := sampleSnapshot(2, "delete task abcd")
	for _, s := range []models.Snapshot{first, second} {
		if err := mgr.AppendSnapshot(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snaps, err = mgr.LoadSnapshots()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]models.Snapshot{first, second}, snaps); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}

	if err := mgr.RemoveSnapshot(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snaps, err = mgr.LoadSnapshots()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Seq != 2 {
		t.Fatalf("expected only snapshot 2, got %+v", snaps)
	}

	if err := mgr.RemoveSnapshot(99); err != nil {
		t.Errorf("removing a missing snapshot should be a no-op, got %v", err)
	}
}

func TestSnapshots_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	mgr := NewSnapshotManager(dir, nil)
	if err := mgr.AppendSnapshot(sampleSnapshot(3, "ok")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := filepath.Join(dir, historyDirName, "00004-20260502T140309.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing bad snapshot: %v", err)
	}

	snaps, err := mgr.LoadSnapshots()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Seq != 3 {
		t.Fatalf("expected the valid snapshot only, got %+v", snaps)
	}
}

func TestSeqFromName(t *testing.T) {
	tests := map[string]uint64{
		"00012-20260101T000000.json": 12,
		"junk.json":                  0,
		"-20260101T000000.json":      0,
	}
	for name, want := range tests {
		if got := seqFromName(name); got != want {
			t.Errorf("seqFromName(%q) = %d, want %d", name, got, want)
		}
	}
}

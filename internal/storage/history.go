package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

const historyDirName = "history"

// SnapshotManager persists undo snapshots as one JSON file each, named
// <seq>-<timestamp>.json so that lexical order is chronological.
type SnapshotManager interface {
	LoadSnapshots() ([]models.Snapshot, error)
	AppendSnapshot(s models.Snapshot) error
	RemoveSnapshot(seq uint64) error
}

type fileSnapshotManager struct {
	dir string
	log *zap.Logger
}

// NewSnapshotManager creates a SnapshotManager under dataDir/history.
func NewSnapshotManager(dataDir string, log *zap.Logger) SnapshotManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &fileSnapshotManager{dir: filepath.Join(dataDir, historyDirName), log: log}
}

// SnapshotFileName returns the file name for s.
func SnapshotFileName(s models.Snapshot) string {
	return fmt.Sprintf("%05d-%s.json", s.Seq, s.Timestamp.UTC().Format("20060102T150405"))
}

func (m *fileSnapshotManager) LoadSnapshots() ([]models.Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var snaps []models.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot %s: %w", entry.Name(), err)
		}
		var s models.Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			m.log.Warn("skipping malformed snapshot", zap.String("path", path), zap.Error(err))
			continue
		}
		if s.Seq == 0 {
			s.Seq = seqFromName(entry.Name())
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

func (m *fileSnapshotManager) AppendSnapshot(s models.Snapshot) error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot %d: %w", s.Seq, err)
	}
	if err := writeIfChanged(filepath.Join(m.dir, SnapshotFileName(s)), data); err != nil {
		return fmt.Errorf("writing snapshot %d: %w", s.Seq, err)
	}
	return nil
}

func (m *fileSnapshotManager) RemoveSnapshot(seq uint64) error {
	matches, err := filepath.Glob(filepath.Join(m.dir, fmt.Sprintf("%05d-*.json", seq)))
	if err != nil {
		return fmt.Errorf("finding snapshot %d: %w", seq, err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing snapshot %d: %w", seq, err)
		}
	}
	return nil
}

func seqFromName(name string) uint64 {
	head, _, _ := strings.Cut(name, "-")
	n, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

package core

import (
	"slices"
	"time"

	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// SnapshotStore persists undo history across processes.
type SnapshotStore interface {
	LoadSnapshots() ([]models.Snapshot, error)
	AppendSnapshot(s models.Snapshot) error
	RemoveSnapshot(seq uint64) error
}

// history is the ordered snapshot stack, oldest first. It is guarded by the
// owning taskManager's lock.
type history struct {
	snaps   []models.Snapshot
	nextSeq uint64
	max     int
	backing SnapshotStore
	log     *zap.Logger
}

func loadHistory(backing SnapshotStore, maxLen int, log *zap.Logger) (*history, error) {
	h := &history{max: maxLen, backing: backing, log: log, nextSeq: 1}
	if backing == nil {
		return h, nil
	}
	snaps, err := backing.LoadSnapshots()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(snaps, func(a, b models.Snapshot) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	h.snaps = snaps
	if n := len(snaps); n > 0 {
		h.nextSeq = snaps[n-1].Seq + 1
	}
	h.trim()
	return h, nil
}

func (h *history) push(label string, state State, now time.Time) {
	snap := models.Snapshot{
		Seq:       h.nextSeq,
		Label:     label,
		Timestamp: now,
		Tasks:     state.SortedTasks(),
		Buckets:   slices.Clone(state.Buckets),
	}
	h.nextSeq++
	h.snaps = append(h.snaps, snap)
	if h.backing != nil {
		if err := h.backing.AppendSnapshot(snap); err != nil {
			h.log.Warn("persisting snapshot", zap.Uint64("seq", snap.Seq), zap.Error(err))
		}
	}
	h.trim()
}

func (h *history) trim() {
	for len(h.snaps) > h.max {
		oldest := h.snaps[0]
		h.snaps = h.snaps[1:]
		h.forget(oldest.Seq)
	}
}

func (h *history) latest() (models.Snapshot, bool) {
	if len(h.snaps) == 0 {
		return models.Snapshot{}, false
	}
	return h.snaps[len(h.snaps)-1], true
}

func (h *history) pop() {
	if len(h.snaps) == 0 {
		return
	}
	last := h.snaps[len(h.snaps)-1]
	h.snaps = h.snaps[:len(h.snaps)-1]
	h.forget(last.Seq)
}

func (h *history) forget(seq uint64) {
	if h.backing == nil {
		return
	}
	if err := h.backing.RemoveSnapshot(seq); err != nil {
		h.log.Warn("removing snapshot", zap.Uint64("seq", seq), zap.Error(err))
	}
}

func (h *history) entries() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(h.snaps))
	for i, s := range h.snaps {
		out[i] = s.Entry()
	}
	return out
}

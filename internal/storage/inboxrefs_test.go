package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestInboxRefs_LoadMissing(t *testing.T) {
	mgr := NewInboxRefManager(t.TempDir())

	refs, err := mgr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", refs)
	}
}

func TestInboxRefs_SaveLoad(t *testing.T) {
	mgr := NewInboxRefManager(t.TempDir())
	want := map[string]uuid.UUID{
		"file:msg-001": uuid.New(),
		"file:msg-002": uuid.New(),
	}

	if err := mgr.Save(want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := mgr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}

	delete(want, "file:msg-001")
	if err := mgr.Save(want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = mgr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refs mismatch after delete (-want +got):\n%s", diff)
	}
}

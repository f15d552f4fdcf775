package core

import (
	"errors"
	"testing"

	"github.com/valter-silva-au/aipm/pkg/models"
)

type stubSource struct {
	name  string
	items []models.InboxItem
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch() ([]models.InboxItem, error) { return s.items, s.err }

func TestInboxRegistry_RegisterAndFetch(t *testing.T) {
	reg := NewInboxRegistry()
	if err := reg.Register(&stubSource{name: "zeta", items: []models.InboxItem{{ID: "z1"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Register(&stubSource{name: "alpha", items: []models.InboxItem{{ID: "a1"}, {ID: "a2"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := reg.Register(&stubSource{name: "alpha"}); err == nil {
		t.Error("duplicate source name should be rejected")
	}
	if err := reg.Register(&stubSource{}); err == nil {
		t.Error("empty source name should be rejected")
	}
	if err := reg.Register(nil); err == nil {
		t.Error("nil source should be rejected")
	}

	items, err := reg.FetchAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var refs []string
	for _, it := range items {
		refs = append(refs, it.Ref())
	}
	want := []string{"alpha:a1", "alpha:a2", "zeta:z1"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestInboxRegistry_FailingSourceAbortsFetch(t *testing.T) {
	reg := NewInboxRegistry()
	boom := errors.New("permission denied")
	_ = reg.Register(&stubSource{name: "ok", items: []models.InboxItem{{ID: "1"}}})
	_ = reg.Register(&stubSource{name: "broken", err: boom})

	items, err := reg.FetchAll()
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
	if items != nil {
		t.Errorf("no items should be returned on failure, got %v", items)
	}
}

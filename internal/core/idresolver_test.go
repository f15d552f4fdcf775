package core

import (
	"slices"
	"testing"

	"github.com/google/uuid"
)

var resolverIDs = []uuid.UUID{
	uuid.MustParse("36140000-0000-4000-8000-000000000001"),
	uuid.MustParse("36141111-0000-4000-8000-000000000002"),
	uuid.MustParse("abcdef01-0000-4000-8000-000000000003"),
}

func TestResolveID(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      uuid.UUID
		kind      ErrorKind
	}{
		{"unique prefix", "abcd", resolverIDs[2], ""},
		{"uppercase prefix", "ABCDEF", resolverIDs[2], ""},
		{"full id", resolverIDs[1].String(), resolverIDs[1], ""},
		{"longer prefix disambiguates", "36140", resolverIDs[0], ""},
		{"prefix across hyphen", "36140000-00", resolverIDs[0], ""},
		{"ambiguous", "3614", uuid.Nil, KindAmbiguousID},
		{"too short", "361", uuid.Nil, KindInvalidIDFormat},
		{"short after trim", "  361 ", uuid.Nil, KindInvalidIDFormat},
		{"non-hex id", "bad-id", uuid.Nil, KindNotFound},
		{"non hex", "zzzz", uuid.Nil, KindNotFound},
		{"too long", resolverIDs[0].String() + "0", uuid.Nil, KindNotFound},
		{"no match", "ffff", uuid.Nil, KindNotFound},
		{"empty", "", uuid.Nil, KindInvalidIDFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveID(tt.candidate, slices.Values(resolverIDs))
			if tt.kind != "" {
				wantKind(t, err, tt.kind)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveID(%q) = %s, want %s", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestResolveID_AmbiguousReportsMatchCount(t *testing.T) {
	_, err := resolveID("3614", slices.Values(resolverIDs))
	var e *Error
	if !asError(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Details["matches"] != 2 {
		t.Errorf("matches = %v, want 2", e.Details["matches"])
	}
}

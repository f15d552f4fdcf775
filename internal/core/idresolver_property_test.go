package core

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func genUUID(t *rapid.T, label string) uuid.UUID {
	b := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, label)
	id, _ := uuid.FromBytes(b)
	return id
}

// Feature: aipm, Property: a prefix resolves to an id exactly when it is
// unique among the known ids, regardless of letter case.
func TestProperty_ResolveIDMatchesUniquePrefixes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = genUUID(rt, "id")
		}
		target := ids[rapid.IntRange(0, n-1).Draw(rt, "target")]
		prefix := target.String()[:rapid.IntRange(MinIDPrefix, 36).Draw(rt, "length")]

		matches := 0
		for _, id := range ids {
			if strings.HasPrefix(id.String(), prefix) {
				matches++
			}
		}

		got, err := resolveID(strings.ToUpper(prefix), slices.Values(ids))
		if matches == 1 {
			if err != nil || got != target {
				rt.Fatalf("resolveID(%q) = %s, %v; want %s", prefix, got, err, target)
			}
			return
		}
		if KindOf(err) != KindAmbiguousID {
			rt.Fatalf("resolveID(%q) with %d matches: got %v", prefix, matches, err)
		}
	})
}

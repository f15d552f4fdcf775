package core

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MinIDPrefix is the shortest accepted id prefix, in characters.
const MinIDPrefix = 4

// normalizePrefix lowercases candidate and enforces the minimum length.
// Anything longer is left to matching: a string that cannot prefix a
// canonical UUID simply matches nothing.
func normalizePrefix(candidate string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if utf8.RuneCountInString(c) < MinIDPrefix {
		return "", newError(KindInvalidIDFormat, "invalid task id %q: need at least %d characters", candidate, MinIDPrefix)
	}
	return c, nil
}

// resolveID returns the unique id in ids whose canonical string starts with
// candidate.
func resolveID(candidate string, ids iter.Seq[uuid.UUID]) (uuid.UUID, error) {
	prefix, err := normalizePrefix(candidate)
	if err != nil {
		return uuid.Nil, err
	}
	var (
		found   uuid.UUID
		matches int
	)
	for id := range ids {
		if strings.HasPrefix(id.String(), prefix) {
			matches++
			found = id
		}
	}
	switch matches {
	case 0:
		return uuid.Nil, newError(KindNotFound, "no task matches id %q", candidate)
	case 1:
		return found, nil
	default:
		return uuid.Nil, newError(KindAmbiguousID, "id %q matches %d tasks; use more characters", candidate, matches).
			WithDetails(map[string]any{"matches": matches})
	}
}

package core

import (
	"strings"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// ParseQuickAdd turns one line of free text into a NewTask. It honours a
// leading "<bucket>:" prefix naming a known bucket, the first valid
// "due:YYYY-MM-DD" token and the first valid "p:<priority>" token. It
// reports false when no title remains.
func ParseQuickAdd(text string, buckets []models.Bucket) (NewTask, bool) {
	rest := strings.TrimSpace(text)
	var in NewTask

	lower := strings.ToLower(rest)
	for _, b := range buckets {
		prefix := strings.ToLower(b.Name) + ":"
		if strings.HasPrefix(lower, prefix) {
			in.Bucket = b.Name
			rest = strings.TrimSpace(rest[len(prefix):])
			break
		}
	}

	var words []string
	for _, tok := range strings.Fields(rest) {
		if in.DueDate == nil {
			if v, ok := strings.CutPrefix(tok, "due:"); ok {
				if d, err := models.ParseDate(v); err == nil {
					in.DueDate = &d
					continue
				}
			}
		}
		if in.Priority == nil {
			if v, ok := strings.CutPrefix(tok, "p:"); ok {
				if p, ok := models.ParsePriority(v); ok {
					in.Priority = &p
					continue
				}
			}
		}
		words = append(words, tok)
	}
	in.Title = strings.Join(words, " ")
	return in, in.Title != ""
}

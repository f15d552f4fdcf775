package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// ApplyInboxEvent feeds a background event through tm like any other
// recorded mutation. For a create it returns the new task id. For a retract
// it returns the deleted id; a task that is already gone yields a NotFound
// error so the caller can drop its mapping.
func ApplyInboxEvent(tm TaskManager, ev models.InboxEvent) (uuid.UUID, error) {
	switch ev.Kind {
	case models.InboxCreate:
		return applyInboxCreate(tm, ev)
	case models.InboxRetract:
		if ev.TaskID == uuid.Nil {
			return uuid.Nil, newError(KindValidation, "retract for %q has no task id", ev.ExternalRef)
		}
		var res DeleteResult
		_, err := tm.Exec("inbox retract", func(e *Engine) error {
			var err error
			res, err = e.DeleteTask(ev.TaskID.String())
			return err
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("retracting inbox item %s: %w", ev.ExternalRef, err)
		}
		return res.ID, nil
	}
	return uuid.Nil, newError(KindValidation, "unknown inbox event kind %q", ev.Kind)
}

func applyInboxCreate(tm TaskManager, ev models.InboxEvent) (uuid.UUID, error) {
	title := truncate(ev.Title, MaxTitleLen)
	if title == "" {
		title = "(no subject)"
	}
	in := NewTask{
		Title:       title,
		Description: truncate(ev.Description, MaxDescriptionLen),
	}
	var res EditResult
	_, err := tm.Exec("inbox: "+title, func(e *Engine) error {
		// Unknown hints fall back to defaults rather than failing.
		if b, ok := e.Store().Bucket(ev.BucketHint); ok {
			in.Bucket = b.Name
		}
		if p, ok := models.ParsePriority(ev.PriorityHint); ok {
			in.Priority = &p
		}
		var err error
		res, err = e.AddTask(in)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating task from inbox item %s: %w", ev.ExternalRef, err)
	}
	return res.Task.ID, nil
}

// InboxTitle builds a task title from a message subject and sender.
func InboxTitle(subject, from string) string {
	subject = strings.TrimSpace(subject)
	from = strings.TrimSpace(from)
	if from == "" {
		return subject
	}
	return fmt.Sprintf("%s (from %s)", subject, from)
}

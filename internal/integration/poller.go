package integration

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// RefStore persists the external ref -> task id map.
type RefStore interface {
	Load() (map[string]uuid.UUID, error)
	Save(refs map[string]uuid.UUID) error
}

// PollFailure records an inbox event that could not be applied.
type PollFailure struct {
	Ref   string         `json:"ref"`
	Kind  core.ErrorKind `json:"error_kind"`
	Error string         `json:"error"`
}

// PollResult summarizes one poll. Dropped counts mappings whose task was
// already gone.
type PollResult struct {
	Created   []uuid.UUID   `json:"created"`
	Retracted []uuid.UUID   `json:"retracted"`
	Dropped   int           `json:"dropped"`
	Failed    []PollFailure `json:"failed,omitempty"`
}

// InboxPoller turns inbox messages into tasks. Pending messages that are not
// yet mapped become tasks; mapped messages that vanished or stopped being
// pending have their tasks retracted. Fetching happens outside the task
// manager's lock; each event is applied as its own recorded operation.
type InboxPoller struct {
	tm       core.TaskManager
	sources  core.InboxRegistry
	refs     RefStore
	events   core.EventLogger
	log      *zap.Logger
	interval time.Duration
	debounce time.Duration
	watch    []string

	mu sync.Mutex
}

// PollerOption customizes an InboxPoller.
type PollerOption func(*InboxPoller)

// WithPollInterval sets how often Run polls. Non-positive values are ignored.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *InboxPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger sets the logger.
func WithPollerLogger(l *zap.Logger) PollerOption {
	return func(p *InboxPoller) { p.log = l }
}

// WithPollerEvents sets the event log.
func WithPollerEvents(e core.EventLogger) PollerOption {
	return func(p *InboxPoller) { p.events = e }
}

// WithWatchDirs makes Run poll early when files in dirs change.
func WithWatchDirs(delay time.Duration, dirs ...string) PollerOption {
	return func(p *InboxPoller) {
		p.debounce = delay
		p.watch = append(p.watch, dirs...)
	}
}

// NewInboxPoller creates an InboxPoller.
func NewInboxPoller(tm core.TaskManager, sources core.InboxRegistry, refs RefStore, opts ...PollerOption) *InboxPoller {
	p := &InboxPoller{
		tm:       tm,
		sources:  sources,
		refs:     refs,
		log:      zap.NewNop(),
		interval: time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Poll runs one fetch-and-apply cycle. Concurrent calls are serialized.
func (p *InboxPoller) Poll(ctx context.Context) (PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := PollResult{Created: []uuid.UUID{}, Retracted: []uuid.UUID{}}
	refs, err := p.refs.Load()
	if err != nil {
		return res, fmt.Errorf("loading inbox refs: %w", err)
	}
	items, err := p.sources.FetchAll()
	if err != nil {
		return res, fmt.Errorf("polling inbox: %w", err)
	}

	pending := make(map[string]bool, len(items))
	for _, si := range items {
		if si.Item.Status != models.InboxStatusPending {
			continue
		}
		ref := si.Ref()
		pending[ref] = true
		if _, mapped := refs[ref]; mapped {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		id, err := core.ApplyInboxEvent(p.tm, models.InboxEvent{
			Kind:         models.InboxCreate,
			ExternalRef:  ref,
			Title:        core.InboxTitle(si.Item.Subject, si.Item.From),
			Description:  si.Item.Content,
			BucketHint:   si.Item.Bucket,
			PriorityHint: si.Item.Priority,
		})
		if err != nil {
			res.Failed = append(res.Failed, PollFailure{Ref: ref, Kind: core.KindOf(err), Error: err.Error()})
			continue
		}
		refs[ref] = id
		if err := p.refs.Save(refs); err != nil {
			delete(refs, ref)
			p.rollbackCreate(ref, id)
			return res, fmt.Errorf("saving inbox refs: %w", err)
		}
		res.Created = append(res.Created, id)
		p.logEvent("inbox.created", ref, id)
	}

	stale := make([]string, 0)
	for ref := range refs {
		if !pending[ref] {
			stale = append(stale, ref)
		}
	}
	slices.Sort(stale)
	for _, ref := range stale {
		if ctx.Err() != nil {
			break
		}
		id := refs[ref]
		_, err := core.ApplyInboxEvent(p.tm, models.InboxEvent{
			Kind:        models.InboxRetract,
			ExternalRef: ref,
			TaskID:      id,
		})
		switch {
		case err == nil:
			res.Retracted = append(res.Retracted, id)
			p.logEvent("inbox.retracted", ref, id)
		case core.KindOf(err) == core.KindNotFound:
			res.Dropped++
		default:
			res.Failed = append(res.Failed, PollFailure{Ref: ref, Kind: core.KindOf(err), Error: err.Error()})
			continue
		}
		delete(refs, ref)
		// A failed save leaves the ref on disk; the next poll finds the
		// task gone and drops it.
		if err := p.refs.Save(refs); err != nil {
			return res, fmt.Errorf("saving inbox refs: %w", err)
		}
	}

	p.log.Debug("inbox poll finished",
		zap.Int("created", len(res.Created)),
		zap.Int("retracted", len(res.Retracted)),
		zap.Int("dropped", res.Dropped),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// Run polls immediately, then on every interval tick and on every debounced
// watcher nudge, until ctx is cancelled. Poll errors are logged, not returned.
func (p *InboxPoller) Run(ctx context.Context) error {
	nudges := make(chan struct{}, 1)
	if len(p.watch) > 0 {
		w, err := NewInboxWatcher(p.watch, p.debounce, func() {
			select {
			case nudges <- struct{}{}:
			default:
			}
		})
		if err != nil {
			p.log.Warn("inbox watcher unavailable, polling on interval only", zap.Error(err))
		} else {
			watchCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				w.Run(watchCtx, func(err error) { p.log.Warn("inbox watcher", zap.Error(err)) })
			}()
			defer func() {
				cancel()
				_ = w.Close()
				<-done
			}()
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pollAndLog(ctx)
		case <-nudges:
			p.pollAndLog(ctx)
		}
	}
}

func (p *InboxPoller) pollAndLog(ctx context.Context) {
	res, err := p.Poll(ctx)
	if err != nil {
		p.log.Warn("inbox poll failed", zap.Error(err))
		return
	}
	for _, f := range res.Failed {
		p.log.Warn("inbox event failed", zap.String("ref", f.Ref), zap.String("error", f.Error))
	}
	if len(res.Created)+len(res.Retracted) > 0 {
		p.log.Info("inbox synced", zap.Int("created", len(res.Created)), zap.Int("retracted", len(res.Retracted)))
	}
}

// rollbackCreate removes a task whose ref could not be persisted, so the
// next poll does not create it a second time.
func (p *InboxPoller) rollbackCreate(ref string, id uuid.UUID) {
	_, err := core.ApplyInboxEvent(p.tm, models.InboxEvent{
		Kind:        models.InboxRetract,
		ExternalRef: ref,
		TaskID:      id,
	})
	if err != nil {
		p.log.Error("rolling back inbox task", zap.String("ref", ref), zap.String("task_id", id.String()), zap.Error(err))
	}
}

func (p *InboxPoller) logEvent(eventType, ref string, id uuid.UUID) {
	if p.events == nil {
		return
	}
	if err := p.events.LogEvent(eventType, map[string]any{"ref": ref, "task_id": id.String()}); err != nil {
		p.log.Warn("writing event log", zap.String("event", eventType), zap.Error(err))
	}
}

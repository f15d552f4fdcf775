package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTurnLabel labels the snapshot taken for an agent turn.
const DefaultTurnLabel = "ai triage"

// ToolOutcome reports one tool call within a turn.
type ToolOutcome struct {
	Index     int          `json:"index"`
	Kind      ToolKind     `json:"kind"`
	OK        bool         `json:"ok"`
	TaskIDs   []uuid.UUID  `json:"task_ids,omitempty"`
	Message   string       `json:"message,omitempty"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
	Bulk      *BulkResult  `json:"bulk,omitempty"`
	Hints     []ParentHint `json:"parent_hints,omitempty"`
}

func failedOutcome(i int, kind ToolKind, err error) ToolOutcome {
	return ToolOutcome{Index: i, Kind: kind, ErrorKind: KindOf(err), Error: err.Error()}
}

// TurnResult is the aggregated result of one agent turn.
type TurnResult struct {
	Label    string        `json:"label"`
	Outcomes []ToolOutcome `json:"outcomes"`
	// Changed is true when the turn modified the board and so recorded
	// exactly one snapshot.
	Changed   bool `json:"changed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

// Dispatcher runs agent tool calls against a TaskManager. All calls of one
// turn share a single recorded operation and therefore a single snapshot.
type Dispatcher struct {
	tm     TaskManager
	events EventLogger
	log    *zap.Logger
}

// NewDispatcher creates a Dispatcher. events and log may be nil.
func NewDispatcher(tm TaskManager, events EventLogger, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{tm: tm, events: events, log: log}
}

// RunTurn decodes and executes calls in order. A failing call never stops
// later calls. When ctx is cancelled, the calls not yet started are
// reported as cancelled and not applied.
func (d *Dispatcher) RunTurn(ctx context.Context, label string, calls []ToolCall) (TurnResult, error) {
	reqs := make([]ToolRequest, len(calls))
	parseErrs := make([]error, len(calls))
	for i, c := range calls {
		reqs[i], parseErrs[i] = ParseToolCall(c)
	}
	return d.run(ctx, label, len(calls), func(i int) (ToolKind, ToolRequest, error) {
		return calls[i].Kind, reqs[i], parseErrs[i]
	})
}

// RunRequests executes already decoded requests as one turn.
func (d *Dispatcher) RunRequests(ctx context.Context, label string, reqs []ToolRequest) (TurnResult, error) {
	return d.run(ctx, label, len(reqs), func(i int) (ToolKind, ToolRequest, error) {
		if err := reqs[i].Validate(); err != nil {
			return reqs[i].ToolKind(), nil, err
		}
		return reqs[i].ToolKind(), reqs[i], nil
	})
}

func (d *Dispatcher) run(ctx context.Context, label string, n int, at func(int) (ToolKind, ToolRequest, error)) (TurnResult, error) {
	if label == "" {
		label = DefaultTurnLabel
	}
	res := TurnResult{Label: label, Outcomes: make([]ToolOutcome, 0, n)}

	changed, err := d.tm.Exec(label, func(e *Engine) error {
		for i := range n {
			kind, req, perr := at(i)
			if cerr := ctx.Err(); cerr != nil {
				res.Outcomes = append(res.Outcomes, failedOutcome(i, kind, newError(KindCancelled, "turn cancelled: %v", cerr)))
				continue
			}
			if perr != nil {
				res.Outcomes = append(res.Outcomes, failedOutcome(i, kind, perr))
				continue
			}
			out, err := req.apply(e)
			if err != nil {
				res.Outcomes = append(res.Outcomes, failedOutcome(i, kind, err))
				continue
			}
			out.Index, out.Kind, out.OK = i, kind, true
			res.Outcomes = append(res.Outcomes, out)
		}
		return nil
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("running %s turn: %w", label, err)
	}
	res.Changed = changed
	for _, o := range res.Outcomes {
		if o.OK {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	d.log.Info("tool turn finished",
		zap.String("label", label),
		zap.Int("calls", n),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Bool("changed", changed))
	if d.events != nil {
		if err := d.events.LogEvent("ai.turn", map[string]any{
			"label":     label,
			"calls":     n,
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
			"changed":   changed,
		}); err != nil {
			d.log.Warn("writing event log", zap.Error(err))
		}
	}
	return res, nil
}

func (a *CreateTaskArgs) apply(e *Engine) (ToolOutcome, error) {
	in, err := a.toNewTask()
	if err != nil {
		return ToolOutcome{}, err
	}
	r, err := e.AddTask(in)
	if err != nil {
		return ToolOutcome{}, err
	}
	ids := []uuid.UUID{r.Task.ID}
	for _, s := range r.Subtasks {
		ids = append(ids, s.ID)
	}
	return ToolOutcome{
		TaskIDs: ids,
		Message: fmt.Sprintf("created %s %q with %d subtasks", r.Task.ShortID(), r.Task.Title, len(r.Subtasks)),
		Hints:   r.Hints,
	}, nil
}

func (a *UpdateTaskArgs) apply(e *Engine) (ToolOutcome, error) {
	upd, err := a.toUpdate()
	if err != nil {
		return ToolOutcome{}, err
	}
	r, err := e.EditTask(a.TargetID, upd)
	if err != nil {
		return ToolOutcome{}, err
	}
	msg := fmt.Sprintf("updated %s", r.Task.ShortID())
	if !r.Changed {
		msg = fmt.Sprintf("%s already up to date", r.Task.ShortID())
	}
	ids := []uuid.UUID{r.Task.ID}
	for _, s := range r.Subtasks {
		ids = append(ids, s.ID)
	}
	return ToolOutcome{TaskIDs: ids, Message: msg, Hints: r.Hints}, nil
}

func (a *DeleteTaskArgs) apply(e *Engine) (ToolOutcome, error) {
	r, err := e.DeleteTask(a.TargetID)
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{
		TaskIDs: r.Removed,
		Message: fmt.Sprintf("deleted %q and %d subtasks", r.Title, r.Count()-1),
		Hints:   r.Hints,
	}, nil
}

func (a *DecomposeTaskArgs) apply(e *Engine) (ToolOutcome, error) {
	specs, err := toSubtaskSpecs(a.Subtasks)
	if err != nil {
		return ToolOutcome{}, err
	}
	r, err := e.DecomposeTask(a.TargetID, specs)
	if err != nil {
		return ToolOutcome{}, err
	}
	ids := make([]uuid.UUID, 0, len(r.Subtasks))
	for _, s := range r.Subtasks {
		ids = append(ids, s.ID)
	}
	return ToolOutcome{
		TaskIDs: ids,
		Message: fmt.Sprintf("split %s into %d subtasks", r.Task.ShortID(), len(r.Subtasks)),
		Hints:   r.Hints,
	}, nil
}

func (a *BulkUpdateTasksArgs) apply(e *Engine) (ToolOutcome, error) {
	sel, upd, err := a.toSelectorUpdate()
	if err != nil {
		return ToolOutcome{}, err
	}
	r, err := e.BulkUpdate(sel, upd)
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{
		TaskIDs: r.Changed,
		Message: fmt.Sprintf("updated %d tasks, %d unchanged, %d failed", len(r.Changed), len(r.Unchanged), len(r.Failed)),
		Bulk:    &r,
		Hints:   r.Hints,
	}, nil
}

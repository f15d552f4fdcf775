// Package internal provides the App struct that wires all components of
// aipm together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/valter-silva-au/aipm/internal/cli"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/integration"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/internal/storage"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// inboxWatchDelay debounces bursts of inbox file events into one poll.
const inboxWatchDelay = 500 * time.Millisecond

// App holds all service dependencies of aipm.
type App struct {
	DataDir string
	Config  *models.GlobalConfig
	Logger  *zap.Logger

	// Storage layer
	BoardMgr    storage.BoardManager
	SnapshotMgr storage.SnapshotManager
	InboxRefs   storage.InboxRefManager

	// Core services
	TaskMgr  core.TaskManager
	Dispatch *core.Dispatcher

	// Inbox
	InboxReg    core.InboxRegistry
	FileInbox   cli.InboxArchiver
	InboxPoller *integration.InboxPoller

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components over dataDir using the already
// loaded and validated cfg.
func NewApp(dataDir string, cfg *models.GlobalConfig, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = core.DefaultGlobalConfig(dataDir)
	}
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{DataDir: dataDir, Config: cfg, Logger: log}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	// --- Observability ---
	var err error
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(dataDir, observability.EventsFileName))
	if err != nil {
		// Non-fatal: the board works without an event log.
		log.Warn("event log unavailable", zap.Error(err))
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = app.EventLog
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	app.AlertEngine = observability.NewAlertEngine(observability.ThresholdsFromConfig(cfg.Alerts))
	if cfg.Alerts.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Alerts.SlackWebhook)
	}

	// --- Storage layer ---
	app.BoardMgr = storage.NewBoardManager(dataDir, log.Named("storage"))
	app.SnapshotMgr = storage.NewSnapshotManager(dataDir, log.Named("storage"))
	app.InboxRefs = storage.NewInboxRefManager(dataDir)

	// --- Core services ---
	app.TaskMgr, err = core.NewTaskManager(
		&boardStoreAdapter{mgr: app.BoardMgr},
		app.SnapshotMgr,
		events,
		core.WithLogger(log.Named("core")),
		core.WithMaxSnapshots(cfg.History.MaxSnapshots),
		core.WithEngineOptions(core.WithParentSync(cfg.ParentSync)),
	)
	if err != nil {
		app.closeEventLog()
		return nil, fmt.Errorf("opening board in %s: %w", dataDir, err)
	}
	app.Dispatch = core.NewDispatcher(app.TaskMgr, events, log.Named("dispatch"))

	// --- Inbox ---
	app.InboxReg = core.NewInboxRegistry()
	inboxDir := cfg.Inbox.Dir
	if inboxDir == "" {
		inboxDir = filepath.Join(dataDir, "inbox")
	}
	fileInbox, err := integration.NewFileInboxSource(integration.FileInboxConfig{
		Name: "file",
		Dir:  inboxDir,
	})
	if err != nil {
		app.closeEventLog()
		return nil, fmt.Errorf("opening inbox: %w", err)
	}
	if err := app.InboxReg.Register(fileInbox); err != nil {
		app.closeEventLog()
		return nil, fmt.Errorf("registering inbox: %w", err)
	}
	app.FileInbox = fileInbox

	pollerOpts := []integration.PollerOption{
		integration.WithPollInterval(cfg.Inbox.PollInterval),
		integration.WithPollerLogger(log.Named("inbox")),
		integration.WithWatchDirs(inboxWatchDelay, fileInbox.Dir()),
	}
	if events != nil {
		pollerOpts = append(pollerOpts, integration.WithPollerEvents(events))
	}
	app.InboxPoller = integration.NewInboxPoller(app.TaskMgr, app.InboxReg, app.InboxRefs, pollerOpts...)

	// --- Wire CLI package-level variables ---
	cli.TaskMgr = app.TaskMgr
	cli.Dispatch = app.Dispatch
	cli.InboxPoller = app.InboxPoller
	cli.InboxArchive = app.FileInbox

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	log.Debug("app initialized",
		zap.String("data_dir", dataDir),
		zap.String("parent_sync", string(cfg.ParentSync)),
		zap.Bool("event_log", app.EventLog != nil))
	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

func (a *App) closeEventLog() {
	if err := a.Close(); err != nil {
		a.Logger.Warn("closing event log", zap.Error(err))
	}
}

// --- Adapters ---

// boardStoreAdapter adapts storage.BoardManager to core.BoardStore.
type boardStoreAdapter struct {
	mgr storage.BoardManager
}

func (a *boardStoreAdapter) Load() (core.State, error) {
	b, err := a.mgr.Load()
	if err != nil {
		return core.State{}, err
	}
	return core.StateFromTasks(b.Tasks, b.Buckets), nil
}

func (a *boardStoreAdapter) Save(s core.State) error {
	return a.mgr.Save(boardFromState(s))
}

// boardFromState flattens s into creation order so that saves are
// deterministic.
func boardFromState(s core.State) storage.Board {
	tasks := make([]models.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		tasks = append(tasks, t)
	}
	slices.SortFunc(tasks, func(x, y models.Task) int {
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID.String(), y.ID.String())
	})
	return storage.Board{Tasks: tasks, Buckets: slices.Clone(s.Buckets)}
}

package cli

import (
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/integration"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// Process settings, set by the root command before any subcommand runs.
var (
	DataDir string
	Config  *models.GlobalConfig
	Logger  = zap.NewNop()
)

// Core services, set during app initialization in app.go.
var (
	TaskMgr  core.TaskManager
	Dispatch *core.Dispatcher
)

// InboxArchiver archives a processed inbox item by id.
type InboxArchiver interface {
	Archive(itemID string) error
}

// Inbox services. inbox.enabled only decides whether mcp serve polls in
// the background; the inbox commands work either way.
var (
	InboxPoller  *integration.InboxPoller
	InboxArchive InboxArchiver
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

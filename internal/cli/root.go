package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Initializer wires the services behind the package-level variables once
// the data directory, config and logger are known. The returned closer is
// released when Execute returns.
type Initializer func(dataDir string, cfg *models.GlobalConfig, log *zap.Logger) (io.Closer, error)

var (
	initializer Initializer
	closer      io.Closer
)

// SetInitializer registers the function that wires services before any
// command that needs them runs.
func SetInitializer(fn Initializer) {
	initializer = fn
}

// skipInit marks commands that run without loading the board.
const skipInit = "aipm/skip-init"

var (
	dataDirFlag string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "aipm",
	Short: "aipm - AI-assisted personal task board",
	Long: `aipm keeps a personal task board of buckets, tasks and sub-tasks on disk.

Every change is recorded as an undoable snapshot. An AI agent can triage the
board through the same operations, either as a batch of tool calls
(aipm ai apply) or over MCP (aipm mcp serve), and an inbox poller can turn
incoming messages into tasks.

All commands print JSON on stdout. Failures print {"error": {...}} on stderr
and exit with status 1.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		for c := cmd; c != nil; c = c.Parent() {
			if _, ok := c.Annotations[skipInit]; ok {
				return nil
			}
		}
		return initialize()
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipInit: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, map[string]string{
			"version": appVersion,
			"commit":  appCommit,
			"built":   appDate,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Board data directory (default $AIPM_DATA_DIR or the platform data dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &core.Error{Kind: core.KindValidation, Message: err.Error()}
	})
	rootCmd.AddCommand(versionCmd)
}

// initialize resolves the data directory, loads config, builds the logger
// and runs the registered Initializer.
func initialize() error {
	dir := dataDirFlag
	if dir == "" {
		resolved, err := core.ResolveDataDir()
		if err != nil {
			return err
		}
		dir = resolved
	}

	cfgMgr := core.NewConfigurationManager(dir)
	cfg, err := cfgMgr.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfgMgr.ValidateConfig(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Level, verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	DataDir = dir
	Config = cfg
	Logger = log
	log.Debug("initializing", zap.String("data_dir", dir))

	if initializer != nil {
		c, err := initializer(dir, cfg, log)
		if err != nil {
			return fmt.Errorf("initializing aipm: %w", err)
		}
		closer = c
	}
	return nil
}

// newLogger builds a zap production logger. verbose forces debug level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// errorBody is the JSON shape of a failure on stderr.
type errorBody struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w io.Writer, err error) {
	body := errorBody{Kind: core.KindOf(err), Message: err.Error()}
	var ce *core.Error
	if errors.As(err, &ce) {
		body.Details = ce.Details
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]errorBody{"error": body})
}

// Execute runs the root command. Errors are also written to stderr as JSON.
func Execute() error {
	err := rootCmd.Execute()
	if closer != nil {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing aipm: %w", cerr)
		}
		closer = nil
	}
	_ = Logger.Sync()
	if err != nil {
		writeError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

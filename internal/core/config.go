// Package core contains the board logic for aipm: id resolution, the
// in-memory store, the mutation engine, snapshot history, agent tool
// dispatch and configuration.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// ConfigFileName is the config file read from the data directory.
const ConfigFileName = "config"

// EnvPrefix prefixes environment overrides, e.g. AIPM_PARENT_SYNC.
const EnvPrefix = "AIPM"

// ConfigurationManager loads and validates config.yaml.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	dataDir string
}

// NewConfigurationManager creates a ConfigurationManager reading
// config.yaml from dataDir.
func NewConfigurationManager(dataDir string) ConfigurationManager {
	return &viperConfigManager{dataDir: dataDir}
}

// DefaultGlobalConfig returns the configuration used when no file exists.
func DefaultGlobalConfig(dataDir string) *models.GlobalConfig {
	return &models.GlobalConfig{
		DataDir:    dataDir,
		OwnerName:  "John",
		ParentSync: models.ParentSyncHint,
		History:    models.HistoryConfig{MaxSnapshots: models.MaxSnapshots},
		Inbox: models.InboxConfig{
			Enabled:      false,
			Dir:          filepath.Join(dataDir, "inbox"),
			PollInterval: 60 * time.Second,
		},
		Log:    models.LogConfig{Level: "info"},
		Board:  models.BoardConfig{ShowDone: false},
		Alerts: models.AlertsConfig{StaleDays: 14, MaxBacklog: 25},
	}
}

// LoadGlobalConfig reads config.yaml. A missing file yields defaults;
// AIPM_* environment variables override file values.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig(cm.dataDir)

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.dataDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("owner_name", cfg.OwnerName)
	v.SetDefault("parent_sync", string(cfg.ParentSync))
	v.SetDefault("history.max_snapshots", cfg.History.MaxSnapshots)
	v.SetDefault("inbox.enabled", cfg.Inbox.Enabled)
	v.SetDefault("inbox.dir", cfg.Inbox.Dir)
	v.SetDefault("inbox.poll_interval", cfg.Inbox.PollInterval)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("board.show_done", cfg.Board.ShowDone)
	v.SetDefault("alerts.stale_days", cfg.Alerts.StaleDays)
	v.SetDefault("alerts.max_backlog", cfg.Alerts.MaxBacklog)
	v.SetDefault("alerts.slack_webhook", cfg.Alerts.SlackWebhook)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg.OwnerName = v.GetString("owner_name")
	cfg.ParentSync = models.ParentSync(strings.ToLower(v.GetString("parent_sync")))
	cfg.History.MaxSnapshots = v.GetInt("history.max_snapshots")
	cfg.Inbox.Enabled = v.GetBool("inbox.enabled")
	cfg.Inbox.Dir = v.GetString("inbox.dir")
	cfg.Inbox.PollInterval = v.GetDuration("inbox.poll_interval")
	cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	cfg.Board.ShowDone = v.GetBool("board.show_done")
	cfg.Alerts.StaleDays = v.GetInt("alerts.stale_days")
	cfg.Alerts.MaxBacklog = v.GetInt("alerts.max_backlog")
	cfg.Alerts.SlackWebhook = v.GetString("alerts.slack_webhook")

	if cfg.Inbox.Dir != "" && !filepath.IsAbs(cfg.Inbox.Dir) {
		cfg.Inbox.Dir = filepath.Join(cm.dataDir, cfg.Inbox.Dir)
	}
	return cfg, nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ValidateConfig reports every invalid value at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	switch cfg.ParentSync {
	case models.ParentSyncHint, models.ParentSyncAuto:
	default:
		errs = append(errs, fmt.Sprintf("parent_sync %q is invalid, must be one of: hint, auto", cfg.ParentSync))
	}

	if cfg.History.MaxSnapshots < 1 || cfg.History.MaxSnapshots > models.MaxSnapshots {
		errs = append(errs, fmt.Sprintf(
			"history.max_snapshots %d is invalid, must be between 1 and %d",
			cfg.History.MaxSnapshots, models.MaxSnapshots,
		))
	}

	if cfg.Inbox.Enabled && cfg.Inbox.Dir == "" {
		errs = append(errs, "inbox.dir must not be empty when the inbox is enabled")
	}

	if cfg.Inbox.PollInterval < time.Second {
		errs = append(errs, fmt.Sprintf("inbox.poll_interval %s is too short, must be at least 1s", cfg.Inbox.PollInterval))
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}

	if cfg.Alerts.StaleDays < 1 {
		errs = append(errs, fmt.Sprintf("alerts.stale_days %d is invalid, must be at least 1", cfg.Alerts.StaleDays))
	}
	if cfg.Alerts.MaxBacklog < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_backlog %d is invalid, must not be negative", cfg.Alerts.MaxBacklog))
	}

	if len(errs) > 0 {
		return newError(KindValidation, "config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DataDirEnv names the environment variable that overrides the data
// directory.
const DataDirEnv = "AIPM_DATA_DIR"

// ResolveDataDir picks the data directory: $AIPM_DATA_DIR, then
// $XDG_DATA_HOME/aipm, then ~/Library/Application Support/aipm when it
// already exists, then ~/.local/share/aipm.
func ResolveDataDir() (string, error) {
	return resolveDataDir(os.Getenv, os.UserHomeDir)
}

func resolveDataDir(getenv func(string) string, home func() (string, error)) (string, error) {
	if dir := getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "aipm"), nil
	}
	h, err := home()
	if err != nil {
		return "", fmt.Errorf("resolving data directory: %w", err)
	}
	mac := filepath.Join(h, "Library", "Application Support", "aipm")
	if info, err := os.Stat(mac); err == nil && info.IsDir() {
		return mac, nil
	}
	return filepath.Join(h, ".local", "share", "aipm"), nil
}

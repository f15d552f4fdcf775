package models

import "time"

// ParentSync selects how a parent's progress follows its children.
type ParentSync string

const (
	// ParentSyncHint reports the aggregate without writing the parent.
	ParentSyncHint ParentSync = "hint"
	// ParentSyncAuto writes the aggregate to the parent and its ancestors.
	ParentSyncAuto ParentSync = "auto"
)

// MaxSnapshots is the hard ceiling on undo history.
const MaxSnapshots = 50

// HistoryConfig controls undo history retention.
type HistoryConfig struct {
	MaxSnapshots int `yaml:"max_snapshots" mapstructure:"max_snapshots"`
}

// InboxConfig controls the background inbox poller.
type InboxConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir          string        `yaml:"dir" mapstructure:"dir"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// BoardConfig controls the terminal board.
type BoardConfig struct {
	ShowDone bool `yaml:"show_done" mapstructure:"show_done"`
}

// AlertsConfig sets the thresholds for board alerts. An empty
// SlackWebhook disables notifications.
type AlertsConfig struct {
	StaleDays    int    `yaml:"stale_days" mapstructure:"stale_days"`
	MaxBacklog   int    `yaml:"max_backlog" mapstructure:"max_backlog"`
	SlackWebhook string `yaml:"slack_webhook" mapstructure:"slack_webhook"`
}

// GlobalConfig holds settings read from <data_dir>/config.yaml via Viper.
type GlobalConfig struct {
	DataDir    string        `yaml:"data_dir" mapstructure:"data_dir"`
	OwnerName  string        `yaml:"owner_name" mapstructure:"owner_name"`
	ParentSync ParentSync    `yaml:"parent_sync" mapstructure:"parent_sync"`
	History    HistoryConfig `yaml:"history" mapstructure:"history"`
	Inbox      InboxConfig   `yaml:"inbox" mapstructure:"inbox"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
	Board      BoardConfig   `yaml:"board" mapstructure:"board"`
	Alerts     AlertsConfig  `yaml:"alerts" mapstructure:"alerts"`
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
)

var alertsNotify bool

// alertsOutput is the output of aipm alerts.
type alertsOutput struct {
	Alerts   []observability.Alert `json:"alerts"`
	Notified bool                  `json:"notified"`
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show overdue, stale and backlog alerts for the board",
	Long: `Evaluate alert conditions against the current board.

Alerts fire for open tasks past their due date, tasks in progress with no
change for alerts.stale_days, and a backlog larger than alerts.max_backlog.
With --notify the alerts are also posted to alerts.slack_webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized")
		}
		if alertsNotify && Notifier == nil {
			return validationErr("--notify needs alerts.slack_webhook in config.yaml")
		}

		tasks, err := TaskMgr.ListTasks(core.TaskFilter{})
		if err != nil {
			return err
		}
		out := alertsOutput{Alerts: AlertEngine.Evaluate(tasks)}
		if out.Alerts == nil {
			out.Alerts = []observability.Alert{}
		}

		if alertsNotify && len(out.Alerts) > 0 {
			if err := Notifier.Notify(commandContext(cmd), out.Alerts); err != nil {
				return fmt.Errorf("sending alerts: %w", err)
			}
			out.Notified = true
		}
		return printJSON(cmd, out)
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post the alerts to the configured Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/observability"
)

var statsSince string

// statsOutput is the output of aipm stats.
type statsOutput struct {
	Since   time.Time              `json:"since"`
	Metrics *observability.Metrics `json:"metrics"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show board activity derived from the event log",
	Long: `Summarize board activity recorded in the event log: tasks created,
completed and deleted, progress changes, undo use, agent turns and inbox
traffic.`,
	Example: `  aipm stats
  aipm stats --since 30d
  aipm stats --since 12h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log unavailable)")
		}
		since, err := observability.ParseSince(statsSince, time.Now())
		if err != nil {
			return validationErr("--since: %v", err)
		}
		m, err := MetricsCalc.Calculate(since)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}
		return printJSON(cmd, statsOutput{Since: since, Metrics: m})
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsSince, "since", "7d", "Time window (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(statsCmd)
}

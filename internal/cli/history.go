package cli

import (
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the most recent recorded change",
	Long: `Restore the board to the state before the most recent recorded change
and print that change's label. Repeating undo walks further back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		label, err := TaskMgr.Undo()
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"undone":    label,
			"remaining": len(TaskMgr.History()),
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List undoable changes, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		entries := TaskMgr.History()
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		return printJSON(cmd, entries)
	},
}

func init() {
	rootCmd.AddCommand(undoCmd, historyCmd)
}

package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
)

var quickAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Quick-add a task from one line of text",
	Long: `Create a task from free text. The text may start with a bucket name
followed by a colon and may contain due:YYYY-MM-DD and p:<priority> tokens.`,
	Example: `  aipm add "Admin: file quarterly taxes due:2026-04-15 p:high"
  aipm add "call the plumber p:crit"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		in, ok := core.ParseQuickAdd(strings.Join(args, " "), TaskMgr.Buckets())
		if !ok {
			return validationErr("quick add needs a title")
		}
		res, err := TaskMgr.AddTask(in)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(quickAddCmd)
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script for aipm",
	Long: `Print the completion script for bash, zsh, fish or powershell.

  eval "$(aipm completion bash)"
  aipm completion fish | source`,
	ValidArgs:   []string{"bash", "zsh", "fish", "powershell"},
	Args:        cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Annotations: map[string]string{skipInit: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(w, true)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(w)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

// completeBucketNames offers existing bucket names for the first argument.
func completeBucketNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || TaskMgr == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, b := range TaskMgr.Buckets() {
		if strings.HasPrefix(strings.ToLower(b.Name), strings.ToLower(toComplete)) {
			names = append(names, b.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)

	for _, c := range []*cobra.Command{bucketRenameCmd, bucketDescribeCmd, bucketDeleteCmd} {
		c.ValidArgsFunction = completeBucketNames
	}
}

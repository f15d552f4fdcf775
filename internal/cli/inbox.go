package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Turn inbox messages into tasks",
	Long: `Commands for the inbox poller.

Pending messages in the inbox directory become tasks. When a message is
archived or removed, the task created for it is retracted.`,
}

var inboxPollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the inbox once and print what changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if InboxPoller == nil {
			return fmt.Errorf("inbox poller not initialized")
		}
		res, err := InboxPoller.Poll(commandContext(cmd))
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var inboxWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep polling the inbox until interrupted",
	Long: `Poll the inbox on the configured interval, and early whenever a file in
the inbox directory changes. Stops on Ctrl+C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if InboxPoller == nil {
			return fmt.Errorf("inbox poller not initialized")
		}
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		Logger.Info("watching inbox", zap.String("data_dir", DataDir))
		return InboxPoller.Run(ctx)
	},
}

var inboxArchiveCmd = &cobra.Command{
	Use:   "archive <message-id>",
	Short: "Archive an inbox message",
	Long: `Mark an inbox message as archived. The next poll retracts the task that
was created for it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if InboxArchive == nil {
			return fmt.Errorf("inbox not initialized")
		}
		if err := InboxArchive.Archive(args[0]); err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"archived": args[0]})
	},
}

func init() {
	inboxCmd.AddCommand(inboxPollCmd, inboxWatchCmd, inboxArchiveCmd)
	rootCmd.AddCommand(inboxCmd)
}

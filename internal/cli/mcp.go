package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	aipmmcp "github.com/valter-silva-au/aipm/internal/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	mcpWithInbox bool
	mcpLabel     string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the aipm MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aipm MCP server on stdio",
	Long: `Start the aipm MCP server on stdio transport.

The server exposes the board as MCP tools that AI assistants can call:
create_task, update_task, delete_task, decompose_task, bulk_update_tasks,
list_tasks, get_task, list_buckets, undo, history, get_metrics and
get_alerts. Each mutating call is recorded as its own undoable turn.

With --with-inbox (or inbox.enabled in config.yaml) the inbox poller runs
alongside the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil || Dispatch == nil {
			return fmt.Errorf("task manager not initialized")
		}

		srv := aipmmcp.NewServer(TaskMgr, Dispatch, MetricsCalc, AlertEngine, appVersion,
			aipmmcp.WithTurnLabel(mcpLabel),
			aipmmcp.WithServerLogger(Logger),
		)

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		withInbox := mcpWithInbox || (Config != nil && Config.Inbox.Enabled)
		return serve(ctx, srv.Run, withInbox)
	},
}

// serve runs the MCP server and, when withInbox is set, the inbox poller
// until either fails or ctx is cancelled. The server ending (stdin closed)
// stops the poller.
func serve(ctx context.Context, runServer func(context.Context) error, withInbox bool) error {
	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopAll := context.WithCancel(gctx)
	defer stopAll()

	g.Go(func() error {
		defer stopAll()
		if err := runServer(serverCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	})

	if withInbox {
		if InboxPoller == nil {
			Logger.Warn("inbox requested but the poller is not initialized")
		} else {
			g.Go(func() error {
				Logger.Info("inbox poller started alongside MCP server")
				return InboxPoller.Run(serverCtx)
			})
		}
	}

	if err := g.Wait(); err != nil {
		Logger.Error("mcp serve stopped", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	mcpServeCmd.Flags().BoolVar(&mcpWithInbox, "with-inbox", false, "Run the inbox poller alongside the server")
	mcpServeCmd.Flags().StringVar(&mcpLabel, "label", core.DefaultTurnLabel, "History label for tool calls")

	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

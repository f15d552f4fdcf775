package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
)

var (
	aiFile  string
	aiLabel string
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Apply agent tool calls to the board",
}

var aiApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a batch of agent tool calls as one undoable turn",
	Long: `Read a JSON array of tool calls and apply them in order as a single turn.

Each element is {"kind": "<tool>", "arguments": {...}} where kind is one of
create_task, update_task, delete_task, decompose_task or bulk_update_tasks.
A failing call is reported and does not stop the calls after it. The whole
turn is recorded as one snapshot, so a single aipm undo reverts it.`,
	Example: `  aipm ai apply --file turn.json
  echo '[{"kind":"create_task","arguments":{"title":"Renew passport"}}]' | aipm ai apply`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatch == nil {
			return fmt.Errorf("tool dispatcher not initialized")
		}
		data, err := readTurnInput(cmd)
		if err != nil {
			return err
		}
		calls, err := decodeToolCalls(data)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		res, err := Dispatch.RunTurn(ctx, aiLabel, calls)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func readTurnInput(cmd *cobra.Command) ([]byte, error) {
	if aiFile == "" || aiFile == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading tool calls from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(aiFile)
	if err != nil {
		return nil, fmt.Errorf("reading tool calls from %s: %w", aiFile, err)
	}
	return data, nil
}

func decodeToolCalls(data []byte) ([]core.ToolCall, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, validationErr("no tool calls given: expected a JSON array")
	}
	var calls []core.ToolCall
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, validationErr("tool calls are not a JSON array of {kind, arguments}: %v", err)
	}
	return calls, nil
}

func init() {
	aiApplyCmd.Flags().StringVarP(&aiFile, "file", "f", "-", `File holding the tool calls ("-" for stdin)`)
	aiApplyCmd.Flags().StringVarP(&aiLabel, "label", "l", core.DefaultTurnLabel, "History label for the turn")

	aiCmd.AddCommand(aiApplyCmd)
	rootCmd.AddCommand(aiCmd)
}

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// memBoard implements core.BoardStore in memory.
type memBoard struct {
	state core.State
}

func (b *memBoard) Load() (core.State, error) { return b.state.Clone(), nil }

func (b *memBoard) Save(s core.State) error {
	b.state = s.Clone()
	return nil
}

// withTaskManager installs a fresh in-memory board and dispatcher as the
// package services and restores the previous ones on cleanup.
func withTaskManager(t *testing.T) core.TaskManager {
	t.Helper()
	tm, err := core.NewTaskManager(&memBoard{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	origTM, origDispatch := TaskMgr, Dispatch
	t.Cleanup(func() {
		TaskMgr = origTM
		Dispatch = origDispatch
	})
	TaskMgr = tm
	Dispatch = core.NewDispatcher(tm, nil, nil)
	return tm
}

// resetFlags returns every flag of cmd and its children to its default, so
// that values from one run do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes aipm with args against a temporary data directory and
// returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, "", args...)
}

func runCLIWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--data-dir", t.TempDir()}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute()
	return stdout.String(), stderr.String(), err
}

// mustRun runs aipm and fails the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("aipm %s: unexpected error: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func decodeJSON[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, data)
	}
	return v
}

// errorKindOf decodes the JSON error written to stderr.
func errorKindOf(t *testing.T, stderr string) core.ErrorKind {
	t.Helper()
	body := decodeJSON[map[string]errorBody](t, stderr)
	e, ok := body["error"]
	if !ok {
		t.Fatalf("stderr has no error object: %s", stderr)
	}
	return e.Kind
}

// addTask creates a task through the CLI and returns it.
func addTask(t *testing.T, title string, flags ...string) models.Task {
	t.Helper()
	out := mustRun(t, append([]string{"task", "add", title}, flags...)...)
	return decodeJSON[core.EditResult](t, out).Task
}

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "List, create and change tasks",
	Long: `Commands for working with tasks on the board.

Tasks are addressed by any unique prefix of their id (at least 4 hex
characters). Every change is recorded and can be reverted with aipm undo.`,
}

// --- task list ---

var (
	listBucket   string
	listProgress string
	listPriority string
	listParent   string
	listRoots    bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		progress, err := parseProgressFlag("progress", listProgress)
		if err != nil {
			return err
		}
		priority, err := parsePriorityFlag("priority", listPriority)
		if err != nil {
			return err
		}

		tasks, err := TaskMgr.ListTasks(core.TaskFilter{
			Bucket:    listBucket,
			Progress:  progress,
			Priority:  priority,
			Parent:    listParent,
			RootsOnly: listRoots,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, newTaskList(tasks, hintsFor(tasks)))
	},
}

// hintsFor keeps the parent hints for parents present in tasks.
func hintsFor(tasks []models.Task) []core.ParentHint {
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID.String()] = true
	}
	var out []core.ParentHint
	for _, h := range TaskMgr.ParentHints() {
		if present[h.ParentID.String()] {
			out = append(out, h)
		}
	}
	return out
}

// --- task show ---

var showRender bool

// taskDetail is the output of task show.
type taskDetail struct {
	Task     models.Task      `json:"task"`
	Subtasks []models.Task    `json:"subtasks"`
	Hint     *core.ParentHint `json:"parent_hint,omitempty"`
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task and its direct subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		t, err := TaskMgr.GetTask(args[0])
		if err != nil {
			return err
		}
		children, err := TaskMgr.ListTasks(core.TaskFilter{Parent: t.ID.String()})
		if err != nil {
			return err
		}
		detail := taskDetail{Task: t, Subtasks: children}
		if detail.Subtasks == nil {
			detail.Subtasks = []models.Task{}
		}
		for _, h := range TaskMgr.ParentHints() {
			if h.ParentID == t.ID {
				detail.Hint = &h
				break
			}
		}

		if showRender {
			out, err := renderTaskMarkdown(detail)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		}
		return printJSON(cmd, detail)
	},
}

// taskMarkdown formats a task as a markdown document.
func taskMarkdown(d taskDetail) string {
	var b strings.Builder
	t := d.Task
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "- **ID:** `%s`\n", t.ShortID())
	fmt.Fprintf(&b, "- **Bucket:** %s\n", t.Bucket)
	fmt.Fprintf(&b, "- **Progress:** %s\n", t.Progress.Title())
	fmt.Fprintf(&b, "- **Priority:** %s\n", t.Priority.Title())
	if t.DueDate != nil {
		fmt.Fprintf(&b, "- **Due:** %s\n", t.DueDate)
	}
	if d.Hint != nil {
		fmt.Fprintf(&b, "- **Subtasks suggest:** %s\n", d.Hint.Suggested.Title())
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}
	if len(d.Subtasks) > 0 {
		b.WriteString("\n## Subtasks\n\n")
		for _, c := range d.Subtasks {
			check := " "
			if c.Progress == models.ProgressDone {
				check = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (`%s`, %s)\n", check, c.Title, c.ShortID(), c.Progress.Title())
		}
	}
	return b.String()
}

func renderTaskMarkdown(d taskDetail) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.Render(taskMarkdown(d))
	if err != nil {
		return "", fmt.Errorf("rendering task: %w", err)
	}
	return out, nil
}

// --- task add ---

var (
	addDescription string
	addBucket      string
	addPriority    string
	addProgress    string
	addDue         string
	addParent      string
	addDependsOn   []string
	addSubtasks    []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task in a bucket. Without --bucket the first bucket is used.

Repeat --subtask to create child tasks in the same step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		in := core.NewTask{
			Title:        args[0],
			Description:  addDescription,
			Bucket:       addBucket,
			Parent:       addParent,
			Dependencies: addDependsOn,
		}
		var err error
		if in.Priority, err = parsePriorityFlag("priority", addPriority); err != nil {
			return err
		}
		if in.Progress, err = parseProgressFlag("progress", addProgress); err != nil {
			return err
		}
		if in.DueDate, err = parseDateFlag("due", addDue); err != nil {
			return err
		}
		for _, title := range addSubtasks {
			in.Subtasks = append(in.Subtasks, core.SubtaskSpec{Title: title})
		}

		res, err := TaskMgr.AddTask(in)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

// --- task edit ---

var (
	editTitle       string
	editDescription string
	editBucket      string
	editProgress    string
	editPriority    string
	editDue         string
	editClearDue    bool
	editParent      string
	editClearParent bool
	editDependsOn   []string
)

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a task",
	Long: `Change one or more fields of a task. Only the flags given are applied.

--depends-on replaces the whole dependency list; pass --depends-on "" to
clear it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		upd, err := buildTaskUpdate(cmd)
		if err != nil {
			return err
		}
		if upd.IsEmpty() {
			return validationErr("nothing to change: pass at least one field flag")
		}
		res, err := TaskMgr.EditTask(args[0], upd)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func buildTaskUpdate(cmd *cobra.Command) (core.TaskUpdate, error) {
	flags := cmd.Flags()
	var upd core.TaskUpdate
	var err error

	if flags.Changed("title") {
		upd.Title = &editTitle
	}
	if flags.Changed("description") {
		upd.Description = &editDescription
	}
	if flags.Changed("bucket") {
		upd.Bucket = &editBucket
	}
	if upd.Progress, err = parseProgressFlag("progress", editProgress); err != nil {
		return upd, err
	}
	if upd.Priority, err = parsePriorityFlag("priority", editPriority); err != nil {
		return upd, err
	}
	if upd.DueDate, err = parseDateFlag("due", editDue); err != nil {
		return upd, err
	}
	upd.ClearDueDate = editClearDue
	if flags.Changed("parent") {
		upd.Parent = &editParent
	}
	upd.ClearParent = editClearParent
	if flags.Changed("depends-on") {
		deps := make([]string, 0, len(editDependsOn))
		for _, d := range editDependsOn {
			if strings.TrimSpace(d) != "" {
				deps = append(deps, d)
			}
		}
		upd.Dependencies = &deps
	}
	return upd, nil
}

// --- task advance / retreat ---

var taskAdvanceCmd = &cobra.Command{
	Use:   "advance <id>",
	Short: "Move a task one progress stage forward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		res, err := TaskMgr.AdvanceProgress(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var taskRetreatCmd = &cobra.Command{
	Use:   "retreat <id>",
	Short: "Move a task one progress stage back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		res, err := TaskMgr.RetreatProgress(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

// --- task delete ---

// deleteOutput adds the removal count to a delete result.
type deleteOutput struct {
	core.DeleteResult
	Count int `json:"count"`
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and all of its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		res, err := TaskMgr.DeleteTask(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, deleteOutput{DeleteResult: res, Count: res.Count()})
	},
}

// --- task decompose ---

var taskDecomposeCmd = &cobra.Command{
	Use:   "decompose <id> <subtask-title>...",
	Short: "Split a task into subtasks",
	Long: fmt.Sprintf(`Create subtasks under an existing task, one per title argument.
At most %d subtasks can be created at once.`, core.MaxSubtasks),
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		specs := make([]core.SubtaskSpec, 0, len(args)-1)
		for _, title := range args[1:] {
			specs = append(specs, core.SubtaskSpec{Title: title})
		}
		res, err := TaskMgr.DecomposeTask(args[0], specs)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

// --- task bulk ---

var (
	bulkIDs        []string
	bulkInBucket   string
	bulkInProgress string
	bulkBucket     string
	bulkProgress   string
	bulkPriority   string
	bulkDue        string
	bulkClearDue   bool
)

var taskBulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Apply one change to many tasks",
	Long: `Apply the same change to every selected task.

Select targets with --ids (id prefixes, or "all") and narrow them with
--in-bucket and --in-progress. Targets that cannot be resolved are reported
in "failed" and do not stop the others.`,
	Example: `  aipm task bulk --ids all --in-progress done --bucket Admin
  aipm task bulk --ids 3f2a,9c1e --priority high`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		sel := core.Selector{IDs: bulkIDs, Bucket: bulkInBucket}
		var err error
		if sel.Progress, err = parseProgressFlag("in-progress", bulkInProgress); err != nil {
			return err
		}

		var upd core.TaskUpdate
		if cmd.Flags().Changed("bucket") {
			upd.Bucket = &bulkBucket
		}
		if upd.Progress, err = parseProgressFlag("progress", bulkProgress); err != nil {
			return err
		}
		if upd.Priority, err = parsePriorityFlag("priority", bulkPriority); err != nil {
			return err
		}
		if upd.DueDate, err = parseDateFlag("due", bulkDue); err != nil {
			return err
		}
		upd.ClearDueDate = bulkClearDue
		if upd.IsEmpty() {
			return validationErr("nothing to change: pass --bucket, --progress, --priority, --due or --clear-due")
		}

		res, err := TaskMgr.BulkUpdate(sel, upd)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	taskListCmd.Flags().StringVar(&listBucket, "bucket", "", "Only tasks in this bucket")
	taskListCmd.Flags().StringVar(&listProgress, "progress", "", "Only tasks at this stage (backlog, todo, in_progress, done)")
	taskListCmd.Flags().StringVar(&listPriority, "priority", "", "Only tasks with this priority (low, medium, high, critical)")
	taskListCmd.Flags().StringVar(&listParent, "parent", "", "Only direct subtasks of this task")
	taskListCmd.Flags().BoolVar(&listRoots, "roots", false, "Only tasks without a parent")

	taskShowCmd.Flags().BoolVar(&showRender, "render", false, "Render the task as formatted markdown instead of JSON")

	taskAddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Task description")
	taskAddCmd.Flags().StringVarP(&addBucket, "bucket", "b", "", "Bucket name")
	taskAddCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "Priority (low, medium, high, critical)")
	taskAddCmd.Flags().StringVar(&addProgress, "progress", "", "Initial progress stage")
	taskAddCmd.Flags().StringVar(&addDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&addParent, "parent", "", "Parent task id")
	taskAddCmd.Flags().StringSliceVar(&addDependsOn, "depends-on", nil, "Ids of tasks this task depends on")
	taskAddCmd.Flags().StringArrayVar(&addSubtasks, "subtask", nil, "Subtask title (repeatable)")

	taskEditCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	taskEditCmd.Flags().StringVarP(&editBucket, "bucket", "b", "", "Move to bucket")
	taskEditCmd.Flags().StringVar(&editProgress, "progress", "", "New progress stage")
	taskEditCmd.Flags().StringVarP(&editPriority, "priority", "p", "", "New priority")
	taskEditCmd.Flags().StringVar(&editDue, "due", "", "New due date (YYYY-MM-DD)")
	taskEditCmd.Flags().BoolVar(&editClearDue, "clear-due", false, "Remove the due date")
	taskEditCmd.Flags().StringVar(&editParent, "parent", "", "New parent task id")
	taskEditCmd.Flags().BoolVar(&editClearParent, "clear-parent", false, "Make the task top-level")
	taskEditCmd.Flags().StringSliceVar(&editDependsOn, "depends-on", nil, "Replace dependencies with these task ids")
	taskEditCmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	taskEditCmd.MarkFlagsMutuallyExclusive("parent", "clear-parent")

	taskBulkCmd.Flags().StringSliceVar(&bulkIDs, "ids", nil, `Task ids to update, or "all"`)
	taskBulkCmd.Flags().StringVar(&bulkInBucket, "in-bucket", "", "Only targets in this bucket")
	taskBulkCmd.Flags().StringVar(&bulkInProgress, "in-progress", "", "Only targets at this stage")
	taskBulkCmd.Flags().StringVar(&bulkBucket, "bucket", "", "Move targets to bucket")
	taskBulkCmd.Flags().StringVar(&bulkProgress, "progress", "", "Set progress stage")
	taskBulkCmd.Flags().StringVar(&bulkPriority, "priority", "", "Set priority")
	taskBulkCmd.Flags().StringVar(&bulkDue, "due", "", "Set due date (YYYY-MM-DD)")
	taskBulkCmd.Flags().BoolVar(&bulkClearDue, "clear-due", false, "Remove due dates")
	taskBulkCmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskEditCmd,
		taskAdvanceCmd, taskRetreatCmd, taskDeleteCmd, taskDecomposeCmd, taskBulkCmd)
	rootCmd.AddCommand(taskCmd)
}

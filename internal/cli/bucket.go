package cli

import (
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage buckets",
	Long: `Commands for listing and changing buckets. Bucket names are unique
ignoring case, and the board always keeps at least one bucket.`,
}

// bucketSummary is a bucket with its task counts.
type bucketSummary struct {
	models.Bucket
	Tasks int `json:"tasks"`
	Open  int `json:"open"`
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets in board order with task counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		tasks, err := TaskMgr.ListTasks(core.TaskFilter{})
		if err != nil {
			return err
		}
		buckets := TaskMgr.Buckets()
		out := make([]bucketSummary, len(buckets))
		for i, b := range buckets {
			out[i].Bucket = b
			for _, t := range tasks {
				if !models.SameBucketName(t.Bucket, b.Name) {
					continue
				}
				out[i].Tasks++
				if t.Progress != models.ProgressDone {
					out[i].Open++
				}
			}
		}
		return printJSON(cmd, out)
	},
}

var bucketDescription string

var bucketAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		b, err := TaskMgr.AddBucket(args[0], bucketDescription)
		if err != nil {
			return err
		}
		return printJSON(cmd, b)
	},
}

var bucketRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a bucket and move its tasks with it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		res, err := TaskMgr.RenameBucket(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var bucketDescribeCmd = &cobra.Command{
	Use:   "describe <name> <description>",
	Short: "Set a bucket's description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		b, err := TaskMgr.DescribeBucket(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, b)
	},
}

var bucketDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a bucket, moving its tasks to the first remaining bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		res, err := TaskMgr.DeleteBucket(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	bucketAddCmd.Flags().StringVarP(&bucketDescription, "description", "d", "", "Bucket description")

	bucketCmd.AddCommand(bucketListCmd, bucketAddCmd, bucketRenameCmd, bucketDescribeCmd, bucketDeleteCmd)
	rootCmd.AddCommand(bucketCmd)
}

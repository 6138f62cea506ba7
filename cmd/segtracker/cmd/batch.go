package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/reporter"
	"segmentation-tracker/internal/store"
	"segmentation-tracker/pkg/errors"
)

var batchCmd = &cobra.Command{
	Use:     "batch",
	Aliases: []string{"batches"},
	Short:   "Manage batch records",
}

var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches one page at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		return withApp(func(a *app) error {
			result, err := a.batches.List(cmd.Context(), page, perPage)
			if err != nil {
				return err
			}
			return writeReport(cmd, result)
		})
	},
}

var batchGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			b, err := a.batches.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd, b)
		})
	},
}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a batch; without --id the next free batch_<n> is used",
	Args:  cobra.NoArgs,
	RunE:  runBatchCreate,
}

var batchUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a batch",
	Long: `Update changes only the fields whose flags are given.

Examples:
  segtracker batch update batch_12 --status FS
  segtracker batch update batch_12 --assignee Ceci --due-date 2025-04-01
  segtracker batch update batch_12 --unassign`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchUpdate,
}

var batchRenameCmd = &cobra.Command{
	Use:   "rename <id> <new-id>",
	Short: "Change the identifier of a batch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			b, err := a.batches.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeReport(cmd, b)
		})
	},
}

var batchDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			deleted, err := a.batches.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd, deleted)
		})
	},
}

var batchFilesCmd = &cobra.Command{
	Use:   "files <id>",
	Short: "List the catalog files matched to a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			report, err := a.reconciler.BatchFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd, report)
		})
	},
}

var batchMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List expected batch identifiers that have no record",
	Args:  cobra.NoArgs,
	RunE:  runBatchMissing,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchListCmd, batchGetCmd, batchCreateCmd, batchUpdateCmd,
		batchRenameCmd, batchDeleteCmd, batchFilesCmd, batchMissingCmd)

	batchListCmd.Flags().Int("page", 1, "page number")
	batchListCmd.Flags().Int("per-page", 0, "batches per page (default from batches.default_per_page)")

	addBatchFieldFlags(batchCreateCmd.Flags())
	batchCreateCmd.Flags().String("id", "", "batch identifier")

	addBatchFieldFlags(batchUpdateCmd.Flags())
	batchUpdateCmd.Flags().Bool("unassign", false, "clear the assignee")

	batchMissingCmd.Flags().StringSlice("expected", nil, "expected identifiers (default from batches.expected)")
}

func addBatchFieldFlags(fs *pflag.FlagSet) {
	fs.String("assignee", "", "roster member the batch is assigned to")
	fs.String("status", "", "NS (not segmented), FS (in progress) or S (segmented)")
	fs.String("folder", "", "source folder")
	fs.StringSlice("tasks", nil, "annotation tasks")
	fs.String("comments", "", "free-form comments")
	fs.String("assigned-at", "", "assignment date (YYYY-MM-DD)")
	fs.String("due-date", "", "due date (YYYY-MM-DD)")
	fs.String("priority", "", "low, medium or high")
	fs.Bool("mongo-uploaded", false, "mark the masks as uploaded")
}

func runBatchCreate(cmd *cobra.Command, args []string) error {
	fs := cmd.Flags()
	input := batches.CreateInput{}
	input.ID, _ = fs.GetString("id")
	input.Folder, _ = fs.GetString("folder")
	input.Tasks, _ = fs.GetStringSlice("tasks")
	input.Comments, _ = fs.GetString("comments")
	input.AssignedAt, _ = fs.GetString("assigned-at")
	input.DueDate, _ = fs.GetString("due-date")
	input.Priority, _ = fs.GetString("priority")
	input.MongoUploaded, _ = fs.GetBool("mongo-uploaded")
	status, _ := fs.GetString("status")
	input.Status = models.Status(status)
	if fs.Changed("assignee") {
		assignee, _ := fs.GetString("assignee")
		input.Assignee = &assignee
	}

	return withApp(func(a *app) error {
		b, err := a.batches.Create(cmd.Context(), input)
		if err != nil {
			return err
		}
		return writeReport(cmd, b)
	})
}

// patchFromFlags builds a patch from the flags that were given
func patchFromFlags(fs *pflag.FlagSet) (*store.BatchPatch, error) {
	patch := &store.BatchPatch{}
	str := func(name string) *string {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		return &v
	}

	unassign, _ := fs.GetBool("unassign")
	if unassign && fs.Changed("assignee") {
		return nil, errors.ValidationError(errors.CodeInvalidAssignee, "assignee", "--unassign", nil).
			WithSuggestion("use either --assignee or --unassign")
	}
	if unassign {
		patch.AssigneeSet = true
	} else if v := str("assignee"); v != nil {
		patch.AssigneeSet = true
		patch.Assignee = v
	}

	if v := str("status"); v != nil {
		status := models.Status(*v)
		patch.Status = &status
	}
	patch.Folder = str("folder")
	patch.Comments = str("comments")
	patch.AssignedAt = str("assigned-at")
	patch.DueDate = str("due-date")
	patch.Priority = str("priority")
	if fs.Changed("tasks") {
		tasks, _ := fs.GetStringSlice("tasks")
		patch.Tasks = cleanList(tasks)
	}
	if fs.Changed("mongo-uploaded") {
		uploaded, _ := fs.GetBool("mongo-uploaded")
		patch.MongoUploaded = &uploaded
	}

	if patch.IsEmpty() {
		return nil, errors.ValidationError(errors.CodeMissingField, "update", nil, nil).
			WithSuggestion("pass at least one field flag, see 'segtracker batch update --help'")
	}
	return patch, nil
}

func runBatchUpdate(cmd *cobra.Command, args []string) error {
	patch, err := patchFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		b, err := a.batches.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		return writeReport(cmd, b)
	})
}

func runBatchMissing(cmd *cobra.Command, args []string) error {
	expected := appConfig.Batches.Expected
	if cmd.Flags().Changed("expected") {
		values, _ := cmd.Flags().GetStringSlice("expected")
		expected = cleanList(values)
	}
	if len(expected) == 0 {
		return errors.ConfigurationError(errors.CodeMissingConfig, "batches.expected", nil, nil).
			WithSuggestion("set batches.expected in the config file or pass --expected batch_1,batch_2")
	}

	return withApp(func(a *app) error {
		missing, err := a.batches.Missing(cmd.Context(), expected)
		if err != nil {
			return err
		}
		return writeReport(cmd, reporter.MissingBatches(missing))
	})
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"segmentation-tracker/internal/reconciler"
	"segmentation-tracker/pkg/errors"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile batches against the uploaded file catalog",
	Long: `Sync matches every batch against the mask file catalog and updates its
mongo_uploaded flag and file_info. With --auto-create, catalog files naming
unknown batches get a new batch record first.

Examples:
  segtracker sync
  segtracker sync --dry-run --results
  segtracker sync --auto-create --output-format json`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("auto-create", false, "create batches for catalog files naming unknown batches")
	syncCmd.Flags().Bool("dry-run", false, "show what would change without writing")
	syncCmd.Flags().Bool("progress", false, "show progress on stderr")
	syncCmd.Flags().Bool("results", false, "list every batch outcome in console output")
	viper.BindPFlag("output.include_results", syncCmd.Flags().Lookup("results"))
}

func runSync(cmd *cobra.Command, args []string) error {
	autoCreate, _ := cmd.Flags().GetBool("auto-create")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showProgress, _ := cmd.Flags().GetBool("progress")

	return withApp(func(a *app) error {
		if showProgress {
			stderr := cmd.ErrOrStderr()
			a.sync.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
				fmt.Fprintf(stderr, "\rReconciling: %5.1f%% (%d/%d, %d updated, %d failed)",
					p.PercentComplete, p.Processed, p.Total, p.Updated, p.Failed)
				if p.Done {
					fmt.Fprintln(stderr)
				}
			})
		}

		result, err := a.sync.Sync(cmd.Context(), reconciler.SyncOptions{
			AutoCreate: autoCreate,
			DryRun:     dryRun,
		})
		if err != nil {
			return err
		}

		if err := writeReport(cmd, result); err != nil {
			return err
		}

		if report := result.Reconciliation; !report.Success() {
			return errors.New(errors.CategoryStore, errors.CodeUpdateFailed,
				fmt.Sprintf("%d of %d batches could not be updated", report.BatchesFailed, report.TotalBatches)).
				WithSuggestion("rerun sync once the batch store is reachable; updated batches are not redone")
		}
		return nil
	})
}

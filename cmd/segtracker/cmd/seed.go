package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load batch records from a seed file",
}

var seedLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the seed file into an empty batch store",
	Long: `Load reads a JSON ({"batches": [...]}), YAML or CSV seed file. The store
is only written when it holds no batches, unless --force is given, in which
case every existing batch is removed first.

Examples:
  segtracker seed load --file batches.json
  segtracker seed load --file batches.csv --force`,
	Args: cobra.NoArgs,
	RunE: runSeedLoad,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedLoadCmd)

	seedLoadCmd.Flags().String("file", "batches.json", "seed file path")
	seedLoadCmd.Flags().Bool("force", false, "replace existing batches")
	viper.BindPFlag("batches.seed_file", seedLoadCmd.Flags().Lookup("file"))
}

func runSeedLoad(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := appConfig.Batches.SeedFile
	if path == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "batches.seed_file", nil, nil).
			WithSuggestion("pass --file or set batches.seed_file")
	}

	return withApp(func(a *app) error {
		var result *batches.SeedResult
		err := logger.TimedOperation("seed_load", a.logger, func() error {
			seed, stats, err := a.seed.ParseFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			if stats.HasErrors() {
				a.logger.WithFields(logger.Fields{
					"file":     path,
					"rejected": stats.ErrorCount,
				}).Warn("Seed file contains invalid records")
				fmt.Fprintln(cmd.ErrOrStderr(), errors.FormatRecordErrors(stats.Errors))
			}

			result, err = a.batches.LoadSeed(cmd.Context(), seed, force)
			return err
		})
		if err != nil {
			return err
		}
		if !result.Loaded {
			fmt.Fprintf(cmd.ErrOrStderr(), "Store already holds %d batches; use --force to reload\n", result.ExistingCount)
		}
		return writeReport(cmd, result)
	})
}

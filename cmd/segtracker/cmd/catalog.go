package cmd

import (
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the uploaded mask file catalog",
}

var catalogInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show catalog statistics, recent uploads and files grouped by batch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(a *app) error {
			inspection, err := a.reconciler.InspectCatalog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeReport(cmd, inspection)
		})
	},
}

var catalogAutoCreateCmd = &cobra.Command{
	Use:   "autocreate",
	Short: "Create batches for catalog files naming unknown batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.reconciler.AutoCreate(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, result)
		})
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogInspectCmd, catalogAutoCreateCmd)

	catalogInspectCmd.Flags().Int("limit", 10, "number of recent uploads to list")
}

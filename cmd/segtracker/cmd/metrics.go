package cmd

import (
	"github.com/spf13/cobra"

	"segmentation-tracker/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Dashboard metrics over the current batches",
}

var metricsOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Totals, completion rate and status distribution",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			stats, err := a.metrics.Overview(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, stats)
		})
	},
}

var metricsTeamCmd = &cobra.Command{
	Use:   "team",
	Short: "Per-assignee counts, completion rate and efficiency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			team, err := a.metrics.TeamMetrics(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, team)
		})
	},
}

var metricsProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Daily progress series keyed by assignment date",
	Long: `Progress groups batches by metadata.assigned_at. Batches without an
assignment date are left out of the series.

Examples:
  segtracker metrics progress --from 2025-03-01 --to 2025-03-31
  segtracker metrics progress --assignees Flor,Unassigned`,
	Args: cobra.NoArgs,
	RunE: runMetricsProgress,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsOverviewCmd, metricsTeamCmd, metricsProgressCmd)

	metricsProgressCmd.Flags().String("from", "", "first date to include (YYYY-MM-DD)")
	metricsProgressCmd.Flags().String("to", "", "last date to include (YYYY-MM-DD)")
	metricsProgressCmd.Flags().StringSlice("assignees", nil, "only these assignees (Unassigned selects batches without one)")
}

func runMetricsProgress(cmd *cobra.Command, args []string) error {
	filter := &metrics.TimeSeriesFilter{}
	filter.From, _ = cmd.Flags().GetString("from")
	filter.To, _ = cmd.Flags().GetString("to")
	if cmd.Flags().Changed("assignees") {
		assignees, _ := cmd.Flags().GetStringSlice("assignees")
		filter.Assignees = cleanList(assignees)
	}

	return withApp(func(a *app) error {
		series, err := a.metrics.TimeSeries(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return writeReport(cmd, series)
	})
}

package cmd

import (
	"github.com/spf13/cobra"

	"segmentation-tracker/internal/models"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the segmentation team roster",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roster members; an empty roster is seeded with roster.defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			members, err := a.roster.Members(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, members)
		})
	},
}

var rosterAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a member to the roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		email, _ := cmd.Flags().GetString("email")
		return withApp(func(a *app) error {
			member, err := a.roster.Add(cmd.Context(), args[0], role, email)
			if err != nil {
				return err
			}
			return writeReport(cmd, []models.TeamMember{*member})
		})
	},
}

var rosterAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare batch assignees with the roster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			analysis, err := a.batches.AnalyzeAssignees(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, analysis)
		})
	},
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterListCmd, rosterAddCmd, rosterAnalyzeCmd)

	rosterAddCmd.Flags().String("role", "", "role shown on the dashboard (default Segmentador General)")
	rosterAddCmd.Flags().String("email", "", "contact email")
}

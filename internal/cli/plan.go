package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [CALENDAR_ID] [ICS_SOURCE]",
	Short: "Show what sync would do without changing anything",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyArgs(cfg, args)

		if v, _ := cmd.Flags().GetBool("prune"); v {
			cfg.Prune = true
		}
		if v, _ := cmd.Flags().GetInt("window-days"); v > 0 {
			cfg.WindowDays = v
		}

		runner, err := newRunner(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		plan, err := runner.DryRun(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, ev := range plan.Creates {
			fmt.Fprintf(out, "create  %-40s %s\n", ev.UID, ev.Summary)
		}
		for _, up := range plan.Updates {
			fmt.Fprintf(out, "update  %-40s %s (sequence %d)\n", up.Event.UID, up.Event.Summary, up.Event.Sequence)
		}
		for _, del := range plan.Deletes {
			fmt.Fprintf(out, "delete  %-40s %s\n", del.Key.UID, del.Reason)
		}
		for _, sk := range plan.Skips {
			fmt.Fprintf(out, "skip    %-40s %s\n", sk.Key.UID, sk.Reason)
		}
		fmt.Fprintf(out, "\n%d to create, %d to update, %d to delete, %d up to date\n",
			len(plan.Creates), len(plan.Updates), len(plan.Deletes), len(plan.Skips))
		return nil
	},
}

func init() {
	planCmd.Flags().BoolP("prune", "D", false, "Include deletions of future events missing from the ICS source")
	planCmd.Flags().Int("window-days", 0, "Only consider events occurring within the next N days")
	rootCmd.AddCommand(planCmd)
}

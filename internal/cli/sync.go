package cli

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [CALENDAR_ID] [ICS_SOURCE]",
	Short: "Reconcile an ICS source against a Google Calendar",
	Long: `Fetches the ICS source, diffs it against the target calendar and applies
the result: missing events are imported, events whose SEQUENCE increased
are updated, everything else is left alone. With --prune, future events
that disappeared from the source are deleted. With --cron, the sync
repeats on the given schedule instead of exiting.`,
	Args: cobra.MaximumNArgs(2),
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
		if v, _ := cmd.Flags().GetString("cron"); v != "" {
			cfg.Cron = v
		}
		clearFirst, _ := cmd.Flags().GetBool("clear-first")

		ctx := cmd.Context()
		runner, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}

		if clearFirst {
			deleted, err := sync.Clear(ctx, runner.Store)
			if err != nil {
				return fmt.Errorf("clear calendar: %w", err)
			}
			appLog.Warn("cleared calendar before import", "deleted", deleted)
		}

		if cfg.Cron != "" {
			return runOnSchedule(ctx, cfg.Cron, runner)
		}

		sum, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		if sum.Imported() == 0 {
			return fmt.Errorf("no events were imported")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolP("prune", "D", false, "Delete future events missing from the ICS source")
	syncCmd.Flags().BoolP("clear-first", "C", false, "Delete ALL events from the calendar before importing")
	syncCmd.Flags().Int("window-days", 0, "Only sync events occurring within the next N days")
	syncCmd.Flags().String("cron", "", "Cron schedule to repeat the sync (e.g. \"*/15 * * * *\")")
	rootCmd.AddCommand(syncCmd)
}

// runOnSchedule runs the sync on the given cron schedule until the
// context is canceled. A pass that fails is logged and the schedule keeps
// going; transient feed or API errors should not kill the loop.
func runOnSchedule(ctx context.Context, spec string, runner *sync.Runner) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := runner.Run(ctx); err != nil {
			appLog.Error("scheduled sync failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	// One pass immediately; the schedule covers subsequent runs.
	if _, err := runner.Run(ctx); err != nil {
		appLog.Error("initial sync failed", err)
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

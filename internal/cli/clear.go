package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
)

var clearCmd = &cobra.Command{
	Use:   "clear [CALENDAR_ID]",
	Short: "Delete ALL events from the target calendar",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyArgs(cfg, args)

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to clear calendar %q without --yes", cfg.CalendarID)
		}

		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		deleted, err := sync.Clear(cmd.Context(), store)
		if err != nil {
			return err
		}
		appLog.Warn("cleared calendar", "calendar_id", cfg.CalendarID, "deleted", deleted)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolP("yes", "y", false, "Confirm deletion of every event on the calendar")
	rootCmd.AddCommand(clearCmd)
}

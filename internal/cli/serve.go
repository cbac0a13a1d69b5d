package cli

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
	"github.com/pschmitt/gcal-import-ics/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic sync with a status HTTP server",
	Long: `Runs the sync on the configured cron schedule and exposes a small HTTP
API: GET /health, GET /api/status (last run summary) and POST /api/sync
(trigger a run). The serve mode requires a config file for source and
calendar settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("listen"); v != "" {
			cfg.Listen = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		runner, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}

		server := web.NewServer(cfg, func(ctx context.Context) (sync.Summary, error) {
			return runner.Run(ctx)
		})

		spec := cfg.Cron
		if spec == "" {
			spec = "*/30 * * * *"
		}
		c := cron.New()
		if _, err := c.AddFunc(spec, func() {
			sum, err := runner.Run(ctx)
			server.Record(sum, err)
			if err != nil {
				appLog.Error("scheduled sync failed", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid cron spec %q: %w", spec, err)
		}
		c.Start()
		defer c.Stop()

		return web.Serve(ctx, cfg, server)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

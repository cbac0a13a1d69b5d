// Package cli wires the cobra commands: sync, plan, clear and serve.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pschmitt/gcal-import-ics/internal/config"
	"github.com/pschmitt/gcal-import-ics/internal/gcal"
	"github.com/pschmitt/gcal-import-ics/internal/ics"
	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "gcal-import-ics",
	Short: "Import ICS calendar events into a Google Calendar",
	Long: `gcal-import-ics reads events from an ICS source (file, URL or Confluence
calendar export) and reconciles them against a target Google Calendar, so
that repeated runs are idempotent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			appLog.SetLevel(appLog.LevelDebug)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", envOr("GCAL_IMPORT_ICS_CONFIG", ""), "Path to YAML config file")
	pf.StringP("credentials", "c", "", "Path to Google OAuth client secret file")
	pf.StringP("token", "t", "", "Path to cached OAuth token file")
	pf.StringP("proxy", "p", "", "Proxy URL used when fetching the ICS source")
	pf.String("cache-dir", "", "Directory for the ICS fetch cache")
	pf.BoolP("debug", "d", false, "Debug output")
}

func Execute() {
	// .env is optional; missing files are not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("command failed", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig merges the config file (if any) with the persistent flags;
// flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if v, _ := cmd.Flags().GetString("credentials"); v != "" {
		cfg.CredentialsFile = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.TokenFile = v
	}
	if v, _ := cmd.Flags().GetString("proxy"); v != "" {
		cfg.Proxy = v
	}
	if v, _ := cmd.Flags().GetString("cache-dir"); v != "" {
		cfg.CacheDir = v
	}
	cfg.Normalize()

	return cfg, nil
}

// applyArgs overlays the positional CALENDAR_ID and ICS_SOURCE arguments
// onto the config.
func applyArgs(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.CalendarID = args[0]
	}
	if len(args) > 1 {
		cfg.Source = args[1]
	}
}

// resolveSource picks the effective ICS source: an explicit source, or
// the URL derived from a Confluence subcalendar.
func resolveSource(cfg *config.Config) (string, error) {
	if cfg.Source != "" {
		return cfg.Source, nil
	}
	if cfg.Confluence != nil && cfg.Confluence.SubcalendarID != "" {
		return ics.ConfluenceExportURL(cfg.Confluence.BaseURL, cfg.Confluence.SubcalendarID), nil
	}
	return "", fmt.Errorf("no ICS source: pass ICS_SOURCE or set source/confluence in the config")
}

// newStore builds the authenticated Google Calendar store.
func newStore(ctx context.Context, cfg *config.Config) (sync.Store, error) {
	httpClient, err := gcal.NewHTTPClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return gcal.NewClient(ctx, httpClient, cfg.CalendarID)
}

// newRunner assembles the full pipeline for one calendar.
func newRunner(ctx context.Context, cfg *config.Config) (*sync.Runner, error) {
	source, err := resolveSource(cfg)
	if err != nil {
		return nil, err
	}

	fetcher, err := ics.NewFetcher(cfg.CacheDir, cfg.Proxy)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &sync.Runner{
		Fetcher:    fetcher,
		Store:      store,
		Source:     source,
		WindowDays: cfg.WindowDays,
		Prune:      cfg.Prune,
	}, nil
}

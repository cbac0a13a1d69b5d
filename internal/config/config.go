package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfluenceConfig identifies a Confluence team-calendar export. When set,
// the ICS URL is derived from it instead of being given directly.
type ConfluenceConfig struct {
	// BaseURL is the Confluence instance root, e.g. "https://wiki.example.com".
	BaseURL string `yaml:"base_url"`
	// SubcalendarID is the UUID of the subcalendar to export.
	SubcalendarID string `yaml:"subcalendar_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration. Every field can also
// be set via CLI flags; flags win over the file.
type Config struct {
	// CalendarID is the target Google Calendar ("primary" or an address).
	CalendarID string `yaml:"calendar_id"`

	// Source is the ICS source: an http(s) URL or a local file path.
	// Ignored when Confluence is set.
	Source string `yaml:"source"`

	// Confluence, if non-nil, derives the ICS URL from a Confluence
	// team-calendar export.
	Confluence *ConfluenceConfig `yaml:"confluence,omitempty"`

	// Proxy is an optional proxy URL used when fetching remote ICS.
	Proxy string `yaml:"proxy,omitempty"`

	// CredentialsFile / TokenFile are the Google OAuth client secret and
	// cached token paths.
	CredentialsFile string `yaml:"credentials"`
	TokenFile       string `yaml:"token"`

	// Cron is a cron-style schedule (e.g. "*/15 * * * *"). Empty means
	// one-shot.
	Cron string `yaml:"cron,omitempty"`

	// Prune deletes future remote events that are absent from the feed.
	Prune bool `yaml:"prune"`

	// WindowDays limits the sync to events with an occurrence within the
	// next N days. Zero means unwindowed.
	WindowDays int `yaml:"window_days"`

	// CacheDir is where fetched ICS bodies and their HTTP validators are
	// cached between runs.
	CacheDir string `yaml:"cache_dir"`

	// Listen is the status server address, used by the serve command.
	Listen string `yaml:"listen"`

	// BasicAuth, if non-nil, protects the status server endpoints except
	// /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		CalendarID:      "primary",
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		CacheDir:        defaultCacheDir(),
		Listen:          "127.0.0.1:8321",
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gcal-import-ics")
	}
	return "./.gcal-import-ics-cache"
}

// Normalize fills in missing values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = "credentials.json"
	}
	if c.TokenFile == "" {
		c.TokenFile = "token.json"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8321"
	}
	if c.WindowDays < 0 {
		c.WindowDays = 0
	}
}

// Validate reports configurations that cannot produce a sync at all.
func (c *Config) Validate() error {
	if c.Source == "" && (c.Confluence == nil || c.Confluence.SubcalendarID == "") {
		return errors.New("config: either source or confluence.subcalendar_id must be set")
	}
	if c.Confluence != nil && c.Confluence.SubcalendarID != "" && c.Confluence.BaseURL == "" {
		return errors.New("config: confluence.base_url is required with confluence.subcalendar_id")
	}
	return nil
}

// Load reads configuration from the given YAML path. A missing file yields
// defaults, which the caller is expected to complete via flags.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions; the
// token paths inside may be sensitive to leak via a half-written file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gcal-import-ics-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"taskcal/internal/civil"
	"taskcal/internal/model"
	"taskcal/internal/recurrence"
	"taskcal/internal/section"
)

// ICSConfig describes a single calendar feed.
type ICSConfig struct {
	// URL is the feed endpoint or a local .ics path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for task ids and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RecurringConfig is one recurring task definition as written in the config
// file. Rule is one of the labels accepted by recurrence.FromLabel.
type RecurringConfig struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Rule    string `yaml:"rule"`
	Section string `yaml:"section"`
	// Basis is the first date the task is due, "YYYY-MM-DD".
	Basis string `yaml:"basis"`
	Work  bool   `yaml:"work"`
}

// ScheduleConfig holds cron specs, evaluated in JST.
type ScheduleConfig struct {
	// Materialize generates today's recurring tasks.
	Materialize string `yaml:"materialize"`
	// MaterializeTomorrow generates tomorrow's recurring tasks the evening before.
	MaterializeTomorrow string `yaml:"materialize_tomorrow"`
	// Refresh re-imports calendar feeds for today.
	Refresh string `yaml:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"` // text | json

	// Rollover treats 00:00-01:59 as the previous day when deciding "today".
	Rollover bool `yaml:"rollover" json:"rollover"`

	// CacheDir is where fetched calendar feeds are cached.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Schedule  ScheduleConfig    `yaml:"schedule" json:"schedule"`
	ICS       []ICSConfig       `yaml:"ics" json:"ics"`
	Recurring []RecurringConfig `yaml:"recurring" json:"recurring"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		LogLevel:  "info",
		LogFormat: "text",
		Rollover:  true,
		CacheDir:  "./var/ics-cache",
		Schedule: ScheduleConfig{
			Materialize:         "0 5 * * *",
			MaterializeTomorrow: "0 22 * * *",
			Refresh:             "*/15 * * * *",
		},
		ICS:       []ICSConfig{},
		Recurring: []RecurringConfig{},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = def.LogFormat
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Schedule.Materialize == "" {
		c.Schedule.Materialize = def.Schedule.Materialize
	}
	if c.Schedule.MaterializeTomorrow == "" {
		c.Schedule.MaterializeTomorrow = def.Schedule.MaterializeTomorrow
	}
	if c.Schedule.Refresh == "" {
		c.Schedule.Refresh = def.Schedule.Refresh
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Recurring == nil {
		c.Recurring = []RecurringConfig{}
	}
}

// ApplyEnv overrides selected fields from the environment. A .env file in the
// working directory is loaded first; real environment variables win.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("TASKCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TASKCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TASKCAL_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("TASKCAL_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
}

// Definitions converts the recurring entries into model values. Unknown rule
// labels surface as errors wrapping recurrence.ErrUnknownRuleLabel.
func (c *Config) Definitions() ([]model.RecurringDefinition, error) {
	out := make([]model.RecurringDefinition, 0, len(c.Recurring))
	seen := make(map[string]bool, len(c.Recurring))
	for i, rc := range c.Recurring {
		if rc.ID == "" {
			return nil, fmt.Errorf("recurring[%d]: id is empty", i)
		}
		if seen[rc.ID] {
			return nil, fmt.Errorf("recurring[%d]: duplicate id %q", i, rc.ID)
		}
		seen[rc.ID] = true

		rule, err := recurrence.FromLabel(rc.Rule)
		if err != nil {
			return nil, fmt.Errorf("recurring %q: %w", rc.ID, err)
		}
		sec, err := section.Parse(rc.Section)
		if err != nil {
			return nil, fmt.Errorf("recurring %q: %w", rc.ID, err)
		}
		basis, err := civil.ParseDate(rc.Basis)
		if err != nil {
			return nil, fmt.Errorf("recurring %q: %w", rc.ID, err)
		}
		out = append(out, model.RecurringDefinition{
			ID:      rc.ID,
			Title:   rc.Title,
			Rule:    rule,
			Section: sec,
			Basis:   basis,
			Work:    rc.Work,
		})
	}
	return out, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".taskcal-config-*.tmp")
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

// Package config loads and saves the mailmirror TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "MAILMIRROR_CONFIG"

// MinSyncInterval is the shortest allowed scheduler period.
const MinSyncInterval = time.Minute

// Config is the complete mailmirror configuration.
type Config struct {
	Sync    SyncConfig    `toml:"sync"`
	Gmail   GmailConfig   `toml:"gmail"`
	Storage StorageConfig `toml:"storage"`
	Notify  NotifyConfig  `toml:"notify"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// SyncConfig controls the sync engine and its scheduler.
type SyncConfig struct {
	// Enabled is the global sync switch.
	Enabled bool `toml:"enabled"`
	// Interval between scheduled runs.
	Interval Duration `toml:"interval"`
	// Concurrency bounds how many accounts sync at once.
	Concurrency int `toml:"concurrency"`
	// TrackedLabel is the label mirrored locally.
	TrackedLabel string `toml:"tracked_label"`
	// IncludeSpamTrash keeps spam and trash messages in the mirror.
	IncludeSpamTrash bool `toml:"include_spam_trash"`
	// MaxHistoryPages bounds change-log pagination per run.
	MaxHistoryPages int `toml:"max_history_pages"`
	// BodyLimit is the maximum number of runes kept from a message body.
	BodyLimit int `toml:"body_limit"`
	// Timezone used for display dates (IANA name, empty for local).
	Timezone string `toml:"timezone"`
}

// GmailConfig holds the OAuth client and API tuning.
type GmailConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	PageSize          int64    `toml:"page_size"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	CallTimeout       Duration `toml:"call_timeout"`
}

// StorageConfig locates the mirror database.
type StorageConfig struct {
	Path string `toml:"path"`
}

// NotifyConfig configures new-message delivery.
type NotifyConfig struct {
	// NATSURL enables the JetStream notifier when set.
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
	// Log also writes new messages to the log.
	Log bool `toml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// MetricsConfig configures the prometheus endpoint of the daemon.
type MetricsConfig struct {
	// Listen is the address for /metrics, empty to disable.
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Enabled:         true,
			Interval:        Duration{3 * time.Minute},
			Concurrency:     4,
			TrackedLabel:    domain.LabelInbox,
			MaxHistoryPages: 1000,
			BodyLimit:       1024,
		},
		Gmail: GmailConfig{
			PageSize:          100,
			RequestsPerSecond: 10,
			Burst:             20,
			CallTimeout:       Duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			SubjectPrefix: "mailmirror",
			Log:           true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultDir returns ~/.mailmirror.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".mailmirror"), nil
}

// DefaultPath returns the config path from the environment or ~/.mailmirror/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.resolve(path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.resolve(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Sync.Interval.Duration < MinSyncInterval {
		return fmt.Errorf("%w: sync.interval must be at least %s", domain.ErrInvalidInput, MinSyncInterval)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("%w: sync.concurrency must be positive", domain.ErrInvalidInput)
	}
	if c.Sync.TrackedLabel == "" {
		return fmt.Errorf("%w: sync.tracked_label must be set", domain.ErrInvalidInput)
	}
	if c.Sync.MaxHistoryPages < 1 {
		return fmt.Errorf("%w: sync.max_history_pages must be positive", domain.ErrInvalidInput)
	}
	if c.Gmail.PageSize < 1 || c.Gmail.PageSize > 500 {
		return fmt.Errorf("%w: gmail.page_size must be between 1 and 500", domain.ErrInvalidInput)
	}
	if c.Gmail.RequestsPerSecond <= 0 || c.Gmail.Burst < 1 {
		return fmt.Errorf("%w: gmail rate limit must be positive", domain.ErrInvalidInput)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: sync.timezone: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Sync.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Sync.Timezone)
}

// resolve fills paths that default relative to the config file.
func (c *Config) resolve(path string) error {
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(filepath.Dir(path), "mirror.db")
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/pagepub/internal/core/domain"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Account   AccountConfig   `mapstructure:"account"`
	Pages     PagesConfig     `mapstructure:"pages"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Client    ClientConfig    `mapstructure:"client"`
	Project   ProjectConfig   `mapstructure:"project"`
	Packaging PackagingConfig `mapstructure:"packaging"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig holds the action token API configuration.
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AccountConfig holds the account site where actions are confirmed.
type AccountConfig struct {
	URL string `mapstructure:"url"`
}

// PagesConfig holds the hosted pages service configuration.
type PagesConfig struct {
	URL       string        `mapstructure:"url"`
	ManageURL string        `mapstructure:"manage_url"`
	Timeout   time.Duration `mapstructure:"timeout"` // Whole upload, including the artifact body
}

// AuthConfig holds action token polling configuration.
type AuthConfig struct {
	// PollInterval is the wait before each result poll.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// TimeoutIntervals is the number of polls before giving up.
	TimeoutIntervals int `mapstructure:"timeout_intervals"`
}

// ClientConfig identifies this client to the remote services.
type ClientConfig struct {
	Name string `mapstructure:"name"`
}

// ProjectConfig locates the project and its files.
type ProjectConfig struct {
	Root         string `mapstructure:"root"`
	SettingsFile string `mapstructure:"settings_file"`
	RecordFile   string `mapstructure:"record_file"`
}

// PackagingConfig holds the packaging step configuration.
type PackagingConfig struct {
	// Command builds the artifact. Empty skips packaging.
	Command string        `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PublishConfig holds publish option defaults.
type PublishConfig struct {
	// Listed is used until a page has been published; after that the
	// access type of the known page wins unless -listed is given.
	Listed bool `mapstructure:"listed"`

	// Threads is "auto", "on" or "off".
	Threads string `mapstructure:"threads"`
}

// ThreadsMode returns the parsed threads mode.
func (c PublishConfig) ThreadsMode() domain.ThreadsMode {
	return domain.ThreadsMode(strings.ToLower(c.Threads))
}

// BrowserConfig holds browser launching configuration.
type BrowserConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api.url", "https://api.wonderlandengine.com")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("account.url", "https://wonderlandengine.com/account/")
	v.SetDefault("pages.url", "https://cloud.wonderland.dev")
	v.SetDefault("pages.manage_url", "https://cloud.wonderland.dev/pages")
	v.SetDefault("pages.timeout", "5m")
	v.SetDefault("auth.poll_interval", "5s")
	v.SetDefault("auth.timeout_intervals", 12)
	v.SetDefault("client.name", "WonderlandEditor")
	v.SetDefault("project.root", ".")
	v.SetDefault("project.settings_file", "project.yaml")
	v.SetDefault("project.record_file", "deployment.json")
	v.SetDefault("packaging.command", "")
	v.SetDefault("packaging.timeout", "10m")
	v.SetDefault("publish.listed", true)
	v.SetDefault("publish.threads", string(domain.ThreadsAuto))
	v.SetDefault("browser.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// The file was named explicitly, so a missing one is an error.
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("PAGEPUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot check on its own.
func (c *Config) Validate() error {
	switch c.Publish.ThreadsMode() {
	case domain.ThreadsAuto, domain.ThreadsOn, domain.ThreadsOff:
	default:
		return fmt.Errorf("publish.threads must be auto, on or off, got %q", c.Publish.Threads)
	}
	if c.Auth.PollInterval <= 0 {
		return fmt.Errorf("auth.poll_interval must be positive, got %s", c.Auth.PollInterval)
	}
	if c.Auth.TimeoutIntervals <= 0 {
		return fmt.Errorf("auth.timeout_intervals must be positive, got %d", c.Auth.TimeoutIntervals)
	}
	if c.API.URL == "" || c.Pages.URL == "" {
		return fmt.Errorf("api.url and pages.url are required")
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format that
// writes to w. Standard output is left for the published URL.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

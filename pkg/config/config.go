package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppName is used for config directories and notification titles.
const AppName = "online-status"

// Config holds all runtime configuration for online-status
type Config struct {
	// Remote store
	BaseURL            string        `yaml:"base_url" env:"ONLINE_STATUS_BASE_URL"`
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"ONLINE_STATUS_REQUEST_TIMEOUT"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"ONLINE_STATUS_INSECURE"`

	// Schedules
	PollInterval      time.Duration `yaml:"poll_interval" env:"ONLINE_STATUS_POLL_INTERVAL"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"ONLINE_STATUS_HEARTBEAT_INTERVAL"`

	// Activity classification
	IdleThreshold time.Duration `yaml:"idle_threshold" env:"ONLINE_STATUS_IDLE_THRESHOLD"`

	// Behavior flags
	Quiet                bool   `yaml:"quiet" env:"ONLINE_STATUS_QUIET"`
	DesktopNotifications bool   `yaml:"desktop_notifications" env:"ONLINE_STATUS_DESKTOP"`
	LogLevel             string `yaml:"log_level" env:"ONLINE_STATUS_LOG_LEVEL"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Batching
	BatchWindow time.Duration `yaml:"batch_window"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout:       10 * time.Second,
		PollInterval:         30 * time.Second,
		HeartbeatInterval:    60 * time.Second,
		IdleThreshold:        5 * time.Minute,
		DesktopNotifications: true,
		LogLevel:             "info",
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 10,
		},
	}
}

// Load loads configuration from the default file location and environment
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads configuration from path (when it exists) and environment.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file path
func Path() string {
	if path := os.Getenv("ONLINE_STATUS_CONFIG"); path != "" {
		return path
	}
	return defaultPath("config.yaml")
}

// defaultPath resolves a file under the XDG config directory, falling back to ~/.config.
func defaultPath(name string) string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, AppName, name)
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", AppName, name)
	}

	return ""
}

// SettingsPath returns the location of the persisted local user settings.
func SettingsPath() string {
	if path := os.Getenv("ONLINE_STATUS_SETTINGS"); path != "" {
		return path
	}
	return defaultPath("settings.yaml")
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (env var, flag or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if baseURL := os.Getenv("ONLINE_STATUS_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{env: "ONLINE_STATUS_REQUEST_TIMEOUT", target: &cfg.RequestTimeout},
		{env: "ONLINE_STATUS_POLL_INTERVAL", target: &cfg.PollInterval},
		{env: "ONLINE_STATUS_HEARTBEAT_INTERVAL", target: &cfg.HeartbeatInterval},
		{env: "ONLINE_STATUS_IDLE_THRESHOLD", target: &cfg.IdleThreshold},
	}
	for _, d := range durations {
		value := os.Getenv(d.env)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.target = parsed
	}

	flags := []struct {
		env    string
		target *bool
	}{
		{env: "ONLINE_STATUS_QUIET", target: &cfg.Quiet},
		{env: "ONLINE_STATUS_DESKTOP", target: &cfg.DesktopNotifications},
		{env: "ONLINE_STATUS_INSECURE", target: &cfg.InsecureSkipVerify},
	}
	for _, f := range flags {
		value := os.Getenv(f.env)
		if value == "" {
			continue
		}
		parsed, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", f.env, err)
		}
		*f.target = parsed
	}

	if level := os.Getenv("ONLINE_STATUS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%q (use true/false)", value)
	}
}

// Validate checks a configuration that was modified after loading, e.g. by flags.
func (c *Config) Validate() error {
	return validate(c)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if cfg.IdleThreshold < 0 {
		return fmt.Errorf("idle_threshold must be non-negative")
	}

	if cfg.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("rate_limit.max_messages must be non-negative")
	}

	if cfg.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be non-negative")
	}

	if cfg.BatchWindow < 0 {
		return fmt.Errorf("batch_window must be non-negative")
	}

	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://")
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/knornslien/renovasjon-bridge/internal/constants"
)

// envPrefix is stripped from environment variables before they are merged
// over the file configuration, e.g. RENOVASJON_SERVICE__LOG_LEVEL.
const envPrefix = "RENOVASJON_"

// Config holds the application configuration
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	API      APIConfig      `koanf:"api"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Calendar CalendarConfig `koanf:"calendar"`
	OAuth    *oauth2.Config // From environment, only populated when calendar sync is enabled
}

// ServiceConfig holds the service configuration
type ServiceConfig struct {
	Port             int    `koanf:"port"`
	StateFile        string `koanf:"state_file"`
	LogLevel         string `koanf:"log_level"`
	RefreshOnStartup bool   `koanf:"refresh_on_startup"`
}

// APIConfig holds the Renovasjonsportal endpoint configuration
type APIConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// ScheduleConfig holds the refresh parameters
type ScheduleConfig struct {
	UpdateIntervalHours int `koanf:"update_interval_hours"`
	LookAheadDays       int `koanf:"look_ahead_days"`
}

// CalendarConfig holds the optional Google Calendar sync configuration
type CalendarConfig struct {
	Enabled    bool   `koanf:"enabled"`
	CalendarID string `koanf:"calendar_id"`
}

// defaults are applied before the config file and environment are merged
var defaults = map[string]interface{}{
	"service.port":                   8080,
	"service.state_file":             "data/bridge.db",
	"service.log_level":              "info",
	"service.refresh_on_startup":     true,
	"api.base_url":                   constants.DefaultBaseURL,
	"api.timeout_seconds":            30,
	"schedule.update_interval_hours": 12,
	"schedule.look_ahead_days":       90,
	"calendar.enabled":               false,
	"calendar.calendar_id":           "primary",
}

// Load reads the configuration file and environment variables
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Environment overrides: RENOVASJON_SECTION__KEY maps to section.key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Ensure the state file path is absolute
	if !filepath.IsAbs(cfg.Service.StateFile) {
		configDir := filepath.Dir(path)
		cfg.Service.StateFile = filepath.Join(configDir, "..", cfg.Service.StateFile)
	}

	// Google OAuth credentials come from the environment, never the file
	if cfg.Calendar.Enabled {
		cfg.OAuth = &oauth2.Config{
			ClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"),
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar.events",
				"https://www.googleapis.com/auth/calendar.calendarlist.readonly",
			},
			Endpoint: google.Endpoint,
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Service.Port < 1 || cfg.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Service.Port)
	}

	if cfg.Service.StateFile == "" {
		return fmt.Errorf("state file path is required")
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}

	if cfg.API.TimeoutSeconds < 1 {
		return fmt.Errorf("api timeout must be positive")
	}

	if cfg.Schedule.UpdateIntervalHours < 1 || cfg.Schedule.UpdateIntervalHours > 168 {
		return fmt.Errorf("update interval must be between 1 and 168 hours, got %d", cfg.Schedule.UpdateIntervalHours)
	}

	if cfg.Schedule.LookAheadDays < 1 || cfg.Schedule.LookAheadDays > 365 {
		return fmt.Errorf("look ahead days must be between 1 and 365, got %d", cfg.Schedule.LookAheadDays)
	}

	if cfg.Calendar.Enabled {
		if cfg.OAuth.ClientID == "" {
			return fmt.Errorf("GOOGLE_OAUTH_CLIENT_ID environment variable is required when calendar sync is enabled")
		}
		if cfg.OAuth.ClientSecret == "" {
			return fmt.Errorf("GOOGLE_OAUTH_CLIENT_SECRET environment variable is required when calendar sync is enabled")
		}
		if cfg.OAuth.RedirectURL == "" {
			return fmt.Errorf("GOOGLE_OAUTH_REDIRECT_URL environment variable is required when calendar sync is enabled")
		}
	}

	return nil
}

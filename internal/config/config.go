package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Input     InputConfig     `mapstructure:"input"`
	Web       WebConfig       `mapstructure:"web"`
	MediaInfo MediaInfoConfig `mapstructure:"mediainfo"`
}

// PathsConfig holds directory layout configuration
type PathsConfig struct {
	Root         string `mapstructure:"root"`          // common app-data root ("" = OS default)
	UserSettings string `mapstructure:"user_settings"` // optional override, must exist
}

// MetadataConfig holds metadata refresh configuration
type MetadataConfig struct {
	AllowInternetProviders bool `mapstructure:"allow_internet_providers"`
	MaxResumePercent       int  `mapstructure:"max_resume_percent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"` // VERBOSE, INFO, WARNING, ERROR
	Role  string `mapstructure:"role"`  // log file prefix, e.g. "Core-"
	File  bool   `mapstructure:"file"`  // async file sink enabled
	Trace bool   `mapstructure:"trace"` // stderr sink enabled
}

// InputConfig holds input hook configuration
type InputConfig struct {
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
}

// WebConfig holds the internet metadata provider configuration
type WebConfig struct {
	SearchURL string        `mapstructure:"search_url"` // {title} and {year} placeholders
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxAge    time.Duration `mapstructure:"max_age"`
}

// MediaInfoConfig holds the media probe configuration
type MediaInfoConfig struct {
	FFProbe string `mapstructure:"ffprobe"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Metadata: MetadataConfig{
			AllowInternetProviders: true,
			MaxResumePercent:       95,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Role:  "Core-",
			File:  true,
			Trace: false,
		},
		Input: InputConfig{
			InactivityTimeout: 5 * time.Second,
		},
		Web: WebConfig{
			UserAgent: "mediacenter/1.0",
			Timeout:   15 * time.Second,
			MaxAge:    7 * 24 * time.Hour,
		},
		MediaInfo: MediaInfoConfig{
			FFProbe: "ffprobe",
		},
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "mediacenter")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mediacenter")
	}
}

// LoadConfig loads configuration from file and environment. Config files are
// searched in dirs, or in the OS config dir and the working directory when
// dirs is empty.
func LoadConfig(dirs ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	v := newViper(cfg)

	if len(dirs) == 0 {
		dirs = []string{defaultConfigPath(), "."}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, cfg.Validate()
}

// newViper returns a viper instance with every key defaulted from cfg so
// environment overrides resolve for keys absent from the config file.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MEDIACENTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range settings(cfg) {
		v.SetDefault(key, value)
	}
	return v
}

// settings flattens cfg into viper keys (snake_case)
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"paths.root":                        cfg.Paths.Root,
		"paths.user_settings":               cfg.Paths.UserSettings,
		"metadata.allow_internet_providers": cfg.Metadata.AllowInternetProviders,
		"metadata.max_resume_percent":       cfg.Metadata.MaxResumePercent,
		"logging.level":                     cfg.Logging.Level,
		"logging.role":                      cfg.Logging.Role,
		"logging.file":                      cfg.Logging.File,
		"logging.trace":                     cfg.Logging.Trace,
		"input.inactivity_timeout":          cfg.Input.InactivityTimeout,
		"web.search_url":                    cfg.Web.SearchURL,
		"web.user_agent":                    cfg.Web.UserAgent,
		"web.timeout":                       cfg.Web.Timeout,
		"web.max_age":                       cfg.Web.MaxAge,
		"mediainfo.ffprobe":                 cfg.MediaInfo.FFProbe,
	}
}

// Validate rejects values no component can run with
func (c *Config) Validate() error {
	if c.Metadata.MaxResumePercent < 0 || c.Metadata.MaxResumePercent > 100 {
		return fmt.Errorf("metadata.max_resume_percent must be within 0..100, got %d", c.Metadata.MaxResumePercent)
	}
	if c.Input.InactivityTimeout <= 0 {
		return fmt.Errorf("input.inactivity_timeout must be positive, got %s", c.Input.InactivityTimeout)
	}
	return nil
}

// SaveConfig writes the configuration to dir/config.yaml. An empty dir
// selects the OS config directory.
func SaveConfig(cfg *Config, dir string) error {
	if dir == "" {
		dir = defaultConfigPath()
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for key, value := range settings(cfg) {
		v.Set(key, value)
	}

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

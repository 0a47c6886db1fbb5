package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIConfig holds settings for the maintenance backend.
type APIConfig struct {
	// BaseURL is the root URL of the REST API (e.g., https://fm.example.edu/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RateLimitPerSec caps outbound requests per second.
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
}

// NotificationsConfig holds push registration settings.
type NotificationsConfig struct {
	// Enabled is the user's notification permission for this device.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ProjectID binds push tokens to the backend's push project.
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
}

// CacheConfig locates the local read-through cache.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/maintenance, or "." if the home directory
// cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "maintenance")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/maintenance/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			TimeoutSec:      30,
			RateLimitPerSec: 5,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Cache: CacheConfig{
			Path: filepath.Join(configDir(), "cache.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "maintenance.log"),
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process
// environment. A missing file is not an error; variables that are
// already set are left untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// API_URL and PROJECT_ID from the environment override the file. If the
// file does not exist, defaults plus environment are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	def := defaultAppConfig()
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.rate_limit_per_sec", def.API.RateLimitPerSec)
	v.SetDefault("notifications.enabled", def.Notifications.Enabled)
	v.SetDefault("cache.path", def.Cache.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)

	// Keep the variable names the mobile build used.
	_ = v.BindEnv("api.base_url", "API_URL")
	_ = v.BindEnv("notifications.project_id", "PROJECT_ID")

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = def.API.TimeoutSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("notifications", cfg.Notifications)
	v.Set("cache", cfg.Cache)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	Webview   WebviewConfig   `yaml:"webview"`
	Script    ScriptConfig    `yaml:"script"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" yaml:"port"`
	Host            string        `envconfig:"HOST" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" yaml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// WebviewConfig holds defaults applied to created webviews.
type WebviewConfig struct {
	DefaultWidth  int           `envconfig:"WEBVIEW_WIDTH" yaml:"default_width"`
	DefaultHeight int           `envconfig:"WEBVIEW_HEIGHT" yaml:"default_height"`
	StartURL      string        `envconfig:"WEBVIEW_START_URL" yaml:"start_url"`
	CloseTimeout  time.Duration `envconfig:"WEBVIEW_CLOSE_TIMEOUT" yaml:"close_timeout"`
	MaxWebviews   int           `envconfig:"WEBVIEW_MAX" yaml:"max_webviews"`
}

// ScriptConfig holds renderer-side script execution limits.
type ScriptConfig struct {
	Timeout time.Duration `envconfig:"SCRIPT_TIMEOUT" yaml:"timeout"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. Later layers
// only override the values they set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Webview: WebviewConfig{
			DefaultWidth:  1280,
			DefaultHeight: 720,
			StartURL:      "about:blank",
			CloseTimeout:  5 * time.Second,
			MaxWebviews:   64,
		},
		Script: ScriptConfig{
			Timeout: 2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port must be set"))
	}
	if c.Webview.DefaultWidth <= 0 || c.Webview.DefaultHeight <= 0 {
		errs = append(errs, fmt.Errorf("default webview size must be positive, got %dx%d",
			c.Webview.DefaultWidth, c.Webview.DefaultHeight))
	}
	if c.Webview.CloseTimeout <= 0 {
		errs = append(errs, errors.New("webview close timeout must be positive"))
	}
	if c.Webview.MaxWebviews <= 0 {
		errs = append(errs, errors.New("max webviews must be positive"))
	}
	if c.Script.Timeout <= 0 {
		errs = append(errs, errors.New("script timeout must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit requires positive rps and burst"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

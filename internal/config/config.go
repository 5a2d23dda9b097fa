// ABOUTME: Configuration loading and parsing for zhilian-gateway.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Model     ModelConfig     `yaml:"model"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds listener address configuration.
type ServerConfig struct {
	ChatAddr string `yaml:"chat_addr"` // persistent client socket
	HTTPAddr string `yaml:"http_addr"` // registration API
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// HeartbeatConfig holds per-connection liveness timing.
type HeartbeatConfig struct {
	Interval   time.Duration `yaml:"-"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`

	// Raw string values for YAML unmarshaling
	IntervalRaw string `yaml:"interval"`
	TimeoutRaw  string `yaml:"timeout"`
}

// ModelConfig holds model backend configuration.
type ModelConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with working defaults.
func (c *Config) applyDefaults() {
	if c.Server.ChatAddr == "" {
		c.Server.ChatAddr = "0.0.0.0:8765"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8080"
	}
	if c.Heartbeat.IntervalRaw == "" {
		c.Heartbeat.IntervalRaw = "25s"
	}
	if c.Heartbeat.TimeoutRaw == "" {
		c.Heartbeat.TimeoutRaw = "10s"
	}
	if c.Heartbeat.MaxRetries == 0 {
		c.Heartbeat.MaxRetries = 3
	}
	if c.Model.Name == "" {
		c.Model.Name = "gpt-4o-mini"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Heartbeat.MaxRetries < 1 {
		return fmt.Errorf("heartbeat.max_retries must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	cfg.Heartbeat.Interval, err = time.ParseDuration(cfg.Heartbeat.IntervalRaw)
	if err != nil {
		return fmt.Errorf("parsing heartbeat interval %q: %w", cfg.Heartbeat.IntervalRaw, err)
	}

	cfg.Heartbeat.Timeout, err = time.ParseDuration(cfg.Heartbeat.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing heartbeat timeout %q: %w", cfg.Heartbeat.TimeoutRaw, err)
	}

	return nil
}

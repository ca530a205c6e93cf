package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDashboardURL is the dashboard of a local replica started by dfx
const DefaultDashboardURL = "http://127.0.0.1:4943/_/dashboard"

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the application configuration
type Config struct {
	LogLevel     string `yaml:"log_level"`
	OutputFormat string `yaml:"output_format"`

	// Dashboards to poll
	DashboardURLs   []string      `yaml:"dashboard_urls"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Stop watching a dashboard after this many failed refreshes in a row (0 = never)
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	// Canister filtering
	CanisterWhitelist []string `yaml:"canister_whitelist"` // List of canisters to show (empty = all canisters)

	// Port of the local HTTP gateway, used to show canister HTTP endpoints
	WebserverPort string `yaml:"webserver_port"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		LogLevel:               "info",
		OutputFormat:           getEnvAsString("OUTPUT_FORMAT", FormatText),
		DashboardURLs:          getEnvAsStringSlice("DASHBOARD_URLS", []string{DefaultDashboardURL}),
		RefreshInterval:        getEnvAsDuration("REFRESH_INTERVAL", 1500*time.Millisecond),
		RequestTimeout:         getEnvAsDuration("REQUEST_TIMEOUT", 5*time.Second),
		MaxBodyBytes:           int64(getEnvAsInt("MAX_BODY_BYTES", 8<<20)),
		MaxConsecutiveFailures: getEnvAsInt("MAX_CONSECUTIVE_FAILURES", 0),
		CanisterWhitelist:      getEnvAsStringSlice("CANISTER_WHITELIST", []string{}),
		WebserverPort:          getEnvAsString("WEBSERVER_PORT", ""),
	}
}

// LoadFile overlays the settings found in a YAML file on top of the current configuration.
// Keys missing from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	if c.LogLevel != "info" && c.LogLevel != "debug" {
		return fmt.Errorf("invalid log level: %s. Must be one of: info, debug", c.LogLevel)
	}

	switch c.OutputFormat {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("invalid output format: %s. Must be one of: text, json, yaml", c.OutputFormat)
	}

	if len(c.DashboardURLs) == 0 {
		return fmt.Errorf("no dashboard URLs configured")
	}
	for _, u := range c.DashboardURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("invalid dashboard URL: %s", u)
		}
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("max consecutive failures must not be negative, got %d", c.MaxConsecutiveFailures)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsCanisterAllowed checks if a canister is in the whitelist (or if whitelist is empty, all canisters are allowed)
func (c *Config) IsCanisterAllowed(canisterID string) bool {
	// If whitelist is empty, all canisters are allowed
	if len(c.CanisterWhitelist) == 0 {
		return true
	}

	for _, allowed := range c.CanisterWhitelist {
		if allowed == canisterID {
			return true
		}
	}

	return false
}

// getEnvAsString reads an environment variable or returns the default value if not set
func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable and returns it as an integer,
// or returns the default value if not set or invalid
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration reads an environment variable as a Go duration ("1500ms", "5s"),
// or returns the default value if not set or invalid
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsStringSlice reads an environment variable as a comma-separated list,
// or returns the default value if not set
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

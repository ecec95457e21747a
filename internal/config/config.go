// Package config loads and validates the flowercare CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Scan     ScanConfig    `yaml:"scan"`
	Device   DeviceConfig  `yaml:"device"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Influx   InfluxConfig  `yaml:"influx"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the scan duration.
func (c ScanConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeviceConfig selects a default sensor.
type DeviceConfig struct {
	Address string `yaml:"address"`
}

// MonitorConfig holds continuous-monitoring settings.
type MonitorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Interval returns the poll interval.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// InfluxConfig holds the optional InfluxDB sink settings. The sink is
// disabled while URL is empty.
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// Enabled reports whether a sink is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "flowercare")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Scan: ScanConfig{
			TimeoutSeconds: 10,
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 60,
		},
		Influx: InfluxConfig{
			Measurement: "flowercare",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Scan.TimeoutSeconds <= 0 {
		return fmt.Errorf("scan.timeout_seconds must be > 0")
	}

	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.interval_seconds must be > 0")
	}

	if c.Influx.Enabled() {
		if c.Influx.Org == "" {
			return fmt.Errorf("influx.org must be set when influx.url is set")
		}
		if c.Influx.Bucket == "" {
			return fmt.Errorf("influx.bucket must be set when influx.url is set")
		}
	}

	return nil
}

// Package config handles YAML configuration for diagaudit runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Version        string       `yaml:"version"`
	Environment    string       `yaml:"environment"`
	SubscriptionID string       `yaml:"subscription_id"`
	PolicyPath     string       `yaml:"policy_path"`
	ExemptionsDir  string       `yaml:"exemptions_dir,omitempty"`
	Audit          AuditConfig  `yaml:"audit"`
	Output         OutputConfig `yaml:"output"`
	OTEL           OTELConfig   `yaml:"otel"`
	Log            LogConfig    `yaml:"log"`
}

// AuditConfig holds audit run settings.
type AuditConfig struct {
	Concurrency int    `yaml:"concurrency"`
	IntervalStr string `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
	WorkspaceID string `yaml:"workspace_id,omitempty"` // Log Analytics destination for remediation
}

// OutputConfig controls where rendered reports land.
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
	History string   `yaml:"history,omitempty"` // directory of the run history store
}

// OTELConfig holds OpenTelemetry export settings.
type OTELConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseInterval(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Audit.Concurrency == 0 {
		cfg.Audit.Concurrency = 8
	}
	if cfg.Audit.IntervalStr == "" {
		cfg.Audit.IntervalStr = "1h"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"json", "html"}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "reports"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "diagaudit"
	}
	if cfg.OTEL.SampleRate == 0 {
		cfg.OTEL.SampleRate = 1.0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseInterval(cfg *Config) error {
	interval, err := time.ParseDuration(cfg.Audit.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse audit interval %q: %w", cfg.Audit.IntervalStr, err)
	}
	cfg.Audit.Interval = interval
	return nil
}

// Validate ensures config has required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}
	if c.Audit.Concurrency < 1 {
		return fmt.Errorf("audit concurrency must be at least 1")
	}
	for _, f := range c.Output.Formats {
		if f != "json" && f != "html" {
			return fmt.Errorf("unsupported output format %q", f)
		}
	}
	return nil
}

// Package config defines the configuration surface for batchdl: CLI
// flags, BATCHDL_-prefixed environment variables, and an optional YAML
// file, merged in Default/LoadFromFile/LoadFromEnv/Merge order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the batchdl CLI.
type Config struct {
	BaseURL string `yaml:"base_url"`
	Count   int    `yaml:"count"`
	Mode    string `yaml:"mode"`
	DestDir string `yaml:"dest_dir"`

	ConcBefore int `yaml:"conc_before"`
	ConcWeak   int `yaml:"conc_weak"`
	ConcAfter  int `yaml:"conc_after"`

	ProbeEveryN int `yaml:"probe_every_n"`

	// RateLimit caps outbound requests per second for the whole batch.
	// Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Retry RetryConfig `yaml:"retry"`

	MetricsAddr string `yaml:"metrics_addr"`
	ReportPath  string `yaml:"report_path"`
	CSVDir      string `yaml:"csv_dir"`
}

// RetryConfig defines HTTP retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Mode:        "WIFI_ONLY",
		DestDir:     ".",
		ConcBefore:  3,
		ConcWeak:    2,
		ConcAfter:   8,
		ProbeEveryN: 10,
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	BaseURL     string          `yaml:"base_url"`
	Count       int             `yaml:"count"`
	Mode        string          `yaml:"mode"`
	DestDir     string          `yaml:"dest_dir"`
	ConcBefore  int             `yaml:"conc_before"`
	ConcWeak    int             `yaml:"conc_weak"`
	ConcAfter   int             `yaml:"conc_after"`
	ProbeEveryN int             `yaml:"probe_every_n"`
	RateLimit   float64         `yaml:"rate_limit"`
	RateBurst   int             `yaml:"rate_burst"`
	Retry       yamlRetryConfig `yaml:"retry"`
	MetricsAddr string          `yaml:"metrics_addr"`
	ReportPath  string          `yaml:"report_path"`
	CSVDir      string          `yaml:"csv_dir"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file, layered on top of
// Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if yc.Count != 0 {
		cfg.Count = yc.Count
	}
	if yc.Mode != "" {
		cfg.Mode = yc.Mode
	}
	if yc.DestDir != "" {
		cfg.DestDir = yc.DestDir
	}
	if yc.ConcBefore != 0 {
		cfg.ConcBefore = yc.ConcBefore
	}
	if yc.ConcWeak != 0 {
		cfg.ConcWeak = yc.ConcWeak
	}
	if yc.ConcAfter != 0 {
		cfg.ConcAfter = yc.ConcAfter
	}
	if yc.ProbeEveryN != 0 {
		cfg.ProbeEveryN = yc.ProbeEveryN
	}
	if yc.RateLimit != 0 {
		cfg.RateLimit = yc.RateLimit
	}
	if yc.RateBurst != 0 {
		cfg.RateBurst = yc.RateBurst
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if yc.MetricsAddr != "" {
		cfg.MetricsAddr = yc.MetricsAddr
	}
	if yc.ReportPath != "" {
		cfg.ReportPath = yc.ReportPath
	}
	if yc.CSVDir != "" {
		cfg.CSVDir = yc.CSVDir
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables (BATCHDL_ prefix) onto c.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("BATCHDL_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("BATCHDL_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_COUNT: %w", err)
		}
		c.Count = n
	}
	if v := os.Getenv("BATCHDL_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("BATCHDL_DEST_DIR"); v != "" {
		c.DestDir = v
	}
	if v := os.Getenv("BATCHDL_CONC_BEFORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_CONC_BEFORE: %w", err)
		}
		c.ConcBefore = n
	}
	if v := os.Getenv("BATCHDL_CONC_WEAK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_CONC_WEAK: %w", err)
		}
		c.ConcWeak = n
	}
	if v := os.Getenv("BATCHDL_CONC_AFTER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_CONC_AFTER: %w", err)
		}
		c.ConcAfter = n
	}
	if v := os.Getenv("BATCHDL_PROBE_EVERY_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_PROBE_EVERY_N: %w", err)
		}
		c.ProbeEveryN = n
	}
	if v := os.Getenv("BATCHDL_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v := os.Getenv("BATCHDL_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	if v := os.Getenv("BATCHDL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("BATCHDL_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("BATCHDL_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BATCHDL_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	if v := os.Getenv("BATCHDL_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("BATCHDL_REPORT_PATH"); v != "" {
		c.ReportPath = v
	}
	if v := os.Getenv("BATCHDL_CSV_DIR"); v != "" {
		c.CSVDir = v
	}
	return nil
}

// Validate checks the configuration is sound. Invalid configuration
// fails fast at batch entry rather than mid-run.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if c.Count <= 0 {
		return errors.New("config: count must be positive")
	}
	if c.Mode != "WIFI_ONLY" && c.Mode != "AUTO_SWITCH" {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.ConcBefore <= 0 || c.ConcWeak <= 0 || c.ConcAfter <= 0 {
		return errors.New("config: concurrency tiers must be positive")
	}
	if c.ProbeEveryN < 2 {
		return errors.New("config: probe_every_n must be >= 2")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate_limit must be >= 0")
	}
	if c.RateBurst < 0 {
		return errors.New("config: rate_burst must be >= 0")
	}
	return nil
}

// Merge merges override values into c, returning a new Config. Zero
// values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.Count != 0 {
		c.Count = override.Count
	}
	if override.Mode != "" {
		c.Mode = override.Mode
	}
	if override.DestDir != "" {
		c.DestDir = override.DestDir
	}
	if override.ConcBefore != 0 {
		c.ConcBefore = override.ConcBefore
	}
	if override.ConcWeak != 0 {
		c.ConcWeak = override.ConcWeak
	}
	if override.ConcAfter != 0 {
		c.ConcAfter = override.ConcAfter
	}
	if override.ProbeEveryN != 0 {
		c.ProbeEveryN = override.ProbeEveryN
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.RateBurst != 0 {
		c.RateBurst = override.RateBurst
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	if override.ReportPath != "" {
		c.ReportPath = override.ReportPath
	}
	if override.CSVDir != "" {
		c.CSVDir = override.CSVDir
	}
	return c
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. Values come from an
// optional YAML file and are then overridden by FAMILYAPP_* environment
// variables.
type Config struct {
	// Port is the HTTP listen port.
	Port string `yaml:"port"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Timezone is the IANA zone used for families created without one.
	Timezone string `yaml:"timezone"`

	// ExpansionCap bounds how many dates a single recurrence expansion or
	// all-day span may enumerate.
	ExpansionCap int `yaml:"expansion_cap"`

	// FeedPageDays is the window length served per rolling feed page.
	FeedPageDays int `yaml:"feed_page_days"`

	// TokenSecret signs device tokens (HS256).
	TokenSecret string `yaml:"token_secret"`

	// TokenTTL is how long newly issued device tokens stay valid.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	return &Config{
		Port:         "8080",
		DBPath:       "familyapp.db",
		LogLevel:     "info",
		LogFormat:    "text",
		Timezone:     "UTC",
		ExpansionCap: 365,
		FeedPageDays: 14,
		TokenTTL:     180 * 24 * time.Hour,
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := Default()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.ExpansionCap <= 0 {
		c.ExpansionCap = d.ExpansionCap
	}
	if c.FeedPageDays <= 0 {
		c.FeedPageDays = d.FeedPageDays
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
}

// Validate reports configuration that cannot be defaulted.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("token secret is required (FAMILYAPP_TOKEN_SECRET)")
	}
	if len(c.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("FAMILYAPP_PORT", &c.Port)
	str("FAMILYAPP_DB_PATH", &c.DBPath)
	str("FAMILYAPP_LOG_LEVEL", &c.LogLevel)
	str("FAMILYAPP_LOG_FORMAT", &c.LogFormat)
	str("FAMILYAPP_TIMEZONE", &c.Timezone)
	str("FAMILYAPP_TOKEN_SECRET", &c.TokenSecret)

	if v, ok := lookup("FAMILYAPP_EXPANSION_CAP"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAMILYAPP_EXPANSION_CAP: %w", err)
		}
		c.ExpansionCap = n
	}
	if v, ok := lookup("FAMILYAPP_FEED_PAGE_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAMILYAPP_FEED_PAGE_DAYS: %w", err)
		}
		c.FeedPageDays = n
	}
	if v, ok := lookup("FAMILYAPP_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FAMILYAPP_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	return nil
}

// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Addr    string       `yaml:"addr"`
	DB      string       `yaml:"db"`
	Log     string       `yaml:"log"`
	Admin   string       `yaml:"admin"`
	Metrics bool         `yaml:"metrics"`
	Notify  NotifyConfig `yaml:"notify"`
}

// NotifyConfig holds the expiry notification settings.
type NotifyConfig struct {
	SendGridKey string `yaml:"sendgrid_key"`
	BaseURL     string `yaml:"base_url"`
	To          string `yaml:"to"`
	From        string `yaml:"from"`
	Schedule    string `yaml:"schedule"`
	Days        int    `yaml:"days"`
}

// Default values.
const (
	DefaultAddr     = ":8080"
	DefaultDB       = "alergo.db"
	DefaultAdmin    = "admin"
	DefaultFrom     = "notifications@alergo.local"
	DefaultSchedule = "0 7 * * 1"
	DefaultDays     = 180
	DefaultBaseURL  = "https://api.sendgrid.com"
)

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Addr:  DefaultAddr,
		DB:    DefaultDB,
		Admin: DefaultAdmin,
		Notify: NotifyConfig{
			BaseURL:  DefaultBaseURL,
			From:     DefaultFrom,
			Schedule: DefaultSchedule,
			Days:     DefaultDays,
		},
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it. A .env file in the working directory is loaded if present, and
// environment variables override everything read so far.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = getenvWithDefault("ALERGO_ADDR", c.Addr)
	c.DB = getenvWithDefault("ALERGO_DB", c.DB)
	c.Log = getenvWithDefault("ALERGO_LOG", c.Log)
	c.Admin = getenvWithDefault("ALERGO_ADMIN", c.Admin)
	c.Notify.SendGridKey = getenvWithDefault("SENDGRID_API_KEY", c.Notify.SendGridKey)
	c.Notify.To = getenvWithDefault("ALERGO_NOTIFY_TO", c.Notify.To)
	c.Notify.From = getenvWithDefault("ALERGO_NOTIFY_FROM", c.Notify.From)
	c.Notify.Schedule = getenvWithDefault("ALERGO_NOTIFY_SCHEDULE", c.Notify.Schedule)

	if v := os.Getenv("ALERGO_NOTIFY_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ALERGO_NOTIFY_DAYS must be an integer: %w", err)
		}
		c.Notify.Days = days
	}
	if v := os.Getenv("ALERGO_METRICS"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALERGO_METRICS must be a boolean: %w", err)
		}
		c.Metrics = on
	}
	return nil
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Addr == "" {
		return errors.New("listen address must not be empty")
	}
	if c.DB == "" {
		return errors.New("database path must not be empty")
	}
	if c.Admin == "" {
		return errors.New("admin username must not be empty")
	}
	if c.Notify.Days <= 0 {
		return fmt.Errorf("notification days must be positive, got %d", c.Notify.Days)
	}
	if c.Notify.Schedule != "" {
		if _, err := cron.ParseStandard(c.Notify.Schedule); err != nil {
			return fmt.Errorf("invalid notification schedule %q: %w", c.Notify.Schedule, err)
		}
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

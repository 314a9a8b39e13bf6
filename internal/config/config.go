package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Target types understood by the syndicator.
const (
	TargetBluesky  = "bluesky"
	TargetMastodon = "mastodon"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// Me is the canonical URL of the publication.
	Me string `yaml:"me"`

	// DatabasePath is the SQLite post store file.
	DatabasePath string `yaml:"database"`

	// Micropub configures the remote update endpoint. When Endpoint is empty
	// updates are applied directly to the post store.
	Micropub MicropubConfig `yaml:"micropub"`

	// BatchDelay is the pause between consecutive posts in a batch.
	BatchDelay time.Duration `yaml:"batch_delay"`

	// Schedule is a cron expression for periodic batches. Empty disables it.
	Schedule string `yaml:"schedule"`

	// EventsURL is a WebSocket stream of publish events. Empty disables it.
	EventsURL string `yaml:"events_url"`

	// Targets is the syndication target registry.
	Targets []TargetConfig `yaml:"targets"`
}

// MicropubConfig holds the Micropub endpoint settings.
type MicropubConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// TargetConfig describes one syndication target. Which fields are required
// depends on Type.
type TargetConfig struct {
	Type string `yaml:"type"`

	// RatePerSec caps requests to the service. Zero means unlimited.
	RatePerSec float64 `yaml:"rate_per_sec"`

	// Bluesky
	Handle   string `yaml:"handle"`
	Password string `yaml:"password"`
	PDS      string `yaml:"pds"`

	// Mastodon
	Instance    string `yaml:"instance"`
	User        string `yaml:"user"`
	AccessToken string `yaml:"access_token"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:         3000,
		DatabasePath: "syndicator.db",
		BatchDelay:   2 * time.Second,
	}
}

// Load reads the YAML file at path, if any, on top of the defaults and then
// applies environment overrides. A missing file is an error only when path
// was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("SYNDICATOR_BATCH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SYNDICATOR_BATCH_DELAY: %w", err)
		}
		cfg.BatchDelay = d
	}

	for env, dst := range map[string]*string{
		"SYNDICATOR_ME":         &cfg.Me,
		"SYNDICATOR_DATABASE":   &cfg.DatabasePath,
		"SYNDICATOR_SCHEDULE":   &cfg.Schedule,
		"SYNDICATOR_EVENTS_URL": &cfg.EventsURL,
		"MICROPUB_ENDPOINT":     &cfg.Micropub.Endpoint,
		"MICROPUB_TOKEN":        &cfg.Micropub.Token,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate checks the configuration for values the services cannot use.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, errors.New("batch delay must not be negative"))
	}

	for i, t := range c.Targets {
		if t.RatePerSec < 0 {
			errs = append(errs, fmt.Errorf("target %d: rate_per_sec must not be negative", i))
		}
		switch t.Type {
		case TargetBluesky:
			if t.Handle == "" || t.Password == "" {
				errs = append(errs, fmt.Errorf("target %d: bluesky requires handle and password", i))
			}
		case TargetMastodon:
			if t.Instance == "" || t.User == "" || t.AccessToken == "" {
				errs = append(errs, fmt.Errorf("target %d: mastodon requires instance, user and access_token", i))
			}
		default:
			errs = append(errs, fmt.Errorf("target %d: unknown type %q", i, t.Type))
		}
	}

	return errors.Join(errs...)
}

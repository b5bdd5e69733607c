// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for stampede runs.
//
// Configuration is loaded from a single file specified by:
//   - STAMPEDE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. A load test must be
// reproducible from its config file alone, so environment variables
// never override file values.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stampede-labs/stampede/loadtest"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the master configuration for a stampede run.
type Config struct {
	// Homeserver configures the target Matrix server.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Users configures the simulated population.
	Users UsersConfig `yaml:"users"`

	// Workload configures task mix and pacing.
	Workload WorkloadConfig `yaml:"workload"`
}

// HomeserverConfig configures the target Matrix server.
type HomeserverConfig struct {
	// URL is the homeserver base URL, e.g. "https://matrix.example.com".
	URL string `yaml:"url"`

	// APIVersion is the client-server API version path segment.
	// Default: v3
	APIVersion string `yaml:"api_version"`

	// RequestTimeout bounds each HTTP request. It must exceed the sync
	// long-poll window or every poll is cut off locally.
	// Default: 60s
	RequestTimeout Duration `yaml:"request_timeout"`
}

// UsersConfig configures the simulated population.
type UsersConfig struct {
	// RosterFile is the users CSV (username,password).
	RosterFile string `yaml:"roster_file"`

	// TokensFile is where access tokens and sync positions are
	// persisted between runs (username,user_id,access_token,sync_token).
	// Default: tokens.csv
	TokensFile string `yaml:"tokens_file"`

	// Count limits how many roster entries are simulated.
	// Zero means the whole roster.
	Count int `yaml:"count"`

	// Register creates accounts that do not exist yet instead of
	// failing the login.
	Register bool `yaml:"register"`

	// SpawnInterval is the stagger between user start-ups, spreading
	// the initial login burst.
	// Default: 100ms
	SpawnInterval Duration `yaml:"spawn_interval"`
}

// WorkloadConfig configures task mix and pacing.
type WorkloadConfig struct {
	// Duration bounds the run. Zero runs until interrupted.
	Duration Duration `yaml:"duration"`

	// ThinkTime is the mean pause between tasks.
	// Default: 5s
	ThinkTime Duration `yaml:"think_time"`

	// AvatarDir holds image files for the change-avatar task.
	// Empty disables that task.
	AvatarDir string `yaml:"avatar_dir"`

	// Weights sets the relative task frequencies. Omitted weights use
	// the standard chat-population mix.
	Weights loadtest.TaskWeights `yaml:"weights"`
}

// Default returns the default configuration. These defaults ensure all
// fields have sensible zero-values; the homeserver URL and roster file
// still have to come from the config file.
func Default() *Config {
	return &Config{
		Homeserver: HomeserverConfig{
			APIVersion:     "v3",
			RequestTimeout: Duration(60 * time.Second),
		},
		Users: UsersConfig{
			TokensFile:    "tokens.csv",
			SpawnInterval: Duration(100 * time.Millisecond),
		},
		Workload: WorkloadConfig{
			ThinkTime: Duration(5 * time.Second),
			Weights:   loadtest.DefaultTaskWeights(),
		},
	}
}

// Load loads configuration from the STAMPEDE_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("STAMPEDE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("STAMPEDE_CONFIG environment variable not set; " +
			"set it to the path of your stampede.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging the
// file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	parsed, err := url.Parse(c.Homeserver.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("homeserver.url %q is not an absolute URL", c.Homeserver.URL)
	}
	if c.Users.RosterFile == "" {
		return fmt.Errorf("users.roster_file is required")
	}
	if c.Users.Count < 0 {
		return fmt.Errorf("users.count must not be negative")
	}
	if c.Homeserver.RequestTimeout < 0 {
		return fmt.Errorf("homeserver.request_timeout must not be negative")
	}
	return nil
}

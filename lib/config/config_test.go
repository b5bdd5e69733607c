// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stampede.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
homeserver:
  url: https://matrix.example.com
  request_timeout: 90s
users:
  roster_file: users.csv
  count: 500
  register: true
  spawn_interval: 250ms
workload:
  duration: 10m
  think_time: 2s
  avatar_dir: ./avatars
  weights:
    do_nothing: 5
    send_text: 2
`)
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		if cfg.Homeserver.URL != "https://matrix.example.com" {
			t.Errorf("URL = %q", cfg.Homeserver.URL)
		}
		if cfg.Homeserver.RequestTimeout.Std() != 90*time.Second {
			t.Errorf("RequestTimeout = %v", cfg.Homeserver.RequestTimeout.Std())
		}
		if cfg.Users.Count != 500 || !cfg.Users.Register {
			t.Errorf("users = %+v", cfg.Users)
		}
		if cfg.Users.SpawnInterval.Std() != 250*time.Millisecond {
			t.Errorf("SpawnInterval = %v", cfg.Users.SpawnInterval.Std())
		}
		if cfg.Workload.Duration.Std() != 10*time.Minute {
			t.Errorf("Duration = %v", cfg.Workload.Duration.Std())
		}
		if cfg.Workload.Weights.DoNothing != 5 || cfg.Workload.Weights.SendText != 2 {
			t.Errorf("weights = %+v", cfg.Workload.Weights)
		}
	})

	t.Run("defaults fill the gaps", func(t *testing.T) {
		path := writeConfig(t, `
homeserver:
  url: http://localhost:6167
users:
  roster_file: users.csv
`)
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		if cfg.Homeserver.APIVersion != "v3" {
			t.Errorf("APIVersion = %q, want v3", cfg.Homeserver.APIVersion)
		}
		if cfg.Homeserver.RequestTimeout.Std() != 60*time.Second {
			t.Errorf("RequestTimeout = %v, want 60s", cfg.Homeserver.RequestTimeout.Std())
		}
		if cfg.Users.TokensFile != "tokens.csv" {
			t.Errorf("TokensFile = %q", cfg.Users.TokensFile)
		}
		if cfg.Workload.Weights.DoNothing <= 0 {
			t.Error("default weights should be non-empty")
		}
	})

	t.Run("missing homeserver url", func(t *testing.T) {
		path := writeConfig(t, `
users:
  roster_file: users.csv
`)
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("missing roster file", func(t *testing.T) {
		path := writeConfig(t, `
homeserver:
  url: http://localhost:6167
`)
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("relative homeserver url", func(t *testing.T) {
		path := writeConfig(t, `
homeserver:
  url: matrix.example.com
users:
  roster_file: users.csv
`)
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected validation error for URL without scheme")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, `
homeserver:
  url: http://localhost:6167
  request_timeout: ninety seconds
users:
  roster_file: users.csv
`)
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected parse error for invalid duration")
		}
	})
}

func TestLoadRequiresEnv(t *testing.T) {
	t.Setenv("STAMPEDE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when STAMPEDE_CONFIG is unset")
	}
}

// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Stampede drives a population of simulated Matrix chat users against
// a homeserver. Each user logs in (or registers), syncs, and then runs
// a weighted mix of chat behaviors until the run ends. Access tokens
// are persisted between runs so repeated tests reuse sessions instead
// of hammering /login.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/stampede-labs/stampede/lib/config"
	"github.com/stampede-labs/stampede/lib/rlimit"
	"github.com/stampede-labs/stampede/lib/roster"
	"github.com/stampede-labs/stampede/loadtest"
	"github.com/stampede-labs/stampede/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		userCount  int
		duration   time.Duration
		register   bool
		verbose    bool
	)

	pflag.StringVar(&configPath, "config", "", "path to stampede.yaml (or set STAMPEDE_CONFIG)")
	pflag.IntVar(&userCount, "users", 0, "override users.count from the config")
	pflag.DurationVar(&duration, "duration", 0, "override workload.duration from the config")
	pflag.BoolVar(&register, "register", false, "register missing accounts instead of failing the login")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.Parse()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if userCount > 0 {
		cfg.Users.Count = userCount
	}
	if duration > 0 {
		cfg.Workload.Duration = config.Duration(duration)
	}
	if register {
		cfg.Users.Register = true
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if limit, err := rlimit.RaiseNoFile(); err != nil {
		logger.Warn("could not raise file descriptor limit", "error", err)
	} else {
		logger.Info("file descriptor limit", "limit", limit)
	}

	accounts, err := roster.LoadAccounts(cfg.Users.RosterFile)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	if cfg.Users.Count > 0 && cfg.Users.Count < len(accounts) {
		accounts = accounts[:cfg.Users.Count]
	}
	if len(accounts) == 0 {
		return fmt.Errorf("roster %s has no accounts", cfg.Users.RosterFile)
	}

	store := loadtest.NewCredentialStore(nil)
	if err := roster.LoadTokens(cfg.Users.TokensFile, store); err != nil {
		return fmt.Errorf("loading tokens: %w", err)
	}
	logger.Info("starting run",
		"homeserver", cfg.Homeserver.URL,
		"users", len(accounts),
		"resumed_sessions", store.Len())

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL:  cfg.Homeserver.URL,
		APIVersion:     cfg.Homeserver.APIVersion,
		Logger:         logger,
		RequestTimeout: cfg.Homeserver.RequestTimeout.Std(),
	})
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cfg.Workload.Duration.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	stats := loadtest.NewStats()
	var wg sync.WaitGroup

	spawn := time.NewTicker(max(cfg.Users.SpawnInterval.Std(), time.Millisecond))
	defer spawn.Stop()

spawning:
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			break spawning
		case <-spawn.C:
		}

		wg.Add(1)
		go func(account roster.Account) {
			defer wg.Done()
			runUser(ctx, client, store, stats, logger, cfg, account)
		}(account)
	}

	wg.Wait()

	if err := roster.SaveTokens(cfg.Users.TokensFile, store); err != nil {
		logger.Error("failed to save tokens", "path", cfg.Users.TokensFile, "error", err)
	}
	stats.LogSummary(logger)
	return nil
}

// runUser is one simulated user's whole lifecycle: authenticate,
// start syncing, run the workload until the context ends.
func runUser(ctx context.Context, client *messaging.Client, store *loadtest.CredentialStore, stats *loadtest.Stats, logger *slog.Logger, cfg *config.Config, account roster.Account) {
	user, err := loadtest.NewUser(client, store, loadtest.UserConfig{
		Username: account.Username,
		Password: account.Password,
		Logger:   logger,
		Stats:    stats,
	})
	if err != nil {
		logger.Error("cannot create user", "username", account.Username, "error", err)
		return
	}

	if err := authenticate(ctx, user, cfg.Users.Register); err != nil {
		return
	}

	if err := user.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("initial sync failed", "username", account.Username, "error", err)
	}
	if err := user.StartSync(ctx); err != nil {
		return
	}
	defer user.StopSync()

	workload, err := loadtest.NewWorkload(user, loadtest.WorkloadConfig{
		Weights:   cfg.Workload.Weights,
		ThinkTime: cfg.Workload.ThinkTime.Std(),
		AvatarDir: cfg.Workload.AvatarDir,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("cannot create workload", "username", account.Username, "error", err)
		return
	}
	workload.Run(ctx)
}

// authenticate brings the user to an authenticated state: resumed
// sessions are used as-is, otherwise log in, and when registration is
// enabled an unknown account is created on the spot.
func authenticate(ctx context.Context, user *loadtest.User, register bool) error {
	if user.Authenticated() {
		return nil
	}

	err := user.Login(ctx)
	if err == nil {
		return nil
	}
	if !register {
		return err
	}
	if !messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
		return err
	}
	return user.Register(ctx)
}

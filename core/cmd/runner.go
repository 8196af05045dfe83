// Package cmd runs a configured Telegram app until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/facetbot/core/buildinfo"
	coreconfig "github.com/m3rciful/facetbot/core/config"
	"github.com/m3rciful/facetbot/core/logger"
	coretelegram "github.com/m3rciful/facetbot/core/telegram"
)

// DefaultConfigEnv names the variable consulted when no path flag is given.
const DefaultConfigEnv = "CONFIG_PATH"

// ResolveConfigPath prefers flag, then $CONFIG_PATH, then def.
func ResolveConfigPath(flag, def string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(DefaultConfigEnv); p != "" {
		return p
	}
	return def
}

// Options describe how the app is assembled and run.
type Options struct {
	Config *coreconfig.Config

	// Build assembles the bot once infrastructure is up. ctx ends on shutdown.
	Build func(ctx context.Context, cfg *coreconfig.Config) (coretelegram.RunOptions, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run builds the bot and blocks until a shutdown signal arrives.
func Run(opts Options) error {
	if opts.Config == nil {
		return errors.New("cmd: config is required")
	}
	if opts.Build == nil {
		return errors.New("cmd: Build is required")
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	runOpts, err := opts.Build(ctx, opts.Config)
	if err != nil {
		return fmt.Errorf("cmd: build failed: %w", err)
	}
	runOpts.Config = opts.Config

	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.CompApp, "ready",
			slog.String("status", "ok"),
			slog.String("version", buildinfo.Version),
			slog.String("commit", buildinfo.Commit),
			slog.Duration("duration", logger.Took(startedAt)),
		)
		return nil
	}
	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.CompApp, "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command seitokai runs a Guilded bot with an operational HTTP endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/seitokai/internal/config"
	"github.com/ManuGH/seitokai/internal/daemon"
	"github.com/ManuGH/seitokai/internal/health"
	sklog "github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/version"
	"github.com/rs/zerolog"
)

// envConfigPath names a config file when -config is not given.
const envConfigPath = "SEITOKAI_CONFIG"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	sklog.Configure(sklog.Config{
		Level:   "info",
		Service: "seitokai",
		Version: version.Version,
	})
	logger := sklog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, logger, resolveConfigPath(*configPath))
	stop()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
		os.Exit(1)
	}
	logger.Info().Msg("seitokai exiting")
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(envConfigPath, ""))
}

func run(ctx context.Context, logger zerolog.Logger, configPath string) error {
	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration from %q: %w", configPath, err)
	}

	sklog.Configure(sklog.Config{
		Level:   cfg.LogLevel,
		Service: "seitokai",
		Version: cfg.Version,
	})

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Msg("loaded configuration")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("rest", cfg.REST.BaseURL).
		Str("gateway", cfg.Gateway.URL).
		Str("cursor", cfg.Cursor.Backend).
		Str("cache", cfg.Cache.Backend).
		Str("ops", cfg.Ops.ListenAddr).
		Msg("starting seitokai")

	rt, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}

	mgr, err := daemon.NewManager(daemon.Deps{
		Logger: logger,
		Bot:    rt.bot,
		Ops:    rt.ops,
	})
	if err != nil {
		return errors.Join(fmt.Errorf("create daemon manager: %w", err), rt.close(context.WithoutCancel(ctx)))
	}
	rt.registerHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt.applyConfig)
	return app.Run(ctx)
}

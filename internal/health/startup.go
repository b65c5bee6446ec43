// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/seitokai/internal/config"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the bot connects.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithContext(ctx, log.WithComponent("startup-check"))
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkCursorPath(logger, cfg.Cursor); err != nil {
		return fmt.Errorf("cursor store check failed: %w", err)
	}

	if cfg.Cache.Backend == "memory" {
		logger.Debug().Dur("ttl", cfg.Cache.TTL).Msg("message cache is in-process only")
	}
	if !cfg.Gateway.Reconnect {
		logger.Warn().Msg("gateway reconnect disabled; the daemon stops on the first disconnect")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

// checkCursorPath makes sure the directory holding a persistent cursor exists
// and is writable.
func checkCursorPath(logger zerolog.Logger, cfg config.CursorConfig) error {
	if cfg.Backend == "memory" {
		logger.Warn().Msg("gateway cursor is kept in memory; missed events are not replayed after a restart")
		return nil
	}

	dir := filepath.Dir(cfg.Path)
	if cfg.Backend == "badger" {
		dir = cfg.Path
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %w)", dir, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("backend", cfg.Backend).Str("path", cfg.Path).Msg("cursor directory is writable")
	return nil
}

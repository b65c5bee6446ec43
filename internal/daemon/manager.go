// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the process lifecycle: it runs the bot and the ops
// server, and tears everything down in order on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/seitokai/internal/bot"
	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting the bot and servers, handling shutdown.
type Manager interface {
	// Start runs the bot and the ops server and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully stops the ops server, the bot and runs hooks
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type manager struct {
	deps            Deps
	shutdownTimeout time.Duration

	shutdownHooks []namedHook
	workers       sync.WaitGroup

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given dependencies.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	timeout := deps.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	return &manager{
		deps:            deps,
		shutdownTimeout: timeout,
		logger:          deps.Logger.With().Str("component", "manager").Logger(),
		shutdownHooks:   make([]namedHook, 0),
	}, nil
}

// Start runs the bot and the ops server and blocks until ctx is cancelled,
// the ops server fails, or the bot stops.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Dur("shutdown_timeout", m.shutdownTimeout).
		Bool("ops", m.deps.Ops != nil).
		Msg("Starting daemon manager")

	opsErr := make(chan error, 1)
	if m.deps.Ops != nil {
		m.startOpsServer(opsErr)
	}

	botDone := make(chan error, 1)
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		botDone <- m.deps.Bot.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-opsErr:
		m.logger.Error().Err(runErr).Msg("Ops server error, initiating shutdown")
	case runErr = <-botDone:
		switch {
		case ctx.Err() != nil:
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}
			m.logger.Info().Msg("Shutdown signal received")
		case runErr == nil:
			runErr = ErrBotStopped
			m.logger.Error().Msg("Bot stopped, initiating shutdown")
		default:
			runErr = fmt.Errorf("bot: %w", runErr)
			m.logger.Error().Err(runErr).Msg("Bot failed, initiating shutdown")
		}
	case <-ctx.Done():
		m.logger.Info().Msg("Shutdown signal received")
	}

	// Detached but bounded, so shutdown completes even though ctx is gone.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
	defer cancel()

	shutdownErr := m.Shutdown(shutdownCtx)
	m.waitWorkers(shutdownCtx)

	if runErr != nil {
		if shutdownErr != nil {
			return fmt.Errorf("run error and shutdown failure: %w", errors.Join(runErr, shutdownErr))
		}
		return runErr
	}
	return shutdownErr
}

func (m *manager) startOpsServer(errChan chan<- error) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		if err := m.deps.Ops.ListenAndServe(); err != nil {
			m.logger.Error().
				Err(err).
				Str("event", "ops.server.failed").
				Msg("Ops server failed")
			errChan <- err
		}
	}()
}

func (m *manager) waitWorkers(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn().Msg("Timed out waiting for bot and ops server to exit")
	}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("Shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
	defer cancel()

	var errs []error

	// Stop accepting probes first so readiness flips before the gateway drops.
	if m.deps.Ops != nil {
		m.logger.Debug().Msg("Shutting down ops server")
		if err := m.deps.Ops.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("ops server shutdown: %w", err))
		}
	}

	m.logger.Debug().Msg("Closing bot")
	if err := m.deps.Bot.Close(shutdownCtx); err != nil && !errors.Is(err, bot.ErrNotRunning) {
		errs = append(errs, fmt.Errorf("bot close: %w", err))
	}

	m.logger.Debug().Int("hooks", len(hooks)).Msg("Executing shutdown hooks")
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("Shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(hookStart)).
			Msg("Shutdown hook completed")
	}

	if len(errs) > 0 {
		m.logger.Error().
			Int("error_count", len(errs)).
			Msg("Shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Msg("Daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHooks = append(m.shutdownHooks, namedHook{
		name: name,
		hook: hook,
	})
	m.logger.Debug().Str("hook", name).Msg("Registered shutdown hook")
}

// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/seitokai/internal/api"
	"github.com/ManuGH/seitokai/internal/bot"
	"github.com/ManuGH/seitokai/internal/cache"
	"github.com/ManuGH/seitokai/internal/commands"
	"github.com/ManuGH/seitokai/internal/config"
	"github.com/ManuGH/seitokai/internal/cursor"
	"github.com/ManuGH/seitokai/internal/daemon"
	"github.com/ManuGH/seitokai/internal/gateway"
	"github.com/ManuGH/seitokai/internal/health"
	"github.com/ManuGH/seitokai/internal/rest"
	"github.com/ManuGH/seitokai/internal/telemetry"
	"github.com/ManuGH/seitokai/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// services holds everything the daemon opens and must release on exit.
type services struct {
	tracing *telemetry.Provider
	cursor  cursor.Store
	cache   cache.MessageCache
	bot     *bot.Bot
	router  *commands.Router
	health  *health.Manager
	ops     *api.Server
}

// healthChecker is implemented by caches backed by a remote server.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func buildServices(ctx context.Context, cfg config.AppConfig) (rt *services, err error) {
	rt = &services{}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.close(context.WithoutCancel(ctx)))
			rt = nil
		}
	}()

	rt.tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("start telemetry: %w", err)
	}

	rt.cursor, err = cursor.Open(ctx, cfg.Cursor.Backend, cfg.Cursor.Path)
	if err != nil {
		return rt, fmt.Errorf("open cursor store: %w", err)
	}

	rt.cache, err = cache.Open(ctx, cache.Config{
		Backend:       cfg.Cache.Backend,
		TTL:           cfg.Cache.TTL,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		return rt, fmt.Errorf("open message cache: %w", err)
	}

	rt.bot, err = bot.New(cfg.Token, botOptions(cfg, rt.cursor, rt.cache))
	if err != nil {
		return rt, fmt.Errorf("create bot: %w", err)
	}

	rt.router = commands.New(rt.bot.REST(), cfg.Commands.Prefix)
	if cfg.Commands.Ping {
		rt.router.Handle("ping", commands.Ping)
	}
	if err := rt.router.Attach(rt.bot); err != nil {
		return rt, fmt.Errorf("attach commands: %w", err)
	}

	rt.health = buildHealth(rt)
	rt.ops = api.New(api.Config{
		ListenAddr: cfg.Ops.ListenAddr,
		RateLimit:  cfg.Ops.RateLimit,
		Gatherer:   prometheus.DefaultGatherer,
	}, rt.health)
	return rt, nil
}

func botOptions(cfg config.AppConfig, store cursor.Store, mc cache.MessageCache) bot.Options {
	return bot.Options{
		REST: rest.Options{
			BaseURL:        cfg.REST.BaseURL,
			Timeout:        cfg.REST.Timeout,
			MaxRetries:     cfg.REST.MaxRetries,
			RateLimit:      rate.Limit(cfg.REST.RateLimit),
			RateLimitBurst: cfg.REST.RateBurst,
		},
		Gateway: gateway.Options{
			URL:        cfg.Gateway.URL,
			Reconnect:  cfg.Gateway.Reconnect,
			MaxBackoff: cfg.Gateway.MaxBackoff,
		},
		Cache:  mc,
		Cursor: store,
	}
}

func buildHealth(rt *services) *health.Manager {
	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewGatewayChecker(rt.bot.Gateway()))
	hm.RegisterChecker(health.NewBreakerChecker(rt.bot.REST().Breaker()))
	if hc, ok := rt.cache.(healthChecker); ok {
		// a lost cache slows replies down but does not stop the bot
		hm.RegisterChecker(health.NewPingChecker("cache", health.StatusDegraded, hc.HealthCheck))
	}
	return hm
}

// registerHooks hands resource cleanup to mgr. Hooks run in reverse, so
// commands detach first and tracing flushes last.
func (rt *services) registerHooks(mgr daemon.Manager) {
	mgr.RegisterShutdownHook("telemetry", rt.tracing.Shutdown)
	mgr.RegisterShutdownHook("cursor", func(context.Context) error { return rt.cursor.Close() })
	mgr.RegisterShutdownHook("cache", func(context.Context) error { return rt.cache.Close() })
	mgr.RegisterShutdownHook("commands", func(context.Context) error { return rt.router.Detach() })
}

// close releases whatever buildServices managed to open.
func (rt *services) close(ctx context.Context) error {
	var errs []error
	if rt.router != nil {
		if err := rt.router.Detach(); err != nil && !errors.Is(err, commands.ErrNotAttached) {
			errs = append(errs, err)
		}
	}
	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}
	if rt.cursor != nil {
		errs = append(errs, rt.cursor.Close())
	}
	if rt.tracing != nil {
		errs = append(errs, rt.tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// applyConfig updates the settings that take effect without a restart.
func (rt *services) applyConfig(cfg config.AppConfig) {
	rt.router.SetPrefix(cfg.Commands.Prefix)
	if cfg.Commands.Ping {
		rt.router.Handle("ping", commands.Ping)
	} else {
		rt.router.Remove("ping")
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/seitokai/internal/validate"
)

// Validate checks an AppConfig and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("Token", cfg.Token)
	v.LogLevel("LogLevel", cfg.LogLevel)

	v.URL("REST.BaseURL", cfg.REST.BaseURL, []string{"http", "https"})
	v.Duration("REST.Timeout", cfg.REST.Timeout, 100*time.Millisecond)
	v.Range("REST.MaxRetries", cfg.REST.MaxRetries, -1, 10)
	if cfg.REST.RateLimit <= 0 {
		v.AddError("REST.RateLimit", "must be > 0", cfg.REST.RateLimit)
	}
	v.Positive("REST.RateBurst", cfg.REST.RateBurst)

	v.URL("Gateway.URL", cfg.Gateway.URL, []string{"ws", "wss"})
	v.Duration("Gateway.MaxBackoff", cfg.Gateway.MaxBackoff, time.Second)

	v.OneOf("Cursor.Backend", cfg.Cursor.Backend, []string{"memory", "file", "sqlite", "badger"})
	if cfg.Cursor.Backend != "memory" {
		v.NotEmpty("Cursor.Path", cfg.Cursor.Path)
	}

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{"memory", "redis", "none"})
	if cfg.Cache.Backend != "none" {
		v.Duration("Cache.TTL", cfg.Cache.TTL, time.Second)
	}
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
		v.Range("Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)
	}

	if cfg.Commands.Ping {
		v.NotEmpty("Commands.Prefix", cfg.Commands.Prefix)
	}

	v.ListenAddr("Ops.ListenAddr", cfg.Ops.ListenAddr)
	v.NonNegative("Ops.RateLimit", cfg.Ops.RateLimit)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys. Every key the loader reads is listed here.
const (
	EnvToken              = "SEITOKAI_TOKEN"
	EnvLogLevel           = "SEITOKAI_LOG_LEVEL"
	EnvRESTURL            = "SEITOKAI_REST_URL"
	EnvRESTTimeout        = "SEITOKAI_REST_TIMEOUT"
	EnvRESTMaxRetries     = "SEITOKAI_REST_MAX_RETRIES"
	EnvRESTRateLimit      = "SEITOKAI_REST_RATE_LIMIT"
	EnvRESTRateBurst      = "SEITOKAI_REST_RATE_BURST"
	EnvGatewayURL         = "SEITOKAI_GATEWAY_URL"
	EnvGatewayReconnect   = "SEITOKAI_GATEWAY_RECONNECT"
	EnvGatewayMaxBackoff  = "SEITOKAI_GATEWAY_MAX_BACKOFF"
	EnvCursorBackend      = "SEITOKAI_CURSOR_BACKEND"
	EnvCursorPath         = "SEITOKAI_CURSOR_PATH"
	EnvCacheBackend       = "SEITOKAI_CACHE_BACKEND"
	EnvCacheTTL           = "SEITOKAI_CACHE_TTL"
	EnvCacheRedisAddr     = "SEITOKAI_CACHE_REDIS_ADDR"
	EnvCacheRedisPassword = "SEITOKAI_CACHE_REDIS_PASSWORD"
	EnvCacheRedisDB       = "SEITOKAI_CACHE_REDIS_DB"
	EnvCommandPrefix      = "SEITOKAI_COMMAND_PREFIX"
	EnvPingEnabled        = "SEITOKAI_PING_ENABLED"
	EnvOpsAddr            = "SEITOKAI_OPS_ADDR"
	EnvOpsRateLimit       = "SEITOKAI_OPS_RATE_LIMIT"
	EnvOTelEnabled        = "SEITOKAI_OTEL_ENABLED"
	EnvOTelExporter       = "SEITOKAI_OTEL_EXPORTER"
	EnvOTelEndpoint       = "SEITOKAI_OTEL_ENDPOINT"
	EnvOTelServiceName    = "SEITOKAI_OTEL_SERVICE_NAME"
	EnvOTelSamplingRate   = "SEITOKAI_OTEL_SAMPLING_RATE"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key consulted by the last Load
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, or "".
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	if f.Token != "" {
		cfg.Token = expandEnv(f.Token)
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if r := f.REST; r != nil {
		setString(&cfg.REST.BaseURL, r.BaseURL)
		if err := setDuration(&cfg.REST.Timeout, "rest.timeout", r.Timeout); err != nil {
			return err
		}
		setPtr(&cfg.REST.MaxRetries, r.MaxRetries)
		setPtr(&cfg.REST.RateLimit, r.RateLimit)
		setPtr(&cfg.REST.RateBurst, r.RateBurst)
	}

	if g := f.Gateway; g != nil {
		setString(&cfg.Gateway.URL, g.URL)
		setPtr(&cfg.Gateway.Reconnect, g.Reconnect)
		if err := setDuration(&cfg.Gateway.MaxBackoff, "gateway.maxBackoff", g.MaxBackoff); err != nil {
			return err
		}
	}

	if c := f.Cursor; c != nil {
		setString(&cfg.Cursor.Backend, c.Backend)
		setString(&cfg.Cursor.Path, c.Path)
	}

	if c := f.Cache; c != nil {
		setString(&cfg.Cache.Backend, c.Backend)
		if err := setDuration(&cfg.Cache.TTL, "cache.ttl", c.TTL); err != nil {
			return err
		}
		setString(&cfg.Cache.RedisAddr, c.RedisAddr)
		setString(&cfg.Cache.RedisPassword, expandEnv(c.RedisPassword))
		setPtr(&cfg.Cache.RedisDB, c.RedisDB)
	}

	if c := f.Commands; c != nil {
		setString(&cfg.Commands.Prefix, c.Prefix)
		setPtr(&cfg.Commands.Ping, c.Ping)
	}

	if o := f.Ops; o != nil {
		setString(&cfg.Ops.ListenAddr, o.ListenAddr)
		setPtr(&cfg.Ops.RateLimit, o.RateLimit)
	}

	if t := f.Telemetry; t != nil {
		setPtr(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setString(&cfg.Telemetry.ServiceName, t.ServiceName)
		setPtr(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Token = l.envString(EnvToken, cfg.Token)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)

	cfg.REST.BaseURL = l.envString(EnvRESTURL, cfg.REST.BaseURL)
	cfg.REST.Timeout = l.envDuration(EnvRESTTimeout, cfg.REST.Timeout)
	cfg.REST.MaxRetries = l.envInt(EnvRESTMaxRetries, cfg.REST.MaxRetries)
	cfg.REST.RateLimit = l.envFloat(EnvRESTRateLimit, cfg.REST.RateLimit)
	cfg.REST.RateBurst = l.envInt(EnvRESTRateBurst, cfg.REST.RateBurst)

	cfg.Gateway.URL = l.envString(EnvGatewayURL, cfg.Gateway.URL)
	cfg.Gateway.Reconnect = l.envBool(EnvGatewayReconnect, cfg.Gateway.Reconnect)
	cfg.Gateway.MaxBackoff = l.envDuration(EnvGatewayMaxBackoff, cfg.Gateway.MaxBackoff)

	cfg.Cursor.Backend = l.envString(EnvCursorBackend, cfg.Cursor.Backend)
	cfg.Cursor.Path = l.envString(EnvCursorPath, cfg.Cursor.Path)

	cfg.Cache.Backend = l.envString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration(EnvCacheTTL, cfg.Cache.TTL)
	cfg.Cache.RedisAddr = l.envString(EnvCacheRedisAddr, cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString(EnvCacheRedisPassword, cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt(EnvCacheRedisDB, cfg.Cache.RedisDB)

	cfg.Commands.Prefix = l.envString(EnvCommandPrefix, cfg.Commands.Prefix)
	cfg.Commands.Ping = l.envBool(EnvPingEnabled, cfg.Commands.Ping)

	cfg.Ops.ListenAddr = l.envString(EnvOpsAddr, cfg.Ops.ListenAddr)
	cfg.Ops.RateLimit = l.envInt(EnvOpsRateLimit, cfg.Ops.RateLimit)

	cfg.Telemetry.Enabled = l.envBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTelExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.ServiceName = l.envString(EnvOTelServiceName, cfg.Telemetry.ServiceName)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvOTelSamplingRate, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w %q", field, ErrInvalidDuration, v)
	}
	*dst = d
	return nil
}

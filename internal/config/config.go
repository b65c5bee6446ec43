// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from defaults, an optional
// YAML file and SEITOKAI_* environment variables, in that order of precedence.
package config

import "time"

// AppConfig is the effective configuration of the daemon.
type AppConfig struct {
	Token     string
	LogLevel  string
	REST      RESTConfig
	Gateway   GatewayConfig
	Cursor    CursorConfig
	Cache     CacheConfig
	Commands  CommandsConfig
	Ops       OpsConfig
	Telemetry TelemetryConfig

	// Version is stamped from the binary, never read from file or env.
	Version string
}

type RESTConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second
	RateBurst  int
}

type GatewayConfig struct {
	URL        string
	Reconnect  bool
	MaxBackoff time.Duration
}

type CursorConfig struct {
	Backend string // memory, file, sqlite or badger
	Path    string
}

type CacheConfig struct {
	Backend       string // memory, redis or none
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type CommandsConfig struct {
	Prefix string
	Ping   bool
}

type OpsConfig struct {
	ListenAddr string
	// RateLimit is the per-client request budget per minute on the ops endpoints.
	RateLimit int
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	ServiceName  string
	SamplingRate float64
}

// FileConfig mirrors the YAML layout. Pointers distinguish "unset" from a
// zero value so that a file can switch a default off.
type FileConfig struct {
	Token     string               `yaml:"token,omitempty"`
	LogLevel  string               `yaml:"logLevel,omitempty"`
	REST      *RESTFileConfig      `yaml:"rest,omitempty"`
	Gateway   *GatewayFileConfig   `yaml:"gateway,omitempty"`
	Cursor    *CursorFileConfig    `yaml:"cursor,omitempty"`
	Cache     *CacheFileConfig     `yaml:"cache,omitempty"`
	Commands  *CommandsFileConfig  `yaml:"commands,omitempty"`
	Ops       *OpsFileConfig       `yaml:"ops,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type RESTFileConfig struct {
	BaseURL    string   `yaml:"baseURL,omitempty"`
	Timeout    string   `yaml:"timeout,omitempty"`
	MaxRetries *int     `yaml:"maxRetries,omitempty"`
	RateLimit  *float64 `yaml:"rateLimit,omitempty"`
	RateBurst  *int     `yaml:"rateBurst,omitempty"`
}

type GatewayFileConfig struct {
	URL        string `yaml:"url,omitempty"`
	Reconnect  *bool  `yaml:"reconnect,omitempty"`
	MaxBackoff string `yaml:"maxBackoff,omitempty"`
}

type CursorFileConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

type CacheFileConfig struct {
	Backend       string `yaml:"backend,omitempty"`
	TTL           string `yaml:"ttl,omitempty"`
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       *int   `yaml:"redisDB,omitempty"`
}

type CommandsFileConfig struct {
	Prefix string `yaml:"prefix,omitempty"`
	Ping   *bool  `yaml:"ping,omitempty"`
}

type OpsFileConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	RateLimit  *int   `yaml:"rateLimit,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	ServiceName  string   `yaml:"serviceName,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

// Defaults returns the configuration used when neither file nor env set a key.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		REST: RESTConfig{
			BaseURL:    "https://www.guilded.gg/api/v1/",
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RateLimit:  5,
			RateBurst:  10,
		},
		Gateway: GatewayConfig{
			URL:        "wss://api.guilded.gg/v1/websocket",
			Reconnect:  true,
			MaxBackoff: time.Minute,
		},
		Cursor: CursorConfig{Backend: "memory"},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     10 * time.Minute,
		},
		Commands: CommandsConfig{Prefix: "!", Ping: true},
		Ops:      OpsConfig{ListenAddr: ":9464", RateLimit: 120},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			ServiceName:  "seitokai",
			SamplingRate: 1.0,
		},
	}
}

// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/seitokai/internal/config"
	"github.com/ManuGH/seitokai/internal/version"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  seitokai config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  seitokai config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func loadForCLI(fs *flag.FlagSet, args []string, stderr io.Writer) (config.AppConfig, string, int) {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return config.AppConfig{}, "", 2
	}

	configPath := resolveConfigPath(file)
	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		source := configPath
		if source == "" {
			source = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return config.AppConfig{}, configPath, 1
	}
	return cfg, configPath, 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seitokai config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	_, configPath, code := loadForCLI(fs, args, stderr)
	if code != 0 {
		return code
	}
	if configPath == "" {
		configPath = "environment"
	}
	fmt.Fprintf(stdout, "%s is valid\n", configPath)
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seitokai config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "yaml", "output format: yaml or json")

	cfg, _, code := loadForCLI(fs, args, stderr)
	if code != 0 {
		return code
	}

	fileCfg := fileConfigFromAppConfig(cfg)
	redactFileConfigSecrets(&fileCfg)

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(config.MaskSecrets(cfg)); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}
}

// fileConfigFromAppConfig renders the effective config in the file layout,
// so a dump can be fed back in with -config.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	return config.FileConfig{
		Token:    cfg.Token,
		LogLevel: cfg.LogLevel,
		REST: &config.RESTFileConfig{
			BaseURL:    cfg.REST.BaseURL,
			Timeout:    cfg.REST.Timeout.String(),
			MaxRetries: &cfg.REST.MaxRetries,
			RateLimit:  &cfg.REST.RateLimit,
			RateBurst:  &cfg.REST.RateBurst,
		},
		Gateway: &config.GatewayFileConfig{
			URL:        cfg.Gateway.URL,
			Reconnect:  &cfg.Gateway.Reconnect,
			MaxBackoff: cfg.Gateway.MaxBackoff.String(),
		},
		Cursor: &config.CursorFileConfig{
			Backend: cfg.Cursor.Backend,
			Path:    cfg.Cursor.Path,
		},
		Cache: &config.CacheFileConfig{
			Backend:       cfg.Cache.Backend,
			TTL:           cfg.Cache.TTL.String(),
			RedisAddr:     cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       &cfg.Cache.RedisDB,
		},
		Commands: &config.CommandsFileConfig{
			Prefix: cfg.Commands.Prefix,
			Ping:   &cfg.Commands.Ping,
		},
		Ops: &config.OpsFileConfig{
			ListenAddr: cfg.Ops.ListenAddr,
			RateLimit:  &cfg.Ops.RateLimit,
		},
		Telemetry: &config.TelemetryFileConfig{
			Enabled:      &cfg.Telemetry.Enabled,
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			ServiceName:  cfg.Telemetry.ServiceName,
			SamplingRate: &cfg.Telemetry.SamplingRate,
		},
	}
}

func redactFileConfigSecrets(cfg *config.FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.Token != "" {
		cfg.Token = "***"
	}
	if cfg.Cache != nil && cfg.Cache.RedisPassword != "" {
		cfg.Cache.RedisPassword = "***"
	}
}

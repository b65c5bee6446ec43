// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/seitokai/internal/config"
	"github.com/ManuGH/seitokai/internal/events"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(envConfigPath, "/etc/seitokai/env.yaml")
	assert.Equal(t, "/etc/seitokai/flag.yaml", resolveConfigPath(" /etc/seitokai/flag.yaml "))
	assert.Equal(t, "/etc/seitokai/env.yaml", resolveConfigPath(""))
}

func TestConfigValidate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := writeConfig(t, "token: abc\n")
	assert.Equal(t, 0, configCLI([]string{"validate", "-f", path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "is valid")

	stdout.Reset()
	bad := writeConfig(t, "token: abc\nnope: 1\n")
	assert.Equal(t, 1, configCLI([]string{"validate", "--file", bad}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Configuration error")
}

func TestConfigUnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, configCLI([]string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")
	assert.Equal(t, 0, configCLI(nil, &stdout, &stderr))
}

func TestConfigDumpRoundTrips(t *testing.T) {
	path := writeConfig(t, "token: abc\ncommands:\n  prefix: \"?\"\ncache:\n  ttl: 90s\n")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, configCLI([]string{"dump", "-f", path}, &stdout, &stderr), stderr.String())
	assert.NotContains(t, stdout.String(), "abc")
	assert.Contains(t, stdout.String(), "***")

	// the dump is a valid config file in its own right
	dumped := writeConfig(t, stdout.String())
	cfg, err := config.NewLoader(dumped, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, "?", cfg.Commands.Prefix)
	assert.Equal(t, "1m30s", cfg.Cache.TTL.String())
}

func TestConfigDumpJSONMasksSecrets(t *testing.T) {
	path := writeConfig(t, "token: abc\n")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, configCLI([]string{"dump", "-f", path, "--format", "json"}, &stdout, &stderr))
	var out map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.NotEqual(t, "abc", out["Token"])

	assert.Equal(t, 2, configCLI([]string{"dump", "-f", path, "--format", "toml"}, &stdout, &stderr))
}

func TestHealthcheck(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/readyz" && ready.Load():
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, healthcheckCLI([]string{"-addr", addr}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "(ready)")

	ready.Store(false)
	assert.Equal(t, 1, healthcheckCLI([]string{"-addr", srv.URL}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "503")
	assert.Equal(t, 0, healthcheckCLI([]string{"-addr", srv.URL, "-mode", "live"}, &stdout, &stderr))
}

func TestBuildServicesWithMemoryBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Token = "abc"
	cfg.Version = "test"

	rt, err := buildServices(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, rt.ops)
	assert.Equal(t, 1, events.Listeners[model.MessageCreatedEvent](rt.bot),
		"commands router listens for created messages")

	ready := rt.health.Ready(context.Background())
	assert.False(t, ready.Ready, "gateway is not connected yet")

	rt.applyConfig(config.AppConfig{Commands: config.CommandsConfig{Prefix: "?", Ping: false}})
	assert.Equal(t, "?", rt.router.Prefix())

	require.NoError(t, rt.close(context.Background()))
}

func TestBuildServicesFailsOnBadCursor(t *testing.T) {
	cfg := config.Defaults()
	cfg.Token = "abc"
	cfg.Cursor.Backend = "etcd"
	cfg.Cursor.Path = filepath.Join(t.TempDir(), "cursor")

	_, err := buildServices(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open cursor store")
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/seitokai/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker health.Status

func (c staticChecker) Name() string { return "static" }

func (c staticChecker) Check(context.Context) health.CheckResult {
	return health.CheckResult{Status: health.Status(c)}
}

func TestRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "seitokai_test_total", Help: "test"}).Inc()

	hm := health.NewManager("v0.1.0")
	hm.RegisterChecker(staticChecker(health.StatusUnhealthy))
	srv := httptest.NewServer(New(Config{Gatherer: reg}, hm).Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/healthz", http.StatusOK, `"version":"v0.1.0"`},
		{"/healthz?verbose=true", http.StatusOK, `"status":"unhealthy"`},
		{"/readyz", http.StatusServiceUnavailable, `"ready":false`},
		{"/metrics", http.StatusOK, "seitokai_test_total 1"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestListenAndShutdown(t *testing.T) {
	s := New(Config{ListenAddr: "127.0.0.1:0"}, health.NewManager("dev"))

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()
	require.Eventually(t, func() bool { return s.Addr() != "127.0.0.1:0" }, time.Second, time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, <-done)
}

func TestShutdownBeforeListenPreventsServing(t *testing.T) {
	s := New(Config{ListenAddr: "127.0.0.1:0"}, health.NewManager("dev"))
	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		_ = s.Shutdown(context.Background())
		t.Fatal("ListenAndServe kept serving after Shutdown")
	}
	assert.Equal(t, "127.0.0.1:0", s.Addr(), "no listener was kept")
}

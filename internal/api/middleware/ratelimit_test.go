// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 3, WindowSize: time.Minute})(http.HandlerFunc(ok))

	for i := range 3 {
		assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:12345").Code, "request %d", i+1)
	}

	rec := serve(h, "192.168.1.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`,
		rec.Body.String())
}

func TestRateLimit_DifferentIPsIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 2, WindowSize: time.Minute})(http.HandlerFunc(ok))

	for range 2 {
		assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:12345").Code)
	}
	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.2:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.168.1.1:12345").Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		RequestLimit: 1,
		WindowSize:   time.Minute,
		KeyFunc:      func(*http.Request) (string, error) { return "everyone", nil },
	})(http.HandlerFunc(ok))

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.2:1").Code)
}

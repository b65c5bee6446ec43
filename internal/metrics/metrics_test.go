// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		err    error
		status int
		want   string
	}{
		{errors.New("boom"), 0, "error"},
		{nil, 0, "unknown"},
		{nil, 101, "1xx"},
		{nil, 204, "2xx"},
		{nil, 302, "3xx"},
		{nil, 429, "4xx"},
		{nil, 503, "5xx"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusClass(tt.err, tt.status), "status %d", tt.status)
	}
}

func TestRecordRESTAttemptCountsRetries(t *testing.T) {
	retries := RESTRequestRetries.WithLabelValues("GET", "/test/route", "5xx")
	before := counterValue(t, retries)

	RecordRESTAttempt("GET", "/test/route", 503, 10*time.Millisecond, nil, true)
	RecordRESTAttempt("GET", "/test/route", 503, 10*time.Millisecond, nil, false)

	require.Equal(t, before+1, counterValue(t, retries))
}

func TestIncDispatchDropDefaultsLabels(t *testing.T) {
	c := DispatchDroppedTotal.WithLabelValues("unknown", "full")
	before := counterValue(t, c)
	IncDispatchDrop("")
	require.Equal(t, before+1, counterValue(t, c))
}

func TestSetCircuitBreakerStateIsExclusive(t *testing.T) {
	SetCircuitBreakerState("test", "open")
	require.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("test", "open")))
	require.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("test", "closed")))

	SetCircuitBreakerState("test", "closed")
	require.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("test", "open")))
	require.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("test", "closed")))
}

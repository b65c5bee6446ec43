// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	restRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seitokai_rest_request_total",
			Help: "Total number of REST request attempts",
		},
		[]string{"method", "route", "status_class"},
	)
	restRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seitokai_rest_request_duration_seconds",
			Help:    "Duration of REST requests per attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 8),
		},
		[]string{"method", "route", "status_class"},
	)
	restRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seitokai_rest_request_errors_total",
			Help: "Number of REST request attempts that did not return 2xx",
		},
		[]string{"method", "route", "status_class"},
	)
	RESTRequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seitokai_rest_request_retries_total",
			Help: "Number of REST request retries performed",
		},
		[]string{"method", "route", "status_class"},
	)
)

// StatusClass buckets an HTTP outcome into a low-cardinality label.
func StatusClass(err error, status int) string {
	if err != nil {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status > 0:
		return "1xx"
	}
	return "unknown"
}

// RecordRESTAttempt records one REST attempt. route must be the route
// template (e.g. /channels/{channelId}/messages), never the concrete path.
func RecordRESTAttempt(method, route string, status int, duration time.Duration, err error, retry bool) {
	class := StatusClass(err, status)
	restRequestTotal.WithLabelValues(method, route, class).Inc()
	restRequestDuration.WithLabelValues(method, route, class).Observe(duration.Seconds())
	if class != "2xx" {
		restRequestErrors.WithLabelValues(method, route, class).Inc()
	}
	if retry {
		RESTRequestRetries.WithLabelValues(method, route, class).Inc()
	}
}

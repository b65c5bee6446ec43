// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seitokai_dispatch_dropped_total",
		Help: "Total number of events dropped by stream consumers, by topic and reason",
	}, []string{"topic", "reason"})

	DispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seitokai_dispatch_total",
		Help: "Total number of events dispatched, by topic",
	}, []string{"topic"})

	CallbackFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seitokai_dispatch_callback_failures_total",
		Help: "Total number of listener callbacks that returned an error or panicked",
	}, []string{"topic", "reason"})
)

// IncDispatchDrop records an event dropped because a stream buffer was full.
func IncDispatchDrop(topic string) {
	IncDispatchDropReason(topic, "full")
}

// IncDispatchDropReason records a dropped event with a concrete reason.
func IncDispatchDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	DispatchDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// IncDispatched records one dispatch of topic.
func IncDispatched(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	DispatchedTotal.WithLabelValues(topic).Inc()
}

// IncCallbackFailure records a failed listener callback; reason is "error" or "panic".
func IncCallbackFailure(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	CallbackFailuresTotal.WithLabelValues(topic, reason).Inc()
}

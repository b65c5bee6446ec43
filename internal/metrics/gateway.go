// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seitokai_gateway_connected",
		Help: "Whether the gateway websocket is connected (1) or not (0)",
	})

	GatewayFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seitokai_gateway_frames_total",
		Help: "Gateway frames received by opcode and outcome",
	}, []string{"op", "outcome"}) // outcome=dispatched|ignored|malformed

	GatewayReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seitokai_gateway_reconnects_total",
		Help: "Gateway reconnect attempts by reason",
	}, []string{"reason"})

	gatewayHeartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seitokai_gateway_heartbeats_total",
		Help: "Heartbeat pings sent to the gateway",
	})
)

// SetGatewayConnected flips the connected gauge.
func SetGatewayConnected(connected bool) {
	if connected {
		gatewayConnected.Set(1)
		return
	}
	gatewayConnected.Set(0)
}

// IncGatewayFrame records one received frame.
func IncGatewayFrame(op, outcome string) {
	GatewayFramesTotal.WithLabelValues(op, outcome).Inc()
}

// IncGatewayReconnect records a reconnect attempt.
func IncGatewayReconnect(reason string) {
	GatewayReconnectsTotal.WithLabelValues(reason).Inc()
}

// IncGatewayHeartbeat records a heartbeat ping.
func IncGatewayHeartbeat() {
	gatewayHeartbeats.Inc()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seitokai_commands_total",
	Help: "Total number of chat commands handled, by command and outcome",
}, []string{"command", "outcome"})

// IncCommand records one handled command; outcome is "ok", "error" or "unknown".
func IncCommand(command, outcome string) {
	if command == "" {
		command = "unknown"
	}
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"

	"github.com/ManuGH/seitokai/internal/rest"
)

// GatewayState is the part of the gateway client the checker needs.
type GatewayState interface {
	IsRunning() bool
	IsConnected() bool
	LastMessageID() string
}

// GatewayChecker reports whether the websocket session is up.
type GatewayChecker struct {
	gateway GatewayState
}

func NewGatewayChecker(gw GatewayState) *GatewayChecker {
	return &GatewayChecker{gateway: gw}
}

func (c *GatewayChecker) Name() string { return "gateway" }

func (c *GatewayChecker) Check(context.Context) CheckResult {
	switch {
	case !c.gateway.IsRunning():
		return CheckResult{Status: StatusUnhealthy, Message: "gateway client not running"}
	case !c.gateway.IsConnected():
		return CheckResult{Status: StatusUnhealthy, Message: "gateway disconnected, reconnecting"}
	}
	msg := "connected"
	if id := c.gateway.LastMessageID(); id != "" {
		msg = "connected, last message " + id
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// BreakerChecker degrades while the REST circuit breaker is not closed.
type BreakerChecker struct {
	breaker *rest.CircuitBreaker
}

func NewBreakerChecker(cb *rest.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

func (c *BreakerChecker) Name() string { return "rest_breaker" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch c.breaker.State() {
	case rest.StateOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit open, REST calls rejected"}
	case rest.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open, probing"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
	}
}

// PingChecker runs a backend ping with a timeout, e.g. a redis health check.
type PingChecker struct {
	name    string
	ping    func(ctx context.Context) error
	timeout time.Duration
	// failure is the status reported when ping fails.
	failure Status
}

// NewPingChecker reports failure when ping errors. A nil ping means the
// backend is not configured.
func NewPingChecker(name string, failure Status, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, timeout: 2 * time.Second, failure: failure}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: c.failure, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

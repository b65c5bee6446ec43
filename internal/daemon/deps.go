// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultShutdownTimeout bounds the whole shutdown sequence.
const DefaultShutdownTimeout = 30 * time.Second

// BotRunner is the part of the bot the daemon drives.
type BotRunner interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// OpsServer is the operational HTTP server (health, readiness, metrics).
type OpsServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Addr() string
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Bot is run for the lifetime of the manager
	Bot BotRunner

	// Ops is optional; nil disables the ops server
	Ops OpsServer

	// ShutdownTimeout defaults to DefaultShutdownTimeout
	ShutdownTimeout time.Duration
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Bot == nil {
		return ErrMissingBot
	}
	return nil
}

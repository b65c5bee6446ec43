// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/rs/zerolog"
)

// Runner executes listener callbacks in their own goroutines and tracks them
// so shutdown can wait for in-flight work.
type Runner struct {
	ctx    context.Context
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewRunner returns a runner whose callbacks observe ctx.
func NewRunner(ctx context.Context, logger zerolog.Logger) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runner{ctx: ctx, logger: logger}
}

// Go starts fn in a goroutine. Errors are logged and counted, panics are
// recovered and treated the same way.
func (r *Runner) Go(topic string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.call(fn); err != nil {
			reason := "error"
			if _, ok := err.(*PanicError); ok {
				reason = "panic"
			}
			metrics.IncCallbackFailure(topic, reason)
			r.logger.Error().
				Err(err).
				Str(log.FieldListener, topic).
				Msg("listener callback failed")
		}
	}()
}

func (r *Runner) call(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(r.ctx)
}

// Wait blocks until every started callback has returned or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for listeners: %w", ctx.Err())
	}
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("listener panicked: %v", e.Value)
}

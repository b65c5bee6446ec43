// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bot composes the REST client, the gateway client and the event
// manager behind one run/close/join lifecycle.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/seitokai/internal/cache"
	"github.com/ManuGH/seitokai/internal/cursor"
	"github.com/ManuGH/seitokai/internal/dispatch"
	"github.com/ManuGH/seitokai/internal/events"
	"github.com/ManuGH/seitokai/internal/gateway"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/marshal"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/ManuGH/seitokai/internal/rest"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRunning = errors.New("bot: already running")
	ErrNotRunning     = errors.New("bot: not running")
)

// Options configures a Bot. The caller owns Cache and Cursor and closes them
// after the bot has stopped.
type Options struct {
	REST       rest.Options
	Gateway    gateway.Options
	Marshaller marshal.Marshaller
	// Cache, when set, is kept current from message events.
	Cache  cache.MessageCache
	Cursor cursor.Store
}

// Bot is a websocket bot: events arrive over the gateway, actions go out over REST.
type Bot struct {
	marshaller marshal.Marshaller
	events     *events.Manager
	rest       *rest.Client
	gateway    *gateway.Client
	cache      cache.MessageCache
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	closing bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires a stopped bot for token.
func New(token string, opts Options) (*Bot, error) {
	m := opts.Marshaller
	if m == nil {
		m = marshal.New()
	}
	restClient, err := rest.New(token, m, opts.REST)
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	manager := events.NewManager(m)

	gwOpts := opts.Gateway
	if opts.Cursor != nil {
		gwOpts.Cursor = opts.Cursor
	}

	return &Bot{
		marshaller: m,
		events:     manager,
		rest:       restClient,
		gateway:    gateway.New(token, manager, gwOpts),
		cache:      opts.Cache,
		logger:     log.WithComponent("bot"),
	}, nil
}

// EventManager implements events.Source so the bot can be passed to
// events.AddListener and friends.
func (b *Bot) EventManager() *events.Manager { return b.events }

func (b *Bot) REST() *rest.Client             { return b.rest }
func (b *Bot) Gateway() *gateway.Client       { return b.gateway }
func (b *Bot) Marshaller() marshal.Marshaller { return b.marshaller }

// Cache returns the tracked message cache, or nil.
func (b *Bot) Cache() cache.MessageCache { return b.cache }

// IsRunning reports whether Run is active.
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Dispatch forwards to the event manager.
func (b *Bot) Dispatch(event any) error { return b.events.Dispatch(event) }

// DispatchRaw forwards to the event manager.
func (b *Bot) DispatchRaw(ctx context.Context, name string, data json.RawMessage) error {
	return b.events.DispatchRaw(ctx, name, data)
}

// Run starts REST, the event manager and the gateway, and blocks until ctx
// is done, Close is called, or the gateway gives up.
func (b *Bot) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	b.closing = false
	b.cancel = cancel
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.closing = false
		b.cancel = nil
		b.done = nil
		b.mu.Unlock()
		close(done)
	}()

	if err := b.rest.Start(); err != nil {
		return fmt.Errorf("bot: start rest: %w", err)
	}
	defer func() {
		if err := b.rest.Close(); err != nil && !errors.Is(err, rest.ErrInactive) {
			b.logger.Warn().Err(err).Msg("failed to close rest client")
		}
	}()

	untrack := b.trackCache()
	defer untrack()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return b.events.Run(gctx)
	})
	g.Go(func() error {
		if err := waitUntil(gctx, b.events.IsRunning); err != nil {
			return nil
		}
		b.logger.Info().Msg("bot connecting to gateway")
		return b.gateway.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		b.logger.Error().Err(err).Msg("bot stopped with error")
	} else {
		b.logger.Info().Msg("bot stopped")
	}
	return err
}

// Close stops the gateway and the event manager and waits for Run to return,
// bounded by ctx. Calling Close while a close is in progress only waits.
func (b *Bot) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrNotRunning
	}
	if b.closing {
		b.mu.Unlock()
		return b.Join(ctx)
	}
	b.closing = true
	cancel := b.cancel
	b.mu.Unlock()

	var errs []error
	if err := b.gateway.Close(); err != nil && !errors.Is(err, gateway.ErrNotRunning) {
		errs = append(errs, err)
	}
	if err := b.events.Close(); err != nil && !errors.Is(err, events.ErrInactive) {
		errs = append(errs, err)
	}
	cancel()

	if err := b.Join(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Join blocks until Run returns or ctx is done.
func (b *Bot) Join(ctx context.Context) error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackCache keeps the message cache current and returns a func removing
// the listeners again.
func (b *Bot) trackCache() func() {
	if b.cache == nil {
		return func() {}
	}
	c := b.cache
	created := events.AddListener(b, func(ctx context.Context, ev model.MessageCreatedEvent) error {
		c.Set(ctx, ev.Message)
		return nil
	})
	updated := events.AddListener(b, func(ctx context.Context, ev model.MessageUpdatedEvent) error {
		c.Set(ctx, ev.Message)
		return nil
	})
	deleted := events.AddListener(b, func(ctx context.Context, ev model.MessageDeletedEvent) error {
		c.Delete(ctx, ev.ID)
		return nil
	})
	return func() {
		removeQuietly[model.MessageCreatedEvent](b, created)
		removeQuietly[model.MessageUpdatedEvent](b, updated)
		removeQuietly[model.MessageDeletedEvent](b, deleted)
	}
}

func removeQuietly[T any](b *Bot, id dispatch.ListenerID) {
	if err := events.RemoveListener[T](b, id); err != nil {
		b.logger.Debug().Err(err).Msg("cache listener already removed")
	}
}

func waitUntil(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

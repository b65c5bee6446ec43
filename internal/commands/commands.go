// SPDX-License-Identifier: MIT

// Package commands turns prefixed chat messages into replies.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ManuGH/seitokai/internal/dispatch"
	"github.com/ManuGH/seitokai/internal/events"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPrefix is used when none is configured.
const DefaultPrefix = "!"

var (
	ErrAlreadyAttached = errors.New("commands: already attached")
	ErrNotAttached     = errors.New("commands: not attached")
)

// Poster sends chat messages. *rest.Client satisfies it.
type Poster interface {
	PostChannelMessage(ctx context.Context, channelID uuid.UUID, content string) (model.Message, error)
}

// Handler answers one command. An empty reply sends nothing.
type Handler func(ctx context.Context, msg model.Message, args []string) (string, error)

// Ping replies "pong".
func Ping(context.Context, model.Message, []string) (string, error) {
	return "pong", nil
}

// Router matches created chat messages against registered commands.
type Router struct {
	poster Poster
	logger zerolog.Logger

	mu       sync.RWMutex
	prefix   string
	handlers map[string]Handler
	src      events.Source
	listener dispatch.ListenerID
}

// New returns a router with no commands. An empty prefix means DefaultPrefix.
func New(poster Poster, prefix string) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Router{
		poster:   poster,
		prefix:   prefix,
		handlers: make(map[string]Handler),
		logger:   log.WithComponent("commands"),
	}
}

// Handle registers h under name, replacing any previous handler.
func (r *Router) Handle(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Remove unregisters name.
func (r *Router) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Prefix returns the current command prefix.
func (r *Router) Prefix() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prefix
}

// SetPrefix changes the prefix for subsequent messages. Empty is ignored.
func (r *Router) SetPrefix(prefix string) {
	if prefix == "" {
		return
	}
	r.mu.Lock()
	old := r.prefix
	r.prefix = prefix
	r.mu.Unlock()
	if old != prefix {
		r.logger.Info().Str("old", old).Str("new", prefix).Msg("command prefix changed")
	}
}

// Attach starts listening for created messages on src.
func (r *Router) Attach(src events.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src != nil {
		return ErrAlreadyAttached
	}
	r.src = src
	r.listener = events.AddListener(src, r.onMessage)
	return nil
}

// Detach removes the listener added by Attach.
func (r *Router) Detach() error {
	r.mu.Lock()
	src, id := r.src, r.listener
	r.src = nil
	r.mu.Unlock()
	if src == nil {
		return ErrNotAttached
	}
	return events.RemoveListener[model.MessageCreatedEvent](src, id)
}

func (r *Router) match(content string) (string, []string, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rest, ok := strings.CutPrefix(content, r.prefix)
	if !ok {
		return "", nil, nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasPrefix(rest, fields[0]) {
		return "", nil, nil, false
	}
	h, ok := r.handlers[fields[0]]
	return fields[0], fields[1:], h, ok
}

func (r *Router) onMessage(ctx context.Context, ev model.MessageCreatedEvent) error {
	msg := ev.Message
	// never answer bots, including ourselves
	if msg.CreatorType == model.CreatorBot {
		return nil
	}

	name, args, h, ok := r.match(msg.Content)
	if name == "" {
		return nil
	}
	logger := log.WithContext(ctx, r.logger).With().
		Str("command", name).
		Str("channel_id", msg.ChannelID.String()).
		Logger()
	if !ok {
		metrics.IncCommand("", "unknown")
		logger.Debug().Msg("unknown command")
		return nil
	}

	reply, err := h(ctx, msg, args)
	if err != nil {
		metrics.IncCommand(name, "error")
		return fmt.Errorf("command %s: %w", name, err)
	}
	if reply != "" {
		if _, err := r.poster.PostChannelMessage(ctx, msg.ChannelID, reply); err != nil {
			metrics.IncCommand(name, "error")
			return fmt.Errorf("command %s: reply: %w", name, err)
		}
	}
	metrics.IncCommand(name, "ok")
	logger.Debug().Msg("command handled")
	return nil
}

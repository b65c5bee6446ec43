// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events turns raw gateway events into typed values and routes them
// to listeners registered per Go type.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ManuGH/seitokai/internal/dispatch"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/marshal"
	"github.com/ManuGH/seitokai/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInactive is returned when dispatching to or closing a manager that is not running.
	ErrInactive = errors.New("events: manager is not running")
	// ErrAlreadyRunning is returned by Run on a running manager.
	ErrAlreadyRunning = errors.New("events: manager already running")
	// ErrNoListener is returned when removing a listener that was never added.
	ErrNoListener = errors.New("events: no such listener")
)

// Source is anything that exposes an event manager, so the generic helpers
// accept both a Manager and the bot that owns one.
type Source interface {
	EventManager() *Manager
}

type dispatcher interface {
	dispatchAny(r *dispatch.Runner, v any)
	isEmpty() bool
	closeStreams()
}

type typedDispatcher[T any] struct {
	*dispatch.Dispatchable[T]
}

func (d typedDispatcher[T]) dispatchAny(r *dispatch.Runner, v any) {
	if value, ok := v.(T); ok {
		d.Dispatch(r, value)
	}
}

func (d typedDispatcher[T]) isEmpty() bool { return d.IsEmpty() }

func (d typedDispatcher[T]) closeStreams() { d.CloseStreams() }

// Manager routes events by their dynamic type. Listeners registered on an
// interface type receive every event that implements it.
type Manager struct {
	marshaller marshal.Marshaller
	logger     zerolog.Logger

	mu          sync.RWMutex
	dispatchers map[reflect.Type]dispatcher
	runner      *dispatch.Runner
	stop        chan struct{}
	stopOnce    *sync.Once
}

// NewManager returns an inactive manager decoding raw events with m.
func NewManager(m marshal.Marshaller) *Manager {
	if m == nil {
		m = marshal.New()
	}
	return &Manager{
		marshaller:  m,
		logger:      log.WithComponent("events"),
		dispatchers: make(map[reflect.Type]dispatcher),
	}
}

// EventManager implements Source.
func (m *Manager) EventManager() *Manager { return m }

// IsRunning reports whether Run is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runner != nil
}

// Run activates the manager until ctx is done or Close is called. On exit it
// waits for in-flight callbacks and closes every stream.
func (m *Manager) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.runner != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	runner := dispatch.NewRunner(runCtx, m.logger)
	stop := make(chan struct{})
	m.runner = runner
	m.stop = stop
	m.stopOnce = &sync.Once{}
	m.mu.Unlock()

	m.logger.Debug().Msg("event manager started")

	select {
	case <-runCtx.Done():
	case <-stop:
	}

	m.mu.Lock()
	m.runner = nil
	m.mu.Unlock()

	// callbacks see a cancelled context from here on
	cancel()
	_ = runner.Wait(context.Background())
	m.closeStreams()

	m.logger.Debug().Msg("event manager stopped")
	return nil
}

// Close asks Run to return.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.runner == nil {
		return ErrInactive
	}
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Manager) closeStreams() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, d := range m.dispatchers {
		d.closeStreams()
		if d.isEmpty() {
			delete(m.dispatchers, key)
		}
	}
}

// Dispatch sends event to the listeners of its concrete type and of every
// registered interface it implements.
func (m *Manager) Dispatch(event any) error {
	if event == nil {
		return fmt.Errorf("events: dispatch nil event")
	}
	m.mu.RLock()
	runner := m.runner
	if runner == nil {
		m.mu.RUnlock()
		return ErrInactive
	}
	typ := reflect.TypeOf(event)
	targets := make([]dispatcher, 0, 2)
	for key, d := range m.dispatchers {
		if key == typ || (key.Kind() == reflect.Interface && typ.Implements(key)) {
			targets = append(targets, d)
		}
	}
	m.mu.RUnlock()

	for _, d := range targets {
		d.dispatchAny(runner, event)
	}
	return nil
}

// DispatchRaw decodes a named gateway event and dispatches the typed result.
// Unknown event names are ignored.
func (m *Manager) DispatchRaw(ctx context.Context, name string, data json.RawMessage) error {
	_, span := telemetry.Tracer(telemetry.TracerDispatch).Start(ctx, "events.dispatch_raw",
		trace.WithAttributes(attribute.String(telemetry.GatewayEventKey, name)))

	event, err := m.marshaller.UnmarshalEvent(name, data)
	switch {
	case errors.Is(err, marshal.ErrUnknownEvent):
		m.logger.Debug().Str(log.FieldEvent, name).Msg("ignoring unsupported event")
		telemetry.EndSpan(span, nil)
		return nil
	case err != nil:
		m.logger.Warn().Err(err).Str(log.FieldEvent, name).Msg("dropping malformed event")
		telemetry.EndSpan(span, err)
		return fmt.Errorf("decode %s: %w", name, err)
	}

	err = m.Dispatch(event)
	telemetry.EndSpan(span, err)
	return err
}

func (m *Manager) dispatcherFor(key reflect.Type) (dispatcher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dispatchers[key]
	return d, ok
}

func withDispatcher[T any](m *Manager, fn func(typedDispatcher[T])) {
	key := reflect.TypeFor[T]()
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dispatchers[key].(typedDispatcher[T])
	if !ok {
		d = typedDispatcher[T]{dispatch.New[T](key.String())}
		m.dispatchers[key] = d
	}
	fn(d)
}

// Stream opens a stream receiving every dispatched T.
func Stream[T any](src Source, bufferSize int) *dispatch.Stream[T] {
	var s *dispatch.Stream[T]
	withDispatcher(src.EventManager(), func(d typedDispatcher[T]) {
		s = d.Stream(bufferSize)
	})
	return s
}

// AddListener registers cb for values of type T.
func AddListener[T any](src Source, cb dispatch.Callback[T]) dispatch.ListenerID {
	var id dispatch.ListenerID
	withDispatcher(src.EventManager(), func(d typedDispatcher[T]) {
		id = d.AddCallback(cb)
	})
	return id
}

// RemoveListener unregisters a callback added with AddListener. A dispatcher
// left with no callbacks and no open streams is discarded.
func RemoveListener[T any](src Source, id dispatch.ListenerID) error {
	m := src.EventManager()
	key := reflect.TypeFor[T]()

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dispatchers[key]
	if !ok {
		return fmt.Errorf("%w: no listeners for %s", ErrNoListener, key)
	}
	if !d.(typedDispatcher[T]).RemoveCallback(id) {
		return fmt.Errorf("%w: id %d for %s", ErrNoListener, id, key)
	}
	if d.isEmpty() {
		delete(m.dispatchers, key)
	}
	return nil
}

// Listeners returns the callback count registered for T.
func Listeners[T any](src Source) int {
	d, ok := src.EventManager().dispatcherFor(reflect.TypeFor[T]())
	if !ok {
		return 0
	}
	return d.(typedDispatcher[T]).Callbacks()
}

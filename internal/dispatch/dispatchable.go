// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dispatch fans values out to listener callbacks and bounded streams.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/metrics"
)

// ListenerID identifies a registered callback.
type ListenerID uint64

// Callback handles one dispatched value.
type Callback[T any] func(ctx context.Context, value T) error

type callbackEntry[T any] struct {
	id ListenerID
	cb Callback[T]
}

const dropLogEvery = 100

var nextListenerID atomic.Uint64

// Dispatchable holds the callbacks and streams interested in values of type T.
type Dispatchable[T any] struct {
	topic string

	mu        sync.Mutex
	callbacks []callbackEntry[T]
	streams   []*Stream[T]
	dropped   atomic.Uint64
}

// New returns an empty dispatchable. topic labels logs and metrics.
func New[T any](topic string) *Dispatchable[T] {
	return &Dispatchable[T]{topic: topic}
}

// Topic returns the label given to New.
func (d *Dispatchable[T]) Topic() string {
	return d.topic
}

// AddCallback registers cb and returns the handle needed to remove it.
func (d *Dispatchable[T]) AddCallback(cb Callback[T]) ListenerID {
	id := ListenerID(nextListenerID.Add(1))
	d.mu.Lock()
	d.callbacks = append(d.callbacks, callbackEntry[T]{id: id, cb: cb})
	d.mu.Unlock()
	return id
}

// RemoveCallback unregisters a callback. It reports whether id was known.
func (d *Dispatchable[T]) RemoveCallback(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.callbacks {
		if e.id == id {
			d.callbacks = append(d.callbacks[:i], d.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// Callbacks returns the number of registered callbacks.
func (d *Dispatchable[T]) Callbacks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

// Stream opens a new stream with the given buffer size.
func (d *Dispatchable[T]) Stream(bufferSize int) *Stream[T] {
	s := newStream[T](bufferSize)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s
}

// IsEmpty reports whether nothing is listening, counting only open streams.
func (d *Dispatchable[T]) IsEmpty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.callbacks) > 0 {
		return false
	}
	for _, s := range d.streams {
		if !s.Closed() {
			return false
		}
	}
	return true
}

// Dropped returns how many values were dropped on full streams.
func (d *Dispatchable[T]) Dropped() uint64 {
	return d.dropped.Load()
}

// Dispatch offers value to every open stream without blocking, then starts
// each callback on r. Closed streams are pruned.
func (d *Dispatchable[T]) Dispatch(r *Runner, value T) {
	d.mu.Lock()
	open := d.streams[:0]
	for _, s := range d.streams {
		switch s.trySend(value) {
		case sendClosed:
			continue
		case sendFull:
			d.drop()
		}
		open = append(open, s)
	}
	for i := len(open); i < len(d.streams); i++ {
		d.streams[i] = nil
	}
	d.streams = open
	callbacks := append([]callbackEntry[T](nil), d.callbacks...)
	d.mu.Unlock()

	metrics.IncDispatched(d.topic)
	for _, e := range callbacks {
		cb := e.cb
		r.Go(d.topic, func(ctx context.Context) error {
			return cb(ctx, value)
		})
	}
}

func (d *Dispatchable[T]) drop() {
	metrics.IncDispatchDrop(d.topic)
	count := d.dropped.Add(1)
	if count == 1 || count%dropLogEvery == 0 {
		log.L().Warn().
			Str(log.FieldEvent, d.topic).
			Uint64("dropped", count).
			Msg("stream buffer full, dropping value")
	}
}

// CloseStreams closes and forgets every stream.
func (d *Dispatchable[T]) CloseStreams() {
	d.mu.Lock()
	streams := d.streams
	d.streams = nil
	d.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}
}

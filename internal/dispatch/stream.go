// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"errors"
	"sync"
)

// DefaultStreamBuffer is used when a stream is requested with a non-positive size.
const DefaultStreamBuffer = 100

// ErrStreamClosed is returned by Receive once the stream is closed and drained.
var ErrStreamClosed = errors.New("dispatch: stream closed")

// Stream is a bounded, buffered receiver of dispatched values.
type Stream[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func newStream[T any](size int) *Stream[T] {
	if size <= 0 {
		size = DefaultStreamBuffer
	}
	return &Stream[T]{ch: make(chan T, size)}
}

// C exposes the underlying channel. It is closed when the stream closes.
func (s *Stream[T]) C() <-chan T {
	return s.ch
}

// Receive returns the next value. Buffered values are still delivered after
// Close; once drained it returns ErrStreamClosed.
func (s *Stream[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-s.ch:
		if !ok {
			return zero, ErrStreamClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops delivery. Calling it more than once is harmless.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Closed reports whether Close has been called.
func (s *Stream[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type sendResult int

const (
	sendOK sendResult = iota
	sendFull
	sendClosed
)

func (s *Stream[T]) trySend(v T) sendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sendClosed
	}
	select {
	case s.ch <- v:
		return sendOK
	default:
		return sendFull
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("test", 2, time.Minute, tripsBreaker)
	cb.now = func() time.Time { return now }

	upstream := &APIError{Sentinel: ErrUpstreamError}
	require.ErrorIs(t, cb.Execute(func() error { return upstream }), ErrUpstreamError)
	require.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(func() error { return upstream }))
	require.Equal(t, StateOpen, cb.State())

	require.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.Error(t, cb.Execute(func() error { return upstream }))
	require.Equal(t, StateOpen, cb.State(), "failed probe reopens")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	cb := NewCircuitBreaker("test-client", 1, time.Minute, tripsBreaker)
	notFound := &APIError{Sentinel: ErrNotFound}
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(func() error { return notFound }), ErrNotFound)
	}
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerDefaultTripsOnAnyError(t *testing.T) {
	cb := NewCircuitBreaker("test-any", 1, time.Minute, nil)
	_ = cb.Execute(func() error { return errors.New("x") })
	require.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerSkipsCanceledCalls(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("test-ctx", 1, time.Minute, tripsBreaker)
	cb.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unavailable := &APIError{Sentinel: ErrUnavailable, Err: context.Canceled}
	require.ErrorIs(t, cb.ExecuteContext(ctx, func() error { return unavailable }), ErrUnavailable)
	require.Equal(t, StateClosed, cb.State())

	require.Error(t, cb.ExecuteContext(context.Background(), func() error { return unavailable }))
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	require.Error(t, cb.ExecuteContext(ctx, func() error { return unavailable }))
	require.Equal(t, StateHalfOpen, cb.State(), "a canceled half-open call leaves the circuit half-open")
}

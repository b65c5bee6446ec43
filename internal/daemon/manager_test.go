// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/seitokai/internal/api"
	"github.com/ManuGH/seitokai/internal/bot"
	"github.com/ManuGH/seitokai/internal/health"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBot blocks in Run until ctx is done or Close is called.
type fakeBot struct {
	runErr   error
	exitNow  bool
	closeErr error

	stop    chan struct{}
	once    sync.Once
	running atomic.Bool
	closed  atomic.Int32
}

func newFakeBot() *fakeBot { return &fakeBot{stop: make(chan struct{})} }

func (b *fakeBot) Run(ctx context.Context) error {
	if b.exitNow {
		return b.runErr
	}
	b.running.Store(true)
	defer b.running.Store(false)
	select {
	case <-ctx.Done():
	case <-b.stop:
	}
	return nil
}

func (b *fakeBot) Close(context.Context) error {
	b.closed.Add(1)
	b.once.Do(func() { close(b.stop) })
	if b.closeErr != nil {
		return b.closeErr
	}
	return nil
}

type fakeOps struct {
	listenErr error
	stop      chan struct{}
	once      sync.Once
	shutdowns atomic.Int32
}

func newFakeOps() *fakeOps { return &fakeOps{stop: make(chan struct{})} }

func (o *fakeOps) ListenAndServe() error {
	if o.listenErr != nil {
		return o.listenErr
	}
	<-o.stop
	return nil
}

func (o *fakeOps) Shutdown(context.Context) error {
	o.shutdowns.Add(1)
	o.once.Do(func() { close(o.stop) })
	return nil
}

func (o *fakeOps) Addr() string { return "fake" }

func testLogger() zerolog.Logger { return log.WithComponent("test") }

func newTestManager(t *testing.T, deps Deps) Manager {
	t.Helper()
	deps.Logger = testLogger()
	if deps.ShutdownTimeout == 0 {
		deps.ShutdownTimeout = 2 * time.Second
	}
	mgr, err := NewManager(deps)
	require.NoError(t, err)
	return mgr
}

func runManager(ctx context.Context, mgr Manager) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Start(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
		return nil
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(Deps{Logger: zerolog.Nop(), Bot: newFakeBot()})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(Deps{Logger: testLogger()})
	require.ErrorIs(t, err, ErrMissingBot)

	mgr, err := NewManager(Deps{Logger: testLogger(), Bot: newFakeBot()})
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownTimeout, mgr.(*manager).shutdownTimeout)
}

func TestManagerStopsOnContextCancel(t *testing.T) {
	b, ops := newFakeBot(), newFakeOps()
	mgr := newTestManager(t, Deps{Bot: b, Ops: ops})

	var order []string
	var mu sync.Mutex
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	mgr.RegisterShutdownHook("cursor", record("cursor"))
	mgr.RegisterShutdownHook("cache", record("cache"))
	mgr.RegisterShutdownHook("telemetry", record("telemetry"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runManager(ctx, mgr)
	require.Eventually(t, b.running.Load, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, waitErr(t, errCh))
	assert.Equal(t, []string{"telemetry", "cache", "cursor"}, order)
	assert.EqualValues(t, 1, b.closed.Load())
	assert.EqualValues(t, 1, ops.shutdowns.Load())
}

func TestManagerBotFailure(t *testing.T) {
	boom := errors.New("gateway rejected token")
	b := newFakeBot()
	b.exitNow = true
	b.runErr = boom
	mgr := newTestManager(t, Deps{Bot: b, Ops: newFakeOps()})

	err := waitErr(t, runManager(context.Background(), mgr))
	require.ErrorIs(t, err, boom)
}

func TestManagerBotStoppedUnexpectedly(t *testing.T) {
	b := newFakeBot()
	b.exitNow = true
	mgr := newTestManager(t, Deps{Bot: b})

	err := waitErr(t, runManager(context.Background(), mgr))
	require.ErrorIs(t, err, ErrBotStopped)
}

func TestManagerOpsFailureClosesBot(t *testing.T) {
	b, ops := newFakeBot(), newFakeOps()
	ops.listenErr = errors.New("address already in use")
	mgr := newTestManager(t, Deps{Bot: b, Ops: ops})

	err := waitErr(t, runManager(context.Background(), mgr))
	require.ErrorContains(t, err, "address already in use")
	assert.EqualValues(t, 1, b.closed.Load())
}

func TestManagerIgnoresBotNotRunning(t *testing.T) {
	b := newFakeBot()
	b.closeErr = fmt.Errorf("close: %w", bot.ErrNotRunning)
	mgr := newTestManager(t, Deps{Bot: b})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runManager(ctx, mgr)
	require.Eventually(t, b.running.Load, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitErr(t, errCh))
}

func TestManagerJoinsHookErrors(t *testing.T) {
	b := newFakeBot()
	mgr := newTestManager(t, Deps{Bot: b})
	hookErr := errors.New("flush failed")
	ran := false
	mgr.RegisterShutdownHook("first", func(context.Context) error { ran = true; return nil })
	mgr.RegisterShutdownHook("second", func(context.Context) error { return hookErr })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runManager(ctx, mgr)
	require.Eventually(t, b.running.Load, time.Second, 5*time.Millisecond)
	cancel()

	err := waitErr(t, errCh)
	require.ErrorIs(t, err, hookErr)
	assert.Contains(t, err.Error(), "hook second")
	assert.True(t, ran, "later hook failure must not skip earlier hooks")
}

func TestManagerLifecycleErrors(t *testing.T) {
	b := newFakeBot()
	mgr := newTestManager(t, Deps{Bot: b})
	require.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runManager(ctx, mgr)
	require.Eventually(t, b.running.Load, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, mgr.Start(ctx), ErrManagerStarted)

	cancel()
	require.NoError(t, waitErr(t, errCh))
	require.NoError(t, mgr.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManagerServesOpsEndpoints(t *testing.T) {
	hm := health.NewManager("test")
	ops := api.New(api.Config{ListenAddr: "127.0.0.1:0", Gatherer: prometheus.NewRegistry()}, hm)
	b := newFakeBot()
	mgr := newTestManager(t, Deps{Bot: b, Ops: ops})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runManager(ctx, mgr)
	require.Eventually(t, func() bool { return ops.Addr() != "127.0.0.1:0" }, 2*time.Second, 5*time.Millisecond)

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + ops.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	require.NoError(t, waitErr(t, errCh))
}

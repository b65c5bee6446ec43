// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gateway maintains the Guilded websocket session: it authenticates,
// heartbeats, decodes frames and fans events out to listeners.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/seitokai/internal/cursor"
	"github.com/ManuGH/seitokai/internal/dispatch"
	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/ManuGH/seitokai/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
)

// DefaultURL is the public Guilded gateway.
const DefaultURL = "wss://api.guilded.gg/v1/websocket"

const (
	lastMessageIDHeader      = "guilded-last-message-id"
	defaultHeartbeatInterval = 22500 * time.Millisecond
	defaultHelloTimeout      = 10 * time.Second
	defaultMinBackoff        = time.Second
	defaultMaxBackoff        = time.Minute
	defaultJoinTimeout       = 5 * time.Second

	// maxHandshakeRejections bounds consecutive non-101 upgrade responses
	// tolerated after a session has been established.
	maxHandshakeRejections = 8
)

var (
	ErrAlreadyRunning = errors.New("gateway: client already running")
	ErrNotRunning     = errors.New("gateway: client is not running")
	ErrNotConnected   = errors.New("gateway: not connected")
	ErrNoWelcome      = errors.New("gateway: connection closed before welcome frame")
	ErrHandshake      = errors.New("gateway: handshake rejected")
	ErrNoListener     = errors.New("gateway: no such raw listener")
)

// EventSink receives decoded op 0 events. The event manager implements it.
type EventSink interface {
	DispatchRaw(ctx context.Context, name string, data json.RawMessage) error
}

// Options configures the client. Zero values select defaults.
type Options struct {
	URL    string
	Origin string
	// Reconnect redials after unexpected disconnects.
	Reconnect    bool
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	HelloTimeout time.Duration
	// Cursor persists the last message id across restarts. Nil keeps it in memory.
	Cursor cursor.Store
}

func normalizeOptions(opts Options) Options {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Origin == "" {
		opts.Origin = "https://www.guilded.gg/"
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if opts.HelloTimeout <= 0 {
		opts.HelloTimeout = defaultHelloTimeout
	}
	if opts.Cursor == nil {
		opts.Cursor = cursor.NewMemoryStore()
	}
	return opts
}

// Client is a reconnecting Guilded gateway client.
type Client struct {
	token  string
	opts   Options
	sink   EventSink
	logger zerolog.Logger

	mu            sync.RWMutex
	running       bool
	conn          *websocket.Conn
	cancel        context.CancelFunc
	done          chan struct{}
	runner        *dispatch.Runner
	lastMessageID string

	rawMu sync.Mutex
	raw   map[string]*dispatch.Dispatchable[RawEvent]

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// New creates a stopped client. sink may be nil when only raw listeners are used.
func New(token string, sink EventSink, opts Options) *Client {
	return &Client{
		token:  token,
		opts:   normalizeOptions(opts),
		sink:   sink,
		logger: log.WithComponent("gateway"),
		raw:    make(map[string]*dispatch.Dispatchable[RawEvent]),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

// IsRunning reports whether Run is active.
func (c *Client) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// IsConnected reports whether a websocket session is currently open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// LastMessageID returns the most recent event cursor seen.
func (c *Client) LastMessageID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMessageID
}

// Run connects and processes events until ctx is done or Close is called.
// With Reconnect disabled, the first disconnect ends Run with its cause.
// A rejected upgrade is final before the first welcome; afterwards it is
// retried like any other disconnect, up to maxHandshakeRejections in a row.
func (c *Client) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.runner = dispatch.NewRunner(runCtx, c.logger)
	runner, done := c.runner, c.done
	c.mu.Unlock()

	defer func() {
		cancel()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), defaultJoinTimeout)
		if err := runner.Wait(waitCtx); err != nil {
			c.logger.Warn().Err(err).Msg("raw listeners still running at shutdown")
		}
		waitCancel()
		c.closeRawStreams()

		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.runner = nil
		c.done = nil
		c.mu.Unlock()
		close(done)
	}()

	if err := c.restoreCursor(runCtx); err != nil {
		c.logger.Warn().Err(err).Msg("could not load gateway cursor, starting fresh")
	}

	attempt, rejections := 0, 0
	welcomed := false
	for {
		established, err := c.session(runCtx)
		if runCtx.Err() != nil {
			return nil
		}
		if established {
			attempt = 0
			welcomed = true
		}

		final := !c.opts.Reconnect
		if errors.Is(err, ErrHandshake) {
			rejections++
			final = final || !welcomed || rejections > maxHandshakeRejections
		} else {
			rejections = 0
		}
		if final {
			if err == nil {
				err = io.EOF
			}
			return fmt.Errorf("gateway: session ended: %w", err)
		}

		reason := disconnectReason(err)

		wait := c.backoffFor(attempt)
		attempt++
		metrics.IncGatewayReconnect(reason)
		c.logger.Warn().
			Err(err).
			Str("reason", reason).
			Int(log.FieldAttempt, attempt).
			Dur(log.FieldBackoff, wait).
			Msg("gateway disconnected, reconnecting")

		if err := sleepWithContext(runCtx, wait); err != nil {
			return nil
		}
	}
}

func (c *Client) restoreCursor(ctx context.Context) error {
	c.mu.RLock()
	known := c.lastMessageID
	c.mu.RUnlock()
	if known != "" {
		return nil
	}
	id, err := c.opts.Cursor.Load(ctx)
	if err != nil {
		return err
	}
	if id != "" {
		c.mu.Lock()
		c.lastMessageID = id
		c.mu.Unlock()
		c.logger.Info().Str(log.FieldLastMessageID, id).Msg("resuming from stored cursor")
	}
	return nil
}

// Close asks Run to disconnect and return. Use Join to wait for it.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running {
		return ErrNotRunning
	}
	c.cancel()
	return nil
}

// Join blocks until Run has returned or ctx is done.
func (c *Client) Join(ctx context.Context) error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
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

// SendJSON writes v as a text frame on the open connection.
func (c *Client) SendJSON(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return frameCodec.Send(conn, v)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(c.opts.URL, c.opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid url: %w", err)
	}
	cfg.Header = make(http.Header)
	cfg.Header.Set("Authorization", "Bearer "+c.token)
	if id := c.LastMessageID(); id != "" {
		cfg.Header.Set(lastMessageIDHeader, id)
	}

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		var dialErr *websocket.DialError
		if errors.As(err, &dialErr) && dialErr.Err == websocket.ErrBadStatus {
			return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		return nil, fmt.Errorf("gateway: dial: %w", err)
	}
	return conn, nil
}

// session runs one connection. established reports whether the welcome
// frame arrived, which resets the reconnect backoff.
func (c *Client) session(ctx context.Context) (established bool, err error) {
	ctx, span := telemetry.Tracer(telemetry.TracerGateway).Start(ctx, "seitokai.gateway.session",
		trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if ctx.Err() != nil {
			telemetry.EndSpan(span, nil)
			return
		}
		telemetry.EndSpan(span, err)
	}()

	conn, err := c.dial(ctx)
	if err != nil {
		return false, err
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		_ = conn.Close()
		wg.Wait()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		metrics.SetGatewayConnected(false)
	}()

	// a blocked Receive only returns once the connection is closed
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	hello, err := c.waitForWelcome(conn)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	metrics.SetGatewayConnected(true)

	interval := time.Duration(hello.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	c.logger.Info().
		Str(log.FieldLastMessageID, hello.LastMessageID).
		Dur("heartbeat", interval).
		Msg("gateway connected")

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(conn, interval, stop)
	}()

	return true, c.receive(ctx, conn)
}

func (c *Client) waitForWelcome(conn *websocket.Conn) (welcome, error) {
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.HelloTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		var f frame
		if err := frameCodec.Receive(conn, &f); err != nil {
			if errors.Is(err, io.EOF) {
				return welcome{}, ErrNoWelcome
			}
			return welcome{}, fmt.Errorf("gateway: waiting for welcome: %w", err)
		}
		if f.payloadType != websocket.TextFrame {
			continue
		}

		var p payload
		if err := json.Unmarshal(f.data, &p); err != nil {
			metrics.IncGatewayFrame("unknown", "malformed")
			return welcome{}, fmt.Errorf("gateway: malformed welcome: %w", err)
		}
		if p.Op != OpWelcome {
			metrics.IncGatewayFrame(strconv.Itoa(p.Op), "ignored")
			c.logger.Warn().Int(log.FieldOpcode, p.Op).Msg("ignoring frame received before welcome")
			continue
		}
		metrics.IncGatewayFrame(strconv.Itoa(p.Op), "dispatched")

		var w welcome
		if err := json.Unmarshal(p.D, &w); err != nil {
			return welcome{}, fmt.Errorf("gateway: malformed welcome: %w", err)
		}
		if w.LastMessageID != "" {
			c.setLastMessageID(context.Background(), w.LastMessageID)
		}
		return w, nil
	}
}

func (c *Client) heartbeat(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.logger.Debug().Msg("sending heartbeat ping")
			if err := pingCodec.Send(conn, nil); err != nil {
				c.logger.Warn().Err(err).Msg("heartbeat failed, dropping connection")
				_ = conn.Close()
				return
			}
			metrics.IncGatewayHeartbeat()
		}
	}
}

func (c *Client) receive(ctx context.Context, conn *websocket.Conn) error {
	for {
		var f frame
		if err := frameCodec.Receive(conn, &f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handleFrame(ctx, f)
	}
}

func (c *Client) handleFrame(ctx context.Context, f frame) {
	if f.payloadType != websocket.TextFrame {
		metrics.IncGatewayFrame("binary", "ignored")
		c.logger.Info().Msg("skipping binary frame")
		return
	}

	var p payload
	if err := json.Unmarshal(f.data, &p); err != nil {
		metrics.IncGatewayFrame("unknown", "malformed")
		c.logger.Error().Err(err).Str("payload", truncate(f.data, 256)).Msg("ignoring frame that is not valid JSON")
		return
	}

	if p.S != "" {
		c.setLastMessageID(ctx, p.S)
	}

	op := strconv.Itoa(p.Op)
	switch p.Op {
	case OpEvent:
		metrics.IncGatewayFrame(op, "dispatched")
		c.dispatchRaw(ctx, RawEvent{Name: p.T, Data: p.D, MessageID: p.S})
	case OpWelcome:
		metrics.IncGatewayFrame(op, "ignored")
		c.logger.Debug().Msg("ignoring repeated welcome frame")
	case OpResume:
		metrics.IncGatewayFrame(op, "ignored")
		c.logger.Info().Str(log.FieldLastMessageID, c.LastMessageID()).Msg("gateway resumed session")
	default:
		metrics.IncGatewayFrame(op, "ignored")
		c.logger.Warn().Int(log.FieldOpcode, p.Op).Str("payload", truncate(f.data, 256)).Msg("ignoring unexpected opcode")
	}
}

func (c *Client) dispatchRaw(ctx context.Context, ev RawEvent) {
	c.rawMu.Lock()
	d := c.raw[ev.Name]
	c.rawMu.Unlock()

	c.mu.RLock()
	runner := c.runner
	c.mu.RUnlock()

	if d != nil && runner != nil {
		d.Dispatch(runner, ev)
	}

	if c.sink == nil {
		return
	}
	eventCtx := log.ContextWithEventName(ctx, ev.Name)
	if err := c.sink.DispatchRaw(eventCtx, ev.Name, ev.Data); err != nil {
		c.logger.Debug().Err(err).Str(log.FieldEvent, ev.Name).Msg("event manager rejected event")
	}
}

func (c *Client) setLastMessageID(ctx context.Context, id string) {
	c.mu.Lock()
	changed := c.lastMessageID != id
	c.lastMessageID = id
	c.mu.Unlock()
	if !changed {
		return
	}
	if err := c.opts.Cursor.Save(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldLastMessageID, id).Msg("failed to persist gateway cursor")
	}
}

func disconnectReason(err error) string {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return "closed"
	case errors.Is(err, ErrNoWelcome):
		return "no_welcome"
	case errors.Is(err, ErrHandshake):
		return "handshake"
	default:
		return "error"
	}
}

func (c *Client) backoffFor(attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	wait := c.opts.MinBackoff * time.Duration(1<<attempt)
	if wait > c.opts.MaxBackoff {
		wait = c.opts.MaxBackoff
	}
	c.rndMu.Lock()
	jitter := time.Duration(c.rnd.Int63n(int64(wait/5 + 1)))
	c.rndMu.Unlock()
	return wait + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

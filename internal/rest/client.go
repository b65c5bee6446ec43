// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rest is an authenticated client for the Guilded HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/marshal"
	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/ManuGH/seitokai/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// StandardURL is the public Guilded API root.
const StandardURL = "https://www.guilded.gg/api/v1/"

const (
	defaultTimeout          = 10 * time.Second
	defaultRetries          = 2
	defaultBackoff          = 250 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultMaxRetryAfter    = 30 * time.Second
	defaultRateLimit        = 5
	defaultRateLimitBurst   = 10
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
	maxErrorBody            = 512
)

// Options configures the REST client. Zero values select defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt. Negative
	// disables retries.
	MaxRetries       int
	Backoff          time.Duration
	MaxBackoff       time.Duration
	MaxRetryAfter    time.Duration
	RateLimit        rate.Limit
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration
	UserAgent        string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func normalizeOptions(opts Options) Options {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = StandardURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	switch {
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetryAfter <= 0 {
		opts.MaxRetryAfter = defaultMaxRetryAfter
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerThreshold
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerReset
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "seitokai"
	}
	return opts
}

// Client performs authenticated calls against the Guilded API. It must be
// started before use.
type Client struct {
	token      string
	marshaller marshal.Marshaller
	baseURL    *url.URL
	opts       Options
	logger     zerolog.Logger
	limiter    *rate.Limiter
	breaker    *CircuitBreaker

	mu   sync.RWMutex
	http *http.Client

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// New builds a stopped client. An empty token is allowed for routes that do
// not need authentication.
func New(token string, m marshal.Marshaller, opts Options) (*Client, error) {
	if m == nil {
		m = marshal.New()
	}
	opts = normalizeOptions(opts)
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &Client{
		token:      token,
		marshaller: m,
		baseURL:    base,
		opts:       opts,
		logger:     log.WithComponent("rest"),
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		breaker:    NewCircuitBreaker("rest", opts.BreakerThreshold, opts.BreakerReset, tripsBreaker),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}, nil
}

// Marshaller returns the marshaller used to decode responses.
func (c *Client) Marshaller() marshal.Marshaller { return c.marshaller }

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// IsRunning reports whether Start has been called without a matching Close.
func (c *Client) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http != nil
}

// Start opens the underlying HTTP client.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		return ErrAlreadyRunning
	}
	transport := c.opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: c.opts.Timeout,
		}
	}
	// per-attempt HTTP spans nest under the request span opened in do
	transport = otelhttp.NewTransport(transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
	c.http = &http.Client{Timeout: c.opts.Timeout, Transport: transport}
	c.logger.Debug().Str(log.FieldURL, c.baseURL.String()).Msg("rest client started")
	return nil
}

// Close releases idle connections. The client may be started again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		return fmt.Errorf("cannot close rest client: %w", ErrInactive)
	}
	c.http.CloseIdleConnections()
	c.http = nil
	c.logger.Debug().Msg("rest client closed")
	return nil
}

// RequestOption adjusts a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	useAuth bool
	route   string
	query   url.Values
}

// WithoutAuth omits the Authorization header.
func WithoutAuth() RequestOption {
	return func(rc *requestConfig) { rc.useAuth = false }
}

// WithQuery appends query parameters to the request URL.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) { rc.query = q }
}

// withRouteLabel sets the low-cardinality route used for metrics and spans.
func withRouteLabel(route string) RequestOption {
	return func(rc *requestConfig) { rc.route = route }
}

// Get performs a GET and returns the JSON body.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (json.RawMessage, error) {
	body, err := c.Request(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, &APIError{Sentinel: ErrBadResponse, Method: http.MethodGet, Route: path, Message: "empty body"}
	}
	return body, nil
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload any, opts ...RequestOption) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, path, payload, opts...)
}

// Put performs a PUT. payload may be nil.
func (c *Client) Put(ctx context.Context, path string, payload any, opts ...RequestOption) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPut, path, payload, opts...)
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, payload any, opts ...RequestOption) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPatch, path, payload, opts...)
}

// Delete performs a DELETE and discards any body.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	_, err := c.Request(ctx, http.MethodDelete, path, nil, opts...)
	return err
}

// Request sends method to path (relative to the base URL). A 204 yields a
// nil body; other 2xx responses must carry JSON.
func (c *Client) Request(ctx context.Context, method, path string, payload any, opts ...RequestOption) (json.RawMessage, error) {
	rc := requestConfig{useAuth: true}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.route == "" {
		rc.route = "/" + strings.TrimLeft(path, "/")
		if i := strings.IndexByte(rc.route, '?'); i >= 0 {
			rc.route = rc.route[:i]
		}
	}

	c.mu.RLock()
	httpClient := c.http
	c.mu.RUnlock()
	if httpClient == nil {
		return nil, ErrInactive
	}
	if rc.useAuth && c.token == "" {
		return nil, ErrNoToken
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("rest: encode %s %s: %w", method, rc.route, err)
		}
	}

	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: invalid path %q: %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref)
	if len(rc.query) > 0 {
		q := target.Query()
		for k, vs := range rc.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var result json.RawMessage
	err = c.breaker.ExecuteContext(ctx, func() error {
		var err error
		result, err = c.do(ctx, httpClient, method, target.String(), rc, body)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, &APIError{Sentinel: ErrUnavailable, Method: method, Route: rc.route, Err: err}
	}
	return result, err
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, method, rawURL string, rc requestConfig, body []byte) (json.RawMessage, error) {
	tracer := telemetry.Tracer(telemetry.TracerREST)
	ctx, span := tracer.Start(ctx, "seitokai.rest.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(telemetry.HTTPMethodKey, method),
		attribute.String(telemetry.HTTPRouteKey, rc.route),
	)
	logger := log.WithContext(ctx, c.logger).With().
		Str(log.FieldMethod, method).
		Str(log.FieldRoute, rc.route).
		Logger()

	maxAttempts := c.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := tracer.Start(ctx, "seitokai.rest.request.attempt", trace.WithSpanKind(trace.SpanKindClient))
		attemptSpan.SetAttributes(
			attribute.Int(telemetry.HTTPAttemptKey, attempt),
			attribute.Bool("retry", attempt > 1),
		)

		if err := c.limiter.Wait(attemptCtx); err != nil {
			telemetry.EndSpan(attemptSpan, err)
			telemetry.EndSpan(span, err)
			return nil, fmt.Errorf("rest: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			telemetry.EndSpan(attemptSpan, err)
			telemetry.EndSpan(span, err)
			return nil, fmt.Errorf("rest: build request: %w", err)
		}
		c.applyHeaders(req, rc.useAuth, body != nil)
		otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := httpClient.Do(req)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		result, reqErr := c.handleResponse(method, rc.route, resp, err)
		wait, retry := c.retryDecision(attempt, maxAttempts, reqErr)
		metrics.RecordRESTAttempt(method, rc.route, status, duration, err, retry)

		attemptSpan.SetAttributes(telemetry.HTTPAttributes(method, rc.route, rc.route, status)...)
		if reqErr != nil {
			attemptSpan.SetStatus(codes.Error, reqErr.Error())
		} else {
			attemptSpan.SetStatus(codes.Ok, "")
		}
		attemptSpan.End()

		if reqErr == nil {
			span.SetAttributes(attribute.Int(telemetry.HTTPStatusCodeKey, status))
			span.SetStatus(codes.Ok, "")
			span.End()
			return result, nil
		}
		lastErr = reqErr

		if !retry {
			break
		}

		logger.Warn().
			Err(reqErr).
			Int(log.FieldAttempt, attempt).
			Int(log.FieldStatus, status).
			Dur(log.FieldBackoff, wait).
			Msg("retrying request")
		if err := sleepWithContext(ctx, wait); err != nil {
			telemetry.EndSpan(span, err)
			return nil, err
		}
	}

	telemetry.EndSpan(span, lastErr)
	return nil, lastErr
}

func (c *Client) applyHeaders(req *http.Request, useAuth, hasBody bool) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if useAuth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleResponse consumes and closes resp.
func (c *Client) handleResponse(method, route string, resp *http.Response, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, &APIError{Sentinel: ErrUnavailable, Method: method, Route: route, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNonAuthoritativeInfo, http.StatusPartialContent:
		if !isJSON(resp.Header.Get("Content-Type")) {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &APIError{
				Sentinel: ErrBadResponse,
				Method:   method,
				Route:    route,
				Status:   resp.StatusCode,
				Message:  "unexpected content type " + strconv.Quote(resp.Header.Get("Content-Type")),
			}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &APIError{Sentinel: ErrUnavailable, Method: method, Route: route, Status: resp.StatusCode, Err: err}
		}
		if !json.Valid(data) {
			return nil, &APIError{Sentinel: ErrBadResponse, Method: method, Route: route, Status: resp.StatusCode, Message: "invalid JSON body"}
		}
		return data, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	apiErr := &APIError{
		Sentinel: sentinelForStatus(resp.StatusCode),
		Method:   method,
		Route:    route,
		Status:   resp.StatusCode,
	}
	var detail apiErrorBody
	if json.Unmarshal(data, &detail) == nil && (detail.Code != "" || detail.Message != "") {
		apiErr.Code = detail.Code
		apiErr.Message = detail.Message
	} else {
		apiErr.Body = strings.TrimSpace(string(data))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Err = retryAfterError(parseRetryAfter(resp.Header.Get("Retry-After")))
	}
	return nil, apiErr
}

// retryAfterError carries the server-provided delay for 429 responses.
type retryAfterError time.Duration

func (e retryAfterError) Error() string {
	return "retry after " + time.Duration(e).String()
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// retryDecision returns how long to wait and whether another attempt is allowed.
func (c *Client) retryDecision(attempt, maxAttempts int, err error) (time.Duration, bool) {
	if err == nil || attempt >= maxAttempts {
		return 0, false
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		return 0, false
	}
	switch apiErr.Sentinel {
	case ErrUnavailable, ErrUpstreamError:
		return c.backoffFor(attempt - 1), true
	case ErrRateLimited:
		wait := c.backoffFor(attempt - 1)
		if ra, ok := apiErr.Err.(retryAfterError); ok && time.Duration(ra) > 0 {
			if time.Duration(ra) > c.opts.MaxRetryAfter {
				return 0, false
			}
			wait = time.Duration(ra)
		}
		return wait, true
	}
	return 0, false
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.opts.Backoff * time.Duration(1<<attempt)
	if wait > c.opts.MaxBackoff {
		wait = c.opts.MaxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.rnd.Int63n(n)
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

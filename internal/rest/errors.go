package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks by callers.
	ErrUnauthorized  = errors.New("guilded: unauthorized (401)")
	ErrForbidden     = errors.New("guilded: access forbidden (403)")
	ErrNotFound      = errors.New("guilded: resource not found (404)")
	ErrRateLimited   = errors.New("guilded: rate limited (429)")
	ErrBadRequest    = errors.New("guilded: request rejected (4xx)")
	ErrUpstreamError = errors.New("guilded: internal error (5xx)")
	ErrBadResponse   = errors.New("guilded: invalid response format or malformed data")
	ErrUnavailable   = errors.New("guilded: host unreachable or transport failure")

	// Lifecycle and usage errors.
	ErrNoToken        = errors.New("rest: request requires a token but the client has none")
	ErrInactive       = errors.New("rest: client is not running")
	ErrAlreadyRunning = errors.New("rest: client is already running")
)

// APIError wraps a sentinel with the request context and whatever the API
// said about the failure.
type APIError struct {
	Sentinel error
	Method   string
	Route    string
	Status   int
	Code     string
	Message  string
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("rest: %s %s: %v", e.Method, e.Route, e.Sentinel)
	if e.Code != "" || e.Message != "" {
		msg = fmt.Sprintf("%s: %s %s", msg, e.Code, e.Message)
	} else if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// sentinelForStatus maps a non-2xx status onto its sentinel.
func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrUpstreamError
	case status >= http.StatusBadRequest:
		return ErrBadRequest
	default:
		return ErrBadResponse
	}
}

// tripsBreaker reports whether err indicates the API itself is unhealthy.
// Client-side mistakes (4xx other than 429) never open the circuit.
func tripsBreaker(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrUpstreamError) ||
		errors.Is(err, ErrRateLimited)
}

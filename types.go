package eduapi

import (
	"net/http"
	"net/url"
	"time"
)

// Middleware wraps a transport stage. Stages run in registration order, each
// receiving the next stage in the chain; the innermost stage attaches the
// bearer credential and performs the actual HTTP call.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestDescriptor describes one logical request. It lives for the duration
// of the call, including transport retries and the single refresh-and-retry
// pass: the retried marker guarantees at most one credential refresh per
// logical request.
type RequestDescriptor struct {
	Method      string
	Path        string
	Body        []byte
	Header      http.Header
	ContentType string
	Query       url.Values

	onProgress ProgressFunc
	retried    bool
	lastStatus int
}

// ProgressFunc reports upload progress as body bytes are written out.
type ProgressFunc func(written, total int64)

// CallOption customizes a single request.
type CallOption func(*RequestDescriptor)

// WithHeader adds a header to the request.
func WithHeader(key, value string) CallOption {
	return func(d *RequestDescriptor) {
		if d.Header == nil {
			d.Header = http.Header{}
		}
		d.Header.Add(key, value)
	}
}

// WithQuery adds a query string parameter to the request URL.
func WithQuery(key, value string) CallOption {
	return func(d *RequestDescriptor) {
		if d.Query == nil {
			d.Query = url.Values{}
		}
		d.Query.Add(key, value)
	}
}

// WithContentType overrides the Content-Type header for the request body.
func WithContentType(contentType string) CallOption {
	return func(d *RequestDescriptor) {
		d.ContentType = contentType
	}
}

// RetryConfig bounds the retry schedule for a call site. Immutable once
// passed to the executor.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff schedule. Zero means 30s.
	MaxDelay time.Duration
	// Multiplier grows the delay after each attempt. Values below 1 are
	// treated as 1.
	Multiplier float64
	// Jitter in [0,1] randomizes each delay. Zero keeps the schedule exact.
	Jitter float64
	// RetryIf decides whether an error is worth another attempt. Nil means
	// DefaultRetryIf.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns the schedule used by the client unless
// overridden: 3 attempts, 1s initial delay, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0,
		RetryIf:      DefaultRetryIf,
	}
}

// DefaultRetryIf retries transient failures only: network errors, timeouts
// and 5xx responses. Circuit-open rejections are never retried.
func DefaultRetryIf(err error) bool {
	return IsTransient(err)
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold opens the circuit after this many recorded failures.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// SuccessThreshold closes a half-open circuit after this many probe
	// successes. Defaults to 1.
	SuccessThreshold int
	// OpTimeout is the hard deadline raced against operations run through
	// Execute; exceeding it counts as a failure.
	OpTimeout time.Duration
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Option represents a client configuration option.
type Option func(*Client)

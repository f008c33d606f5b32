package eduapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelaskita/eduapi/internal/backoff"
	"golang.org/x/sync/singleflight"
)

// Client performs authenticated requests against the backend with retries,
// credential refresh and circuit breaking layered around net/http. It is
// safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	refreshPath string

	creds       *CredentialStore
	apiBreaker  *CircuitBreaker
	authBreaker *CircuitBreaker
	retryCfg    RetryConfig
	executor    *RetryExecutor
	middleware  []Middleware
	rateLimiter *RateLimiter

	notifier         Notifier
	onSessionExpired func()
	metrics          *MetricsCollector
	debug            *DebugConfig
	logger           Logger

	refreshGroup    singleflight.Group
	backoffStrategy backoff.Strategy
	validationError error
}

// New constructs a Client for the given API base URL using the provided
// functional options. A best effort validation is performed; call IsValid /
// ValidationError for errors.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		httpClient:      &http.Client{},
		baseURL:         strings.TrimRight(baseURL, "/"),
		timeout:         45 * time.Second,
		refreshPath:     "/auth/refresh-token",
		creds:           NewCredentialStore(nil),
		retryCfg:        DefaultRetryConfig(),
		middleware:      []Middleware{},
		notifier:        NopNotifier{},
		debug:           DefaultDebugConfig(),
		backoffStrategy: backoff.Exponential{},
	}
	// General API calls tolerate more failures than auth calls; a broken
	// auth endpoint must surface fast.
	client.apiBreaker = NewCircuitBreaker("api", CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  10 * time.Second,
		OpTimeout:        60 * time.Second,
	})
	client.authBreaker = NewCircuitBreaker("auth", CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  5 * time.Second,
		OpTimeout:        30 * time.Second,
	})

	for _, option := range options {
		option(client)
	}

	client.executor = &RetryExecutor{
		notifier: client.notifier,
		logger:   client.logger,
		debug:    client.debug,
		metrics:  client.metrics,
		strategy: client.backoffStrategy,
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// CredentialStore returns the store the client attaches credentials from.
func (c *Client) CredentialStore() *CredentialStore {
	return c.creds
}

// call runs one logical request through the retry executor. The descriptor
// is shared across attempts, so the refresh marker survives transport
// retries and refresh happens at most once per request.
func (c *Client) call(ctx context.Context, desc *RequestDescriptor) ([]byte, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := time.Now()
	endpoint := c.endpointLabel(desc)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", desc.Method, "path", desc.Path)
	}
	if c.metrics != nil {
		c.metrics.RecordRequestStart(desc.Method, endpoint)
	}

	var body []byte
	err := c.executor.Execute(ctx, func(ctx context.Context, attempt int) error {
		b, sendErr := c.send(ctx, desc, attempt, requestID)
		if sendErr == nil {
			body = b
		}
		return sendErr
	}, c.retryCfg)

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordRequestEnd(desc.Method, endpoint)
		c.metrics.RecordRequest(desc.Method, endpoint, desc.lastStatus, duration)
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(string(Kind(err)), desc.Method, endpoint)
		}
		if IsKind(err, KindSessionExpired) && c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		return nil, err
	}
	return body, nil
}

// send performs a single attempt: breaker gate, credential attachment,
// transport call, classification, and the one-shot refresh-and-retry pass
// on 401.
func (c *Client) send(ctx context.Context, desc *RequestDescriptor, attempt int, requestID string) ([]byte, error) {
	start := time.Now()
	endpoint := c.endpointLabel(desc)

	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimiterTokens(c.rateLimiter.Tokens())
		}
		return nil, c.newAPIError(KindRateLimited, "rate limit exceeded", nil, desc, requestID, attempt, time.Since(start))
	}

	if !c.apiBreaker.Allow() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogCircuit && c.logger != nil {
			c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", endpoint)
		}
		return nil, c.newAPIError(KindCircuitOpen, "api circuit breaker is open", nil, desc, requestID, attempt, time.Since(start))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(attemptCtx, desc)
	if err != nil {
		return nil, c.newAPIError(KindUnknown, "failed to build request", err, desc, requestID, attempt, time.Since(start))
	}

	resp, err := c.executeMiddleware(req)

	if err != nil || (resp != nil && resp.StatusCode >= 500) {
		c.apiBreaker.RecordFailure()
	} else {
		c.apiBreaker.RecordSuccess()
	}
	if c.metrics != nil {
		c.metrics.RecordCircuitBreakerState(c.apiBreaker.Name(), c.apiBreaker.State())
	}

	if err != nil {
		desc.lastStatus = 0
		kind := KindNetwork
		msg := "network request failed"
		if isTimeoutErr(err) {
			kind = KindTimeout
			msg = "request timed out"
		}
		return nil, c.newAPIError(kind, msg, err, desc, requestID, attempt, time.Since(start))
	}

	defer resp.Body.Close()
	desc.lastStatus = resp.StatusCode

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, c.newAPIError(KindNetwork, "failed to read response body", readErr, desc, requestID, attempt, time.Since(start))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, desc, attempt, requestID, start)
	}

	return nil, c.classifyStatus(resp.StatusCode, body, desc, requestID, attempt, time.Since(start))
}

// handleUnauthorized implements the single-shot refresh semantics: the
// first 401 of a request triggers a refresh and one re-issue; a 401 on the
// re-issued request, or any refresh failure, ends the session.
func (c *Client) handleUnauthorized(ctx context.Context, desc *RequestDescriptor, attempt int, requestID string, start time.Time) ([]byte, error) {
	if !desc.retried {
		if cred, ok := c.creds.Get(); ok && cred.RefreshToken != "" {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRefresh && c.logger != nil {
				c.logger.Info("Access token rejected, refreshing", "requestID", requestID)
			}
			if err := c.refreshCredential(ctx); err == nil {
				desc.retried = true
				return c.send(ctx, desc, attempt, requestID)
			}
		}
	}

	_ = c.creds.Clear()
	return nil, c.newAPIError(KindSessionExpired, "session expired", nil, desc, requestID, attempt, time.Since(start))
}

func (c *Client) classifyStatus(status int, body []byte, desc *RequestDescriptor, requestID string, attempt int, duration time.Duration) *APIError {
	msg := backendMessage(body)

	var kind ErrorKind
	switch {
	case status == http.StatusForbidden:
		kind = KindForbidden
		if msg == "" {
			msg = "access forbidden"
		}
	case status == http.StatusNotFound:
		kind = KindNotFound
		if msg == "" {
			msg = "resource not found"
		}
	case status == http.StatusUnprocessableEntity:
		kind = KindValidation
		if msg == "" {
			msg = "validation failed"
		}
	case status >= 500:
		kind = KindServer
		if msg == "" {
			msg = "server error"
		}
	default:
		kind = KindUnknown
		if msg == "" {
			msg = "unexpected response"
		}
	}

	apiErr := c.newAPIError(kind, msg, nil, desc, requestID, attempt, duration)
	apiErr.StatusCode = status
	return apiErr
}

func (c *Client) newRequest(ctx context.Context, desc *RequestDescriptor) (*http.Request, error) {
	u := c.baseURL + "/" + strings.TrimLeft(desc.Path, "/")
	if len(desc.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + desc.Query.Encode()
	}

	var reader io.Reader
	if desc.Body != nil {
		if desc.onProgress != nil {
			reader = &progressReader{
				r:          bytes.NewReader(desc.Body),
				total:      int64(len(desc.Body)),
				onProgress: desc.onProgress,
			}
		} else {
			reader = bytes.NewReader(desc.Body)
		}
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, u, reader)
	if err != nil {
		return nil, err
	}

	for key, values := range desc.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if desc.Body != nil && req.Header.Get("Content-Type") == "" {
		contentType := desc.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", "eduapi/"+Version)

	return req, nil
}

func (c *Client) newAPIError(kind ErrorKind, message string, cause error, desc *RequestDescriptor, requestID string, attempt int, duration time.Duration) *APIError {
	return &APIError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		RequestID: requestID,
		Method:    desc.Method,
		URL:       c.baseURL + desc.Path,
		Attempt:   attempt,
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

func (c *Client) endpointLabel(desc *RequestDescriptor) string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return desc.Path
	}
	path := desc.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return u.Host + path
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// progressReader reports cumulative bytes read to the upload progress
// callback.
type progressReader struct {
	r          io.Reader
	total      int64
	written    int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		p.onProgress(p.written, p.total)
	}
	return n, err
}

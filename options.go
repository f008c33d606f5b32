package eduapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kelaskita/eduapi/internal/backoff"
)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt request timeout. The default is 45s,
// generous because some calls invoke long-running generation work on the
// backend.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryConfig overrides the default retry schedule.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithRetryIf overrides only the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Client) {
		c.retryCfg.RetryIf = fn
	}
}

// WithBackoffStrategy replaces the backoff algorithm used between retries.
func WithBackoffStrategy(strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.backoffStrategy = strategy
	}
}

// WithCircuitBreaker replaces the breaker guarding general API calls.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.apiBreaker = NewCircuitBreaker("api", config)
	}
}

// WithAuthCircuitBreaker replaces the breaker guarding authentication
// calls.
func WithAuthCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.authBreaker = NewCircuitBreaker("auth", config)
	}
}

// WithCredentialStore sets the credential store the client reads from and
// refreshes into.
func WithCredentialStore(store *CredentialStore) Option {
	return func(c *Client) {
		c.creds = store
	}
}

// WithStorage is shorthand for WithCredentialStore over the given backend.
func WithStorage(storage Storage) Option {
	return func(c *Client) {
		c.creds = NewCredentialStore(storage)
	}
}

// WithRefreshPath overrides the token refresh endpoint path.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithMiddleware adds middleware stages to the pipeline in order.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimiter enables the local token bucket rate limiter.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(notifier Notifier) Option {
	return func(c *Client) {
		c.notifier = notifier
	}
}

// WithOnSessionExpired registers the hook fired when a request ends in
// SessionExpired; the host application typically redirects to login.
func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithZerolog enables debug logging through the given zerolog.Logger.
func WithZerolog(zl zerolog.Logger) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewZerologLogger(zl)
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		if c.logger == nil {
			c.logger = NewSimpleLogger()
		}
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error describing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateBaseConfig()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateBreakerConfig(c.apiBreaker)...)
	problems = append(problems, c.validateBreakerConfig(c.authBreaker)...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateDebugConfig()...)

	if len(problems) > 0 {
		return &APIError{
			Kind:    KindUnknown,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

func (c *Client) validateBaseConfig() []string {
	var problems []string

	if c.baseURL == "" {
		problems = append(problems, "base URL must not be empty")
	}
	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}
	if c.creds == nil {
		problems = append(problems, "credential store cannot be nil")
	}
	if c.refreshPath == "" {
		problems = append(problems, "refresh path must not be empty")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.retryCfg.MaxAttempts < 1 {
		problems = append(problems, "retry MaxAttempts must be at least 1")
	}
	if c.retryCfg.MaxAttempts > 100 {
		problems = append(problems, "retry MaxAttempts > 100 may cause excessive resource usage")
	}
	if c.retryCfg.InitialDelay < 0 {
		problems = append(problems, "retry InitialDelay must be non-negative")
	}
	if c.retryCfg.Multiplier < 1 {
		problems = append(problems, "retry Multiplier must be at least 1")
	}
	if c.retryCfg.Jitter < 0 || c.retryCfg.Jitter > 1 {
		problems = append(problems, "retry Jitter must be between 0 and 1")
	}
	if c.retryCfg.MaxDelay < 0 {
		problems = append(problems, "retry MaxDelay must be non-negative")
	}

	return problems
}

func (c *Client) validateBreakerConfig(cb *CircuitBreaker) []string {
	if cb == nil {
		return []string{"circuit breaker cannot be nil"}
	}

	var problems []string
	if cb.config.FailureThreshold <= 0 {
		problems = append(problems, cb.name+" breaker FailureThreshold must be positive")
	}
	if cb.config.RecoveryTimeout <= 0 {
		problems = append(problems, cb.name+" breaker RecoveryTimeout must be positive")
	}
	if cb.config.SuccessThreshold <= 0 {
		problems = append(problems, cb.name+" breaker SuccessThreshold must be positive")
	}
	if cb.config.OpTimeout <= 0 {
		problems = append(problems, cb.name+" breaker OpTimeout must be positive")
	}
	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

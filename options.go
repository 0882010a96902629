package tutorapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// WithMaxRetries sets the maximum number of retry attempts
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxRetries = n
	}
}

// WithInitialBackoff sets the delay before the first retry
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = d
	}
}

// WithMaxBackoff sets the maximum backoff duration
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxDelay = d
	}
}

// WithBackoffMultiplier sets the backoff multiplier
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.retry.Multiplier = f
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0)
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.retry.Jitter = f
	}
}

// WithBackoffStrategy selects how delays grow between retries.
func WithBackoffStrategy(s BackoffStrategy) Option {
	return func(c *Client) {
		c.retry.Strategy = s
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithTimeout sets the per-attempt HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMiddleware appends middleware run around every dispatched attempt
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithTokenStore sets where the session tokens live.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// WithKeyValueStore persists tokens through kv, loading any stored session.
func WithKeyValueStore(kv KeyValueStore) Option {
	return func(c *Client) {
		store, err := NewTokenStore(kv)
		if err != nil {
			c.validationError = fmt.Errorf("%w: loading tokens: %v", ErrInvalidConfig, err)
			return
		}
		c.tokens = store
	}
}

// WithTokenScheme sets the Authorization scheme, "Token" by default.
func WithTokenScheme(scheme string) Option {
	return func(c *Client) {
		c.tokenScheme = scheme
	}
}

// WithRefreshEndpoint sets the token refresh path.
func WithRefreshEndpoint(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithRefreshTimeout bounds the refresh exchange.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// WithLoginEndpoint sets the credential exchange path.
func WithLoginEndpoint(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

// WithLogoutEndpoint sets the server logout path.
func WithLogoutEndpoint(path string) Option {
	return func(c *Client) {
		c.logoutPath = path
	}
}

// WithNavigator sets who is told to send the user back to the login screen.
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		if n != nil {
			c.navigator = n
		}
	}
}

// WithCache replaces the response cache and its TTL.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithCacheTTL sets how long cached responses stay fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCacheCondition sets the cache condition function
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithCacheExemptions replaces the default exempt path fragments.
func WithCacheExemptions(fragments ...string) Option {
	return func(c *Client) {
		c.cacheCondition = ExemptingCacheCondition(fragments...)
	}
}

// WithoutCache turns response caching off.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
	}
}

// WithDeduplicationCondition sets which requests may be coalesced.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithoutDeduplication sends every request to the network.
func WithoutDeduplication() Option {
	return func(c *Client) {
		c.deduplication = nil
	}
}

// WithCircuitBreaker enables a circuit breaker over network and server failures.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithRateLimit paces attempts to burst at once plus one per interval.
// Waiting honours the request context.
func WithRateLimit(burst int, interval time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(burst, interval)
	}
}

// WithMetrics enables metrics collection with default collector
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithTracerProvider records a span per dispatched attempt.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithDebug enables debug logging with default settings
func WithDebug() Option {
	return func(c *Client) {
		c.debug = VerboseDebugConfig()
		if _, ok := c.logger.(nopLogger); ok {
			c.logger = NewSimpleLogger()
		}
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		if config != nil {
			c.debug = config
		}
	}
}

// WithLogger sets the logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSimpleLogger sets a pterm backed logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom request ID generator
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.debug.RequestIDGen = gen
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBodyBytes = n
	}
}

// ValidateConfiguration checks the client settings. The returned error wraps
// ErrInvalidConfig.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateBaseURL()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateAuthConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateRateLimitConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateTransportConfig()...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Client) validateBaseURL() []string {
	if c.baseURL == "" {
		return []string{"baseURL must not be empty"}
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return []string{"baseURL must be an absolute http(s) URL"}
	}
	return nil
}

func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.retry.MaxRetries < 0 {
		errors = append(errors, "maxRetries must be non-negative")
	}
	if c.retry.BaseDelay <= 0 {
		errors = append(errors, "initialBackoff must be positive")
	}
	if c.retry.MaxDelay < c.retry.BaseDelay {
		errors = append(errors, "maxBackoff must be greater than or equal to initialBackoff")
	}
	if c.retry.Multiplier <= 0 {
		errors = append(errors, "backoffMultiplier must be positive")
	}
	if c.retry.Jitter < 0 || c.retry.Jitter > 1 {
		errors = append(errors, "jitter must be between 0 and 1")
	}
	if c.retry.MaxRetries > 10 {
		errors = append(errors, "maxRetries should not exceed 10")
	}

	return errors
}

func (c *Client) validateAuthConfig() []string {
	var errors []string

	if c.tokens == nil {
		errors = append(errors, "token store must be set")
	}
	if strings.TrimSpace(c.tokenScheme) == "" {
		errors = append(errors, "token scheme must not be empty")
	}
	if c.refreshPath == "" || c.loginPath == "" || c.logoutPath == "" {
		errors = append(errors, "login, logout and refresh endpoints must be set")
	}
	if c.refreshTimeout <= 0 {
		errors = append(errors, "refresh timeout must be positive")
	}

	return errors
}

func (c *Client) validateCacheConfig() []string {
	var errors []string

	if c.cache != nil {
		if c.cacheTTL <= 0 {
			errors = append(errors, "cacheTTL must be positive when cache is enabled")
		}
		if c.cacheCondition == nil {
			errors = append(errors, "cacheCondition cannot be nil when cache is enabled")
		}
	}

	return errors
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var errors []string

	if c.circuitBreaker != nil {
		config := c.circuitBreaker.config
		if config.FailureThreshold <= 0 {
			errors = append(errors, "circuit breaker failureThreshold must be positive")
		}
		if config.RecoveryTimeout <= 0 {
			errors = append(errors, "circuit breaker recoveryTimeout must be positive")
		}
		if config.SuccessThreshold <= 0 {
			errors = append(errors, "circuit breaker successThreshold must be positive")
		}
	}

	return errors
}

func (c *Client) validateRateLimitConfig() []string {
	if c.rateLimiter == nil {
		return nil
	}
	var errors []string
	if c.rateLimiter.burst <= 0 {
		errors = append(errors, "rate limit burst must be positive")
	}
	if c.rateLimiter.interval < 0 {
		errors = append(errors, "rate limit interval must not be negative")
	}
	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware at index %d cannot be nil", i))
		}
	}

	return errors
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.httpClient.Timeout < 0 {
		errors = append(errors, "timeout must not be negative")
	}
	if c.maxBodyBytes <= 0 {
		errors = append(errors, "max response bytes must be positive")
	}
	if c.debug == nil {
		errors = append(errors, "debug config cannot be nil")
	}

	return errors
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

package tutorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ambiyansyah-risyal/tutorapi/internal/singleflight"
)

const (
	defaultTokenScheme    = "Token"
	defaultRefreshPath    = "/auth/refresh/"
	defaultLoginPath      = "/auth/login/"
	defaultLogoutPath     = "/auth/logout/"
	defaultRefreshTimeout = 10 * time.Second
	defaultCacheTTL       = 5 * time.Minute
	defaultMaxBodyBytes   = 10 << 20

	contentTypeJSON = "application/json"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Client talks to the platform REST API. Every call resolves to a Response
// envelope; failures never surface as Go errors or panics. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	middleware []Middleware
	retry      RetryPolicy

	tokens         TokenStore
	tokenScheme    string
	refreshPath    string
	refreshTimeout time.Duration
	loginPath      string
	logoutPath     string
	navigator      Navigator
	refreshes      *singleflight.Group[struct{}]

	deduplication  *DeduplicationTracker
	dedupCondition DeduplicationCondition

	cache          Cache
	cacheTTL       time.Duration
	cacheCondition CacheCondition

	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter
	metrics        *MetricsCollector
	tracer         trace.Tracer
	debug          *DebugConfig
	logger         Logger

	userAgent    string
	maxBodyBytes int64
	now          func() time.Time

	validationError error
}

// New constructs a Client for the API rooted at baseURL. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:          DefaultRetryPolicy(),
		tokens:         NewMemoryTokenStore(),
		tokenScheme:    defaultTokenScheme,
		refreshPath:    defaultRefreshPath,
		refreshTimeout: defaultRefreshTimeout,
		loginPath:      defaultLoginPath,
		logoutPath:     defaultLogoutPath,
		navigator:      noopNavigator{},
		refreshes:      singleflight.New[struct{}](),
		deduplication:  NewDeduplicationTracker(),
		dedupCondition: DefaultDeduplicationCondition,
		cache:          NewInMemoryCache(),
		cacheTTL:       defaultCacheTTL,
		cacheCondition: DefaultCacheCondition,
		tracer:         defaultTracer(),
		debug:          DefaultDebugConfig(),
		logger:         nopLogger{},
		userAgent:      UserAgent(),
		maxBodyBytes:   defaultMaxBodyBytes,
		now:            time.Now,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil && client.validationError == nil {
		client.validationError = err
	}

	return client
}

// Request performs one logical API call: de-duplication, cache, dispatch,
// token refresh, retries and normalization. It never returns an error; check
// Success on the returned envelope.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) RawResponse {
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Method = opts.method()

	if c.deduplication == nil || c.dedupCondition == nil || !c.dedupCondition(opts.Method, endpoint) {
		return c.perform(ctx, endpoint, opts)
	}

	key := DeduplicationKey(opts.Method, endpoint, opts.Body)
	entry, owner := c.deduplication.GetOrCreateEntry(key)
	if !owner {
		c.metrics.RecordDeduplicationHit(opts.Method, endpointLabel(endpoint))
		if c.debug.Enabled && c.debug.LogRequests {
			c.logger.Debug("Deduplication hit", "method", opts.Method, "endpoint", endpoint, "waiters", entry.Waiters())
		}
		result, err := entry.Wait(ctx)
		if err != nil {
			resp := c.failure(ErrorKindNetwork, MsgNetwork, 0)
			resp.detail = &failureDetail{Cause: err, Method: opts.Method, Endpoint: endpoint, At: c.now().UTC()}
			return resp
		}
		// each waiter owns its bytes
		result.Data = cloneRaw(result.Data)
		return result
	}

	// waiters must be released even if perform panics
	completed := false
	defer func() {
		if !completed {
			c.deduplication.Complete(key, c.failure(ErrorKindNetwork, MsgNetwork, 0))
		}
	}()

	result := c.perform(ctx, endpoint, opts)
	c.deduplication.Complete(key, result)
	completed = true
	return result
}

func (c *Client) perform(ctx context.Context, endpoint string, opts RequestOptions) RawResponse {
	label := endpointLabel(endpoint)
	cacheable := c.cache != nil && c.cacheCondition != nil && c.cacheCondition(opts.Method, endpoint)

	if cacheable {
		if entry, ok := c.cache.Get(endpoint); ok {
			c.metrics.RecordCacheHit(label)
			if c.debug.Enabled && c.debug.LogCache {
				c.logger.Debug("Cache hit", "endpoint", endpoint)
			}
			return c.success(cloneRaw(entry.Data), entry.Message)
		}
		c.metrics.RecordCacheMiss(label)
		if c.debug.Enabled && c.debug.LogCache {
			c.logger.Debug("Cache miss", "endpoint", endpoint)
		}
	}

	var requestID string
	if c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	start := c.now()
	result := c.run(ctx, endpoint, opts, requestID)

	if c.debug.Enabled && c.debug.LogRequests {
		c.logger.Debug("Request finished", "requestID", requestID, "method", opts.Method, "endpoint", endpoint,
			"success", result.Success, "kind", result.Kind, "duration", c.now().Sub(start))
	}

	if !result.Success {
		c.metrics.RecordError(result.Kind, opts.Method, label)
		return c.annotateFailure(result, requestID, opts.Method, endpoint, start)
	}

	if cacheable {
		c.cache.Set(endpoint, &CacheEntry{Data: cloneRaw(result.Data), Message: result.Message}, c.cacheTTL)
		c.metrics.RecordCacheSize(c.cache.Len())
		if c.debug.Enabled && c.debug.LogCache {
			c.logger.Debug("Response cached", "endpoint", endpoint, "ttl", c.cacheTTL)
		}
	}
	return result
}

// run is the attempt loop. A 401 triggers at most one refresh and replay;
// network and server failures are retried until the policy gives up.
func (c *Client) run(ctx context.Context, endpoint string, opts RequestOptions, requestID string) RawResponse {
	attempt := opts.Attempt
	canRefresh := opts.Attempt == 0 && !c.isSessionEndpoint(endpoint)
	fail := func(kind ErrorKind, message string, status int, cause error) RawResponse {
		resp := c.failure(kind, message, status)
		resp.detail = &failureDetail{Cause: cause, Attempt: attempt, MaxRetries: c.retry.MaxRetries}
		return resp
	}

	for {
		res := c.dispatch(ctx, endpoint, opts, requestID, attempt)
		if res.kind == "" {
			return c.success(res.payload.Data(), res.payload.Message)
		}

		switch {
		case res.kind == ErrorKindAuth && c.isSessionEndpoint(endpoint):
			return fail(res.kind, res.message, res.status, res.err)

		case res.kind == ErrorKindAuth:
			if !canRefresh {
				return fail(ErrorKindAuth, MsgAuth, res.status, res.err)
			}
			canRefresh = false
			if err := c.recoverSession(res.token); err != nil {
				if c.debug.Enabled && c.debug.LogAuth {
					c.logger.Warn("Session could not be recovered", "requestID", requestID, "endpoint", endpoint, "error", err)
				}
				return fail(ErrorKindAuth, MsgAuth, res.status, err)
			}
			attempt++
			continue

		case res.kind.Retryable():
			delay, ok := c.retry.ShouldRetry(res.kind, attempt, res.retryAfter)
			if !ok || ctx.Err() != nil {
				break
			}
			if c.debug.Enabled && c.debug.LogRetries {
				c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1,
					"maxRetries", c.retry.MaxRetries, "backoff", delay, "endpoint", endpoint, "kind", res.kind)
			}
			if err := sleep(ctx, delay); err != nil {
				return fail(ErrorKindNetwork, MsgNetwork, 0, err)
			}
			attempt++
			c.metrics.RecordRetry(opts.Method, endpointLabel(endpoint), attempt)
			continue
		}

		return fail(res.kind, res.message, res.status, res.err)
	}
}

// attemptResult is the classified outcome of one HTTP exchange.
type attemptResult struct {
	status     int
	kind       ErrorKind
	message    string
	payload    Payload
	retryAfter time.Duration
	token      string
	err        error
}

func (c *Client) dispatch(ctx context.Context, endpoint string, opts RequestOptions, requestID string, attempt int) attemptResult {
	label := endpointLabel(endpoint)
	ctx, span := c.startAttemptSpan(ctx, opts.Method, label, requestID, attempt)

	if c.debug.Enabled && c.debug.LogRequests {
		c.logger.Debug("Starting request", "requestID", requestID, "method", opts.Method, "endpoint", endpoint, "attempt", attempt)
	}

	start := c.now()
	res := c.roundTrip(ctx, endpoint, opts, requestID)
	duration := c.now().Sub(start)

	c.metrics.RecordRequest(opts.Method, label, res.status, duration)
	endAttemptSpan(span, res.status, res.kind, res.err)

	if c.debug.Enabled && c.debug.LogRequests {
		c.logger.Debug("Request attempt completed", "requestID", requestID, "status", res.status,
			"kind", res.kind, "duration", duration)
	}
	return res
}

func (c *Client) roundTrip(ctx context.Context, endpoint string, opts RequestOptions, requestID string) attemptResult {
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
		return attemptResult{kind: ErrorKindNetwork, message: MsgNetwork, err: ErrCircuitOpen}
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return attemptResult{kind: ErrorKindNetwork, message: MsgNetwork, err: err}
		}
	}

	req, token, err := c.newHTTPRequest(ctx, endpoint, opts, requestID)
	if err != nil {
		return attemptResult{kind: ErrorKindNetwork, message: MsgNetwork, err: err}
	}

	label := endpointLabel(endpoint)
	c.metrics.RecordRequestStart(opts.Method, label)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordRequestEnd(opts.Method, label)
	if err != nil {
		c.recordBreaker(false)
		return attemptResult{kind: ErrorKindNetwork, message: MsgNetwork, token: token, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		c.recordBreaker(false)
		return attemptResult{status: resp.StatusCode, kind: ErrorKindNetwork, message: MsgNetwork, token: token, err: err}
	}

	res := attemptResult{status: resp.StatusCode, token: token}
	if kind := classifyStatus(resp.StatusCode); kind != "" {
		c.recordBreaker(kind != ErrorKindServer)
		res.kind = kind
		res.message = deriveErrorMessage(body, kind)
		res.err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if kind == ErrorKindServer {
			res.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return res
	}
	c.recordBreaker(true)

	payload, err := DecodePayload(body)
	if err != nil {
		res.kind = ErrorKindParse
		res.message = MsgParse
		res.err = err
		return res
	}
	if payload.Failed {
		res.kind = ErrorKindValidation
		res.message = deriveErrorMessage(body, ErrorKindValidation)
		return res
	}
	res.payload = payload
	return res
}

// newHTTPRequest builds the outgoing request and reports the access token it
// was authorized with.
func (c *Client) newHTTPRequest(ctx context.Context, endpoint string, opts RequestOptions, requestID string) (*http.Request, string, error) {
	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, c.resolveURL(endpoint), body)
	if err != nil {
		return nil, "", err
	}

	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if req.Header.Get("Content-Type") == "" {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = contentTypeJSON
		}
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", contentTypeJSON)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	access, _ := c.tokens.Tokens()
	if access != "" {
		req.Header.Set("Authorization", c.tokenScheme+" "+access)
	}
	return req, access, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Client) recordBreaker(ok bool) {
	if c.circuitBreaker == nil {
		return
	}
	if ok {
		c.circuitBreaker.RecordSuccess()
	} else {
		c.circuitBreaker.RecordFailure()
	}
	c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
}

func (c *Client) success(data json.RawMessage, message string) RawResponse {
	return RawResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: c.timestamp(),
	}
}

func (c *Client) failure(kind ErrorKind, message string, status int) RawResponse {
	if message == "" {
		message = kind.DefaultMessage()
	}
	return RawResponse{
		Success:    false,
		Error:      message,
		Timestamp:  c.timestamp(),
		Kind:       kind,
		StatusCode: status,
	}
}

// cloneRaw copies data so callers cannot alter cached or shared bytes.
func cloneRaw(data json.RawMessage) json.RawMessage {
	if data == nil {
		return nil
	}
	return append(json.RawMessage(nil), data...)
}

// annotateFailure records the request context on a failed envelope.
func (c *Client) annotateFailure(resp RawResponse, requestID, method, endpoint string, start time.Time) RawResponse {
	detail := failureDetail{}
	if resp.detail != nil {
		detail = *resp.detail
	}
	detail.RequestID = requestID
	detail.Method = method
	detail.Endpoint = endpoint
	detail.At = c.now().UTC()
	detail.Duration = detail.At.Sub(start)
	resp.detail = &detail
	return resp
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(timestampLayout)
}

// resolveURL joins endpoint onto the base URL; absolute URLs pass through.
func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// isSessionEndpoint reports whether a 401 from endpoint means bad
// credentials rather than an expired session.
func (c *Client) isSessionEndpoint(endpoint string) bool {
	path := pathOf(endpoint)
	for _, p := range []string{c.loginPath, c.refreshPath, c.logoutPath} {
		if p != "" && path == pathOf(p) {
			return true
		}
	}
	return false
}

func pathOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		return u.Path
	}
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// endpointLabel keeps metric and span labels free of query strings.
func endpointLabel(endpoint string) string {
	if p := pathOf(endpoint); p != "" {
		return p
	}
	return "unknown"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) RawResponse {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet})
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, endpoint string, body Body) RawResponse {
	return c.Request(ctx, endpoint, body.options(http.MethodPost))
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, endpoint string, body Body) RawResponse {
	return c.Request(ctx, endpoint, body.options(http.MethodPut))
}

// Patch issues a PATCH request with body.
func (c *Client) Patch(ctx context.Context, endpoint string, body Body) RawResponse {
	return c.Request(ctx, endpoint, body.options(http.MethodPatch))
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) RawResponse {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodDelete})
}

// Do performs the request and decodes the normalized data into T.
func Do[T any](ctx context.Context, c *Client, endpoint string, opts RequestOptions) Response[T] {
	return Decode[T](c.Request(ctx, endpoint, opts))
}

// Decode converts a raw envelope into a typed one. Data that does not fit T
// turns the envelope into a parse failure.
func Decode[T any](raw RawResponse) Response[T] {
	out := Response[T]{
		Success:    raw.Success,
		Error:      raw.Error,
		Message:    raw.Message,
		Timestamp:  raw.Timestamp,
		Kind:       raw.Kind,
		StatusCode: raw.StatusCode,
		detail:     raw.detail,
	}
	if !raw.Success || len(raw.Data) == 0 || bytes.Equal(bytes.TrimSpace(raw.Data), []byte("null")) {
		return out
	}
	if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
		return Response[T]{
			Success:    false,
			Error:      MsgParse,
			Message:    raw.Message,
			Timestamp:  raw.Timestamp,
			Kind:       ErrorKindParse,
			StatusCode: raw.StatusCode,
			detail:     &failureDetail{Cause: err},
		}
	}
	return out
}

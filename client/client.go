package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp/internal/clock"
	"pkt.systems/zotmcp/internal/correlation"
	"pkt.systems/zotmcp/internal/jsonutil"
	"pkt.systems/zotmcp/internal/svcfields"
	"pkt.systems/zotmcp/internal/version"
)

// DefaultUploadMaxBytes caps attachment and download sizes when Config
// leaves UploadMaxBytes unset.
const DefaultUploadMaxBytes = int64(50 << 20)

const (
	defaultBaseURL           = "https://api.zotero.org"
	defaultHTTPTimeout       = 30 * time.Second
	defaultUploadHTTPTimeout = 60 * time.Second
	defaultMaxAttempts       = 3
	defaultBaseDelay         = 500 * time.Millisecond
	defaultMaxDelay          = 4 * time.Second
	defaultCacheTTL          = 30 * time.Second
	defaultCacheMaxEntries   = 128
	defaultBodyCaptureBytes  = int64(2048)

	apiVersion       = "3"
	headerAPIKey     = "Zotero-API-Key"
	headerAPIVersion = "Zotero-API-Version"
)

// Config controls construction of a Client. The zero value is usable for
// offline tests; network calls additionally need APIKey and UserID.
type Config struct {
	// APIKey authenticates every Zotero Web API call.
	APIKey string
	// UserID selects the user library operations target.
	UserID string
	// BaseURL overrides the API origin. Defaults to the public Zotero API.
	BaseURL string
	// HTTPTimeout bounds each individual outbound attempt.
	HTTPTimeout time.Duration
	// UploadHTTPTimeout bounds binary transfers and remote file fetches.
	UploadHTTPTimeout time.Duration
	// MaxAttempts caps total outbound attempts per logical call, the first
	// try included.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between retryable attempts.
	BaseDelay time.Duration
	// MaxDelay caps backoff growth and server retry hints.
	MaxDelay time.Duration
	// DisableReadCache switches the idempotent-read cache off entirely.
	DisableReadCache bool
	// CacheTTL bounds read-cache freshness.
	CacheTTL time.Duration
	// CacheMaxEntries bounds the read cache; the oldest-inserted entry is
	// evicted when full.
	CacheMaxEntries int
	// UploadMaxBytes caps attachment payloads, remote fetches included.
	UploadMaxBytes int64
	// UserAgent overrides the User-Agent header sent upstream.
	UserAgent string
	// Logger receives structured client diagnostics. Nil means silent.
	Logger pslog.Logger
	// Clock drives cache expiry and retry waits. Defaults to the system
	// clock; tests inject a manual one.
	Clock clock.Clock
	// HTTPClient overrides the transport stack. Defaults to a client with an
	// OpenTelemetry-instrumented transport.
	HTTPClient *http.Client
	// Metrics receives Prometheus instrumentation when set.
	Metrics *Metrics
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.UploadHTTPTimeout <= 0 {
		cfg.UploadHTTPTimeout = defaultUploadHTTPTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheMaxEntries < 1 {
		cfg.CacheMaxEntries = defaultCacheMaxEntries
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = DefaultUploadMaxBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = "zotmcp/" + version.Current()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
}

// Client is a resilient Zotero Web API v3 client: bounded retries with
// exponential backoff, an optional read cache for idempotent calls, and
// normalized errors. Safe for concurrent use.
type Client struct {
	apiKey         string
	userID         string
	baseURL        string
	httpClient     *http.Client
	httpTimeout    time.Duration
	uploadTimeout  time.Duration
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	uploadMaxBytes int64
	userAgent      string
	cache          *readCache
	clk            clock.Clock
	logger         pslog.Logger
	metrics        *Metrics
}

// New constructs a Client from cfg. Missing credentials do not fail
// construction; they surface as AUTH_ERROR on the first operation so a
// misconfigured bridge still starts and reports the problem per call.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("zotmcp: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("zotmcp: base url must be http or https, got %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	var cache *readCache
	if !cfg.DisableReadCache {
		cache = newReadCache(cfg.CacheTTL, cfg.CacheMaxEntries, cfg.Clock)
	}
	return &Client{
		apiKey:         strings.TrimSpace(cfg.APIKey),
		userID:         strings.TrimSpace(cfg.UserID),
		baseURL:        base,
		httpClient:     httpClient,
		httpTimeout:    cfg.HTTPTimeout,
		uploadTimeout:  cfg.UploadHTTPTimeout,
		maxAttempts:    cfg.MaxAttempts,
		baseDelay:      cfg.BaseDelay,
		maxDelay:       cfg.MaxDelay,
		uploadMaxBytes: cfg.UploadMaxBytes,
		userAgent:      cfg.UserAgent,
		cache:          cache,
		clk:            cfg.Clock,
		logger:         svcfields.WithSubsystem(svcfields.Ensure(cfg.Logger), "zotero", "client"),
		metrics:        cfg.Metrics,
	}, nil
}

// MaxUploadBytes returns the configured attachment size ceiling.
func (c *Client) MaxUploadBytes() int64 {
	return c.uploadMaxBytes
}

// checkCredentials guards every operation that talks to the library API.
func (c *Client) checkCredentials() *APIError {
	var missing []string
	if c.apiKey == "" {
		missing = append(missing, "api key")
	}
	if c.userID == "" {
		missing = append(missing, "user id")
	}
	if len(missing) == 0 {
		return nil
	}
	return &APIError{
		Kind:   KindAuthError,
		Detail: "zotero credentials missing: " + strings.Join(missing, ", "),
	}
}

func (c *Client) userPath(segments ...string) string {
	parts := []string{"/users", url.PathEscape(c.userID)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

func (c *Client) requestContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}

// apiRequest describes one logical API call before the executor runs it.
type apiRequest struct {
	method      string
	path        string
	query       url.Values
	body        any
	contentType string
	cacheable   bool
}

// apiResponse is the executor's successful outcome: status, headers, and the
// full body, possibly replayed from the read cache.
type apiResponse struct {
	status    int
	header    http.Header
	body      []byte
	fromCache bool
}

// do runs one logical call: cache fast path, then up to maxAttempts outbound
// attempts with backoff between retryable failures. The returned error is a
// *APIError except when the caller's context ended, which surfaces as the
// context's own error.
func (c *Client) do(ctx context.Context, req apiRequest) (*apiResponse, error) {
	ctx, cid := correlation.Ensure(ctx)
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	cacheable := req.cacheable && req.method == http.MethodGet && req.body == nil
	cacheKey := req.method + ":" + target
	if cacheable && c.cache != nil {
		if cached, ok := c.cache.get(cacheKey); ok {
			c.metrics.observeCache(true)
			c.logDebugCtx(ctx, "cache.hit", "method", req.method, "path", req.path)
			return &apiResponse{status: cached.status, header: cached.header, body: cached.body, fromCache: true}, nil
		}
		c.metrics.observeCache(false)
		c.logDebugCtx(ctx, "cache.miss", "method", req.method, "path", req.path)
	}

	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, &APIError{Kind: KindValidationError, Detail: "encode request body: " + err.Error(), CorrelationID: cid}
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		c.logDebugCtx(ctx, "http.request", "method", req.method, "path", req.path, "attempt", attempt+1)
		start := c.clk.Now()
		resp, rtErr := c.roundTrip(ctx, req.method, target, payload, req.contentType)
		duration := c.clk.Now().Sub(start)

		var apiErr *APIError
		switch {
		case rtErr != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.metrics.observeRequest(req.method, 0, true)
			apiErr = &APIError{
				Kind:          KindUpstreamUnavailable,
				Detail:        rtErr.Error(),
				CorrelationID: cid,
				cause:         rtErr,
			}
			c.logWarnCtx(ctx, "http.error", "method", req.method, "path", req.path, "attempt", attempt+1, "kind", apiErr.Kind, "error", rtErr)
		case resp.status >= 200 && resp.status < 300:
			c.metrics.observeRequest(req.method, resp.status, false)
			if cacheable && c.cache != nil {
				c.cache.put(req.method, cacheKey, cachedResponse{
					status: resp.status,
					header: resp.header,
					body:   jsonutil.Compact(resp.body, 0),
				})
			} else if req.method != http.MethodGet {
				c.cache.clear()
			}
			c.logDebugCtx(ctx, "http.response", "method", req.method, "path", req.path, "status", resp.status, "attempt", attempt+1, "duration", duration)
			return resp, nil
		default:
			c.metrics.observeRequest(req.method, resp.status, false)
			apiErr = c.classifyResponse(resp, cid)
			c.logWarnCtx(ctx, "http.error", "method", req.method, "path", req.path, "attempt", attempt+1, "status", resp.status, "kind", apiErr.Kind)
		}

		if !apiErr.Kind.Retryable() {
			return nil, apiErr
		}
		if attempt+1 >= c.maxAttempts {
			c.logWarnCtx(ctx, "retry.exhausted", "method", req.method, "path", req.path, "attempts", attempt+1, "kind", apiErr.Kind)
			return nil, apiErr
		}
		delay := retryDelay(attempt, apiErr.RetryAfter, c.baseDelay, c.maxDelay)
		c.metrics.observeRetry(apiErr.Kind)
		c.logInfoCtx(ctx, "retry.attempt", "attempt", attempt+1, "delay", delay, "kind", apiErr.Kind, "method", req.method, "path", req.path)
		if err := c.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// roundTrip performs exactly one outbound HTTP attempt.
func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte, contentType string) (*apiResponse, error) {
	reqCtx, cancel := c.requestContext(ctx, c.httpTimeout)
	defer cancel()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerAPIVersion, apiVersion)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &apiResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: data}, nil
}

func (c *Client) classifyResponse(resp *apiResponse, cid string) *APIError {
	return &APIError{
		Kind:          classifyStatus(resp.status),
		Status:        resp.status,
		RetryAfter:    parseRetryAfter(resp.header.Get("Retry-After"), c.clk.Now()),
		RequestID:     requestIDFromHeader(resp.header),
		Body:          []byte(jsonutil.CaptureBody(bytes.NewReader(resp.body), defaultBodyCaptureBytes)),
		CorrelationID: cid,
	}
}

// wait blocks on the injected clock so simulated time drives retry delays in
// tests. It returns the context error when the caller's context ends first.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clk.After(d):
		return nil
	}
}

// getJSON runs a GET and decodes the response body into out when non-nil.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, cacheable bool, out any) (*apiResponse, error) {
	resp, err := c.do(ctx, apiRequest{method: http.MethodGet, path: path, query: query, cacheable: cacheable})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := c.decodeBody(ctx, resp, out); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// postJSON runs a POST with a JSON payload and decodes the response body into
// out when non-nil.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) (*apiResponse, error) {
	resp, err := c.do(ctx, apiRequest{method: http.MethodPost, path: path, body: payload})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := c.decodeBody(ctx, resp, out); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// decodeBody unmarshals a successful response. A shape the upstream should
// never produce is reported as an upstream error, not a crash.
func (c *Client) decodeBody(ctx context.Context, resp *apiResponse, out any) error {
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &APIError{
			Kind:          KindUpstreamError,
			Status:        resp.status,
			Detail:        "unexpected response format: " + err.Error(),
			CorrelationID: correlation.From(ctx),
		}
	}
	return nil
}

// totalResultsFromHeader reads the Total-Results response header.
func totalResultsFromHeader(h http.Header) (int, bool) {
	raw := strings.TrimSpace(h.Get("Total-Results"))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// nextStartFromHeader extracts the start offset of the rel="next" page from
// the Link response header, the way the API advertises continuation.
func nextStartFromHeader(h http.Header) (int, bool) {
	link := h.Get("Link")
	if link == "" {
		return 0, false
	}
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		idx := strings.Index(part, "start=")
		if idx < 0 {
			continue
		}
		digits := part[idx+len("start="):]
		end := 0
		for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}
		n, err := strconv.Atoi(digits[:end])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func (c *Client) enrichKeyvals(ctx context.Context, keyvals []any) []any {
	if ctx == nil {
		return keyvals
	}
	cid := correlation.From(ctx)
	if cid == "" || hasKey(keyvals, "cid") {
		return keyvals
	}
	enriched := append([]any(nil), keyvals...)
	return append(enriched, "cid", cid)
}

func hasKey(keyvals []any, key string) bool {
	for i := 0; i+1 < len(keyvals); i += 2 {
		if k, ok := keyvals[i].(string); ok && k == key {
			return true
		}
	}
	return false
}

func (c *Client) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logInfoCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logWarnCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logErrorCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, c.enrichKeyvals(ctx, keyvals)...)
}

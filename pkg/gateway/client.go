// Package gateway is the single outbound path to the payment processor. It
// selects credentials, shapes requests, paces and retries at the transport
// boundary, and translates every failure into a pkg/errors code.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/gatewaysync/pkg/config"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/metrics"
)

// Scope selects which credential authorizes a request.
type Scope int

const (
	ScopeSecret Scope = iota
	ScopePublic
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
	defaultTrackingHeader = "X-Tracking-Id"
	maxResponseBytes      = 1 << 20
)

var (
	errBaseURLRequired   = errors.New("gateway base url is required")
	errSecretKeyRequired = errors.New("gateway secret key is required")
	errPublicKeyRequired = errors.New("gateway public key is required")
	errLoggerRequired    = errors.New("gateway logger is required")
)

// Request describes one call against the gateway REST API.
type Request struct {
	Method string
	Path   string
	Body   any
	Scope  Scope
}

// Response is a successful (2xx) gateway reply.
type Response struct {
	Status     int
	Data       json.RawMessage
	TrackingID string
}

// Doer is the subset of *http.Client the gateway needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the gateway with centralized auth, logging, pacing, retry
// and error mapping.
type Client struct {
	http           Doer
	baseURL        string
	secretKey      string
	publicKey      string
	trackingHeader string
	limiter        *rate.Limiter
	maxRetries     uint64
	retryBackoff   time.Duration
	logger         *logger.Logger
	metrics        *metrics.GatewayMetrics
	now            func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient validates the configuration and builds a Client.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	public := strings.TrimSpace(cfg.PublicKey)
	if public == "" {
		return nil, errPublicKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	header := strings.TrimSpace(cfg.TrackingHeader)
	if header == "" {
		header = defaultTrackingHeader
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http:           &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		secretKey:      secret,
		publicKey:      public,
		trackingHeader: header,
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   backoff,
		logger:         logg,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call executes req, retrying at most maxRetries times when the failure is
// eligible for the request method.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	var (
		resp    *Response
		attempt int
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.IncRetry(resourceLabel(req.Path))
			c.log(ctx, "retry", req, map[string]any{"attempt": attempt})
		}
		r, err := c.do(ctx, req)
		if err != nil {
			if retryable(req.Method, err) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		c.metrics.IncFailure(resourceLabel(req.Path), string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway pacing wait aborted")
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", req, nil)
	started := c.now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(resourceLabel(req.Path), req.Method, 0, c.now().Sub(started))
		c.log(ctx, "error", req, map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, fmt.Sprintf("gateway %s %s failed", req.Method, req.Path))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	c.metrics.ObserveRequest(resourceLabel(req.Path), req.Method, httpResp.StatusCode, c.now().Sub(started))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "reading gateway response")
	}

	trackingID := httpResp.Header.Get(c.trackingHeader)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		gerr := mapError(httpResp.StatusCode, body, trackingID)
		c.logFailure(ctx, req, gerr)
		return nil, gerr
	}

	c.log(ctx, "response", req, map[string]any{"status": httpResp.StatusCode, "tracking_id": trackingID})
	return &Response{
		Status:     httpResp.StatusCode,
		Data:       json.RawMessage(body),
		TrackingID: trackingID,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	var payload io.Reader
	if hasBody(req.Method) && req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
		}
		payload = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.keyFor(req.Scope))
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) keyFor(scope Scope) string {
	if scope == ScopePublic {
		return c.publicKey
	}
	return c.secretKey
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		return true
	default:
		return false
	}
}

// retryable reports whether err may be retried for method. Rate limiting is
// rejected before any processing so every method qualifies; outages only
// qualify for idempotent reads and deletes.
func retryable(method string, err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeRateLimited:
		return true
	case pkgerrors.CodeGatewayUnavailable:
		return method == http.MethodGet || method == http.MethodDelete
	default:
		return false
	}
}

func (c *Client) logFailure(ctx context.Context, req Request, err *pkgerrors.Error) {
	fields := map[string]any{
		"code":        string(err.Code()),
		"tracking_id": err.TrackingID(),
		"error":       err.Error(),
	}
	if err.Code() == pkgerrors.CodeAuthMisconfigured {
		c.metrics.IncAuthAlert()
		fields["alert"] = true
	}
	c.log(ctx, "error", req, fields)
}

func (c *Client) log(ctx context.Context, phase string, req Request, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithGatewayCall(ctx, req.Method, req.Path)
	logFields := map[string]any{"phase": phase}
	for k, v := range fields {
		if k == "tracking_id" {
			ctx = c.logger.WithTrackingID(ctx, fmt.Sprint(v))
			continue
		}
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	op := fmt.Sprintf("gateway %s %s", req.Method, resourceLabel(req.Path))
	switch phase {
	case "error":
		c.logger.Error(ctx, op, errors.New(fmt.Sprint(fields["error"])))
	case "retry":
		c.logger.Warn(ctx, op+" retry")
	default:
		c.logger.Debug(ctx, fmt.Sprintf("%s %s", op, phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card_number", "token", "cvv", "secret", "email", "phone", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// resourceLabel reduces a path to its resource collection for metrics and logs.
func resourceLabel(path string) string {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" || part == "recurrent" {
			continue
		}
		return part
	}
	return "unknown"
}

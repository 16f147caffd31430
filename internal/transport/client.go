// Package transport performs provider HTTP requests for the routing adapters: it builds
// the GET or POST request, runs it through the resilient client, maps failures onto
// routing errors and supports dry runs and skip-on-error mode.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
)

const instrumentationName = "github.com/breatheroute/routekit/internal/transport"

const (
	// DefaultTimeout is the default per-attempt request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRetryTimeout bounds the total time spent retrying one request.
	DefaultRetryTimeout = 60 * time.Second

	// DefaultUserAgent identifies the library to providers.
	DefaultUserAgent = "routekit/1.0"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorMapper turns a non-2xx provider response into an error. Returning nil falls
// back to the default mapping.
type ErrorMapper func(statusCode int, body []byte) error

// Config holds configuration for a provider transport.
type Config struct {
	// Provider names the routing provider for errors, logs and telemetry (required).
	Provider string

	// BaseURL is prepended to every request path (required).
	BaseURL string

	// UserAgent is sent with every request. Defaults to DefaultUserAgent.
	UserAgent string

	// Headers are added to every request, e.g. API key headers.
	Headers map[string]string

	// Timeout is the per-attempt timeout (optional, defaults to 60s).
	Timeout time.Duration

	// RetryTimeout bounds the total retry time of one request (optional, defaults to 60s).
	RetryTimeout time.Duration

	// RetryOverQueryLimit retries HTTP 429 responses until RetryTimeout.
	RetryOverQueryLimit bool

	// SkipAPIError turns 4xx provider rejections into empty responses instead of errors.
	SkipAPIError bool

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client built from the settings above.
	HTTPClient HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// ErrorMapper maps provider specific error bodies (optional).
	ErrorMapper ErrorMapper

	// DryRunOutput receives the request description of dry runs. Defaults to stdout.
	DryRunOutput io.Writer

	// Logger for transport operations.
	Logger zerolog.Logger
}

// Request describes one provider call.
type Request struct {
	// Path is appended to the base URL.
	Path string
	// Query holds query string parameters.
	Query convert.Params
	// Body, when non-nil, is sent as a JSON POST body. Otherwise the request is a GET.
	Body convert.Params
	// DryRun describes the request instead of sending it.
	DryRun bool
}

// Method returns the HTTP method used for r.
func (r Request) Method() string {
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// Client sends provider requests.
type Client struct {
	provider     string
	baseURL      string
	userAgent    string
	headers      map[string]string
	skipAPIError bool
	httpClient   HTTPDoer
	registry     *resilience.Registry
	errorMapper  ErrorMapper
	dryRunOutput io.Writer
	logger       zerolog.Logger

	tracer          trace.Tracer
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// New creates a transport client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retryTimeout := cfg.RetryTimeout
	if retryTimeout == 0 {
		retryTimeout = DefaultRetryTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	dryRunOutput := cfg.DryRunOutput
	if dryRunOutput == nil {
		dryRunOutput = os.Stdout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(cfg.Provider)
		clientCfg.Timeout = timeout
		clientCfg.MaxElapsedTime = retryTimeout
		clientCfg.RetryOverQueryLimit = cfg.RetryOverQueryLimit
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		if cfg.RetryOverQueryLimit {
			// Bounded by RetryTimeout rather than an attempt count.
			clientCfg.MaxRetries = 50
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	c := &Client{
		provider:     cfg.Provider,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    userAgent,
		headers:      cfg.Headers,
		skipAPIError: cfg.SkipAPIError,
		httpClient:   httpClient,
		registry:     cfg.Registry,
		errorMapper:  cfg.ErrorMapper,
		dryRunOutput: dryRunOutput,
		logger:       cfg.Logger.With().Str("provider", cfg.Provider).Logger(),
		tracer:       otel.Tracer(instrumentationName),
	}
	c.initMetrics()
	return c
}

func (c *Client) initMetrics() {
	meter := otel.Meter(instrumentationName)

	requestTotal, err := meter.Int64Counter(
		"routing.provider.request.total",
		metric.WithDescription("Total number of routing provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to create request counter")
	}
	requestDuration, err := meter.Float64Histogram(
		"routing.provider.request.duration",
		metric.WithDescription("Duration of routing provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to create request duration histogram")
	}
	c.requestTotal = requestTotal
	c.requestDuration = requestDuration
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Do sends req and returns the raw response body.
//
// A dry run writes the request description to the dry-run output and returns a nil
// body. In skip-on-error mode a 4xx rejection (other than 429) is logged and also
// yields a nil body, which the adapters parse into empty results.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method()
	u, err := c.url(req)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		return nil, c.dryRun(method, u, req)
	}

	ctx, span := c.tracer.Start(ctx, c.provider+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("routing.provider", c.provider),
			attribute.String("http.request.method", method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	body, status, err := c.send(ctx, method, u, req.Body)
	c.record(ctx, req.Path, status, start)
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordFailure(err)

		if c.skipAPIError && routing.IsAPIError(err) {
			c.logger.Warn().Err(err).
				Str("path", req.Path).
				Int("status", status).
				Msg("skipping provider API error")
			return nil, nil
		}
		return nil, err
	}

	c.recordSuccess()
	c.logger.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", status).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("provider request completed")
	return body, nil
}

func (c *Client) url(req Request) (string, error) {
	u := c.baseURL + req.Path
	if len(req.Query) == 0 {
		return u, nil
	}
	q, err := req.Query.Query()
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	return u + "?" + q.Encode(), nil
}

func (c *Client) send(ctx context.Context, method, u string, params convert.Params) ([]byte, int, error) {
	var body io.Reader = http.NoBody
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json, application/geo+json, */*")
	if params != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &routing.Error{
			Provider: c.provider,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, c.mapError(resp.StatusCode, respBody)
	}
	return respBody, resp.StatusCode, nil
}

// mapError maps provider error responses to domain errors.
func (c *Client) mapError(statusCode int, body []byte) error {
	if c.errorMapper != nil {
		if err := c.errorMapper(statusCode, body); err != nil {
			return err
		}
	}

	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider:   c.provider,
			Code:       "RATE_LIMIT",
			Message:    "API rate limit exceeded, please try again later",
			StatusCode: statusCode,
			Err:        routing.ErrRateLimitExceeded,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider:   c.provider,
			Code:       fmt.Sprintf("SERVER_%d", statusCode),
			Message:    "routing provider is temporarily unavailable",
			StatusCode: statusCode,
			Err:        routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider:   c.provider,
			Code:       fmt.Sprintf("HTTP_%d", statusCode),
			Message:    message,
			StatusCode: statusCode,
			Err:        routing.ErrAPIRejected,
		}
	}
}

func (c *Client) dryRun(method, u string, req Request) error {
	params := req.Body
	if params == nil {
		params = req.Query
	}
	pretty, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dry run parameters: %w", err)
	}

	decoded, _ := url.QueryUnescape(u)
	c.logger.Info().Str("method", method).Str("url", decoded).Msg("dry run, request not sent")
	_, err = fmt.Fprintf(c.dryRunOutput, "url:\n%s\n\nmethod:\n%s\n\nparameters:\n%s\n", decoded, method, pretty)
	return err
}

func (c *Client) record(ctx context.Context, path string, status int, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("routing.provider", c.provider),
		attribute.String("url.path", path),
		attribute.Int("http.response.status_code", status),
	)
	if c.requestTotal != nil {
		c.requestTotal.Add(ctx, 1, attrs)
	}
	if c.requestDuration != nil {
		c.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.provider)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.provider, err)
	}
}

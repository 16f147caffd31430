// Package openrouteservice provides a client for the OpenRouteService v2 directions,
// isochrones and matrix APIs.
package openrouteservice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultProfile is used when a request names no profile.
	DefaultProfile = "driving-car"

	// wireUnits makes every distance come back in metres.
	wireUnits = "m"
)

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key, sent in the Authorization header. Self-hosted
	// instances usually need none.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// UserAgent overrides the default user agent.
	UserAgent string

	// Timeout is the per-attempt request timeout (optional).
	Timeout time.Duration

	// RetryTimeout bounds the total retry time of one request (optional).
	RetryTimeout time.Duration

	// RetryOverQueryLimit retries HTTP 429 responses until RetryTimeout.
	RetryOverQueryLimit bool

	// SkipAPIError returns empty results instead of errors when ORS rejects a request.
	SkipAPIError bool

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient transport.HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// DryRunOutput receives dry-run request descriptions (optional).
	DryRunOutput io.Writer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	transport *transport.Client
	logger    zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"Authorization": cfg.APIKey}
	}

	return &Client{
		transport: transport.New(transport.Config{
			Provider:            ProviderName,
			BaseURL:             baseURL,
			UserAgent:           cfg.UserAgent,
			Headers:             headers,
			Timeout:             cfg.Timeout,
			RetryTimeout:        cfg.RetryTimeout,
			RetryOverQueryLimit: cfg.RetryOverQueryLimit,
			SkipAPIError:        cfg.SkipAPIError,
			HTTPClient:          cfg.HTTPClient,
			Registry:            cfg.Registry,
			ErrorMapper:         mapError,
			DryRunOutput:        cfg.DryRunOutput,
			Logger:              cfg.Logger,
		}),
		logger: cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

func profilePath(endpoint, profile string) string {
	if profile == "" {
		profile = DefaultProfile
	}
	return "/v2/" + endpoint + "/" + url.PathEscape(profile)
}

func lonLats(coords []routing.Coordinate) [][]float64 {
	out := make([][]float64, len(coords))
	for i, c := range coords {
		out[i] = c.LonLat()
	}
	return out
}

// withUnits merges extra into params and then pins the units so parsers can rely on
// metres.
func withUnits(params, extra convert.Params) convert.Params {
	return convert.DeepMerge(convert.DeepMerge(params, extra), convert.Params{"units": wireUnits})
}

// mapError maps ORS error bodies to domain errors. Rate limits, server errors and
// bodies that are not ORS errors fall back to the transport defaults.
func mapError(statusCode int, body []byte) error {
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return nil
	}

	var e apiError
	_ = json.Unmarshal(body, &e)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider:   ProviderName,
			Code:       "FORBIDDEN",
			Message:    "API access denied - check API key configuration",
			StatusCode: statusCode,
			Err:        routing.ErrAPIRejected,
		}
	case statusCode == http.StatusNotFound,
		e.Error.Code == errCodeRouteNotFound,
		e.Error.Code == errCodePointNotFound:
		message := e.Error.Message
		if message == "" {
			message = "no route found between the given points"
		}
		return &routing.Error{
			Provider:   ProviderName,
			Code:       "NO_ROUTE",
			Message:    message,
			StatusCode: statusCode,
			Err:        routing.ErrNoRouteFound,
		}
	case e.Error.Code != 0:
		return &routing.Error{
			Provider:   ProviderName,
			Code:       fmt.Sprintf("ORS_%d", e.Error.Code),
			Message:    e.Error.Message,
			StatusCode: statusCode,
			Err:        routing.ErrAPIRejected,
		}
	default:
		return nil
	}
}

// Package valhalla is the routing adapter for the Valhalla routing engine. It builds
// Valhalla's JSON request bodies and parses its responses into routing result types.
//
// Valhalla takes {lon, lat} location objects, expresses distances in kilometres and
// isochrone times in minutes; everything returned by this package is in metres and
// seconds.
package valhalla

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "valhalla"

	// DefaultBaseURL is the public FOSSGIS Valhalla instance.
	DefaultBaseURL = "https://valhalla1.openstreetmap.de"

	// wireUnits is forced on every request that returns distances.
	wireUnits = "kilometers"

	// shapePrecision is the precision of Valhalla encoded shapes.
	shapePrecision = 6
)

// Valhalla error codes meaning no route exists.
const (
	errCodeUnconnectedRegions = 170
	errCodeNoPath             = 442
	errCodeNoExactMatch       = 443
)

// ClientConfig holds configuration for the Valhalla client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// Headers are sent with every request, e.g. an API key for hosted instances.
	Headers map[string]string

	// UserAgent overrides the default user agent.
	UserAgent string

	// Timeout is the per-attempt request timeout (optional).
	Timeout time.Duration

	// RetryTimeout bounds the total retry time of one request (optional).
	RetryTimeout time.Duration

	// RetryOverQueryLimit retries HTTP 429 responses until RetryTimeout.
	RetryOverQueryLimit bool

	// SkipAPIError returns empty results instead of errors when Valhalla rejects a
	// request, e.g. when no route exists.
	SkipAPIError bool

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient transport.HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// DryRunOutput receives dry-run request descriptions (optional, defaults to stdout).
	DryRunOutput io.Writer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Valhalla API client.
type Client struct {
	transport *transport.Client
	logger    zerolog.Logger
}

// NewClient creates a new Valhalla client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		transport: transport.New(transport.Config{
			Provider:            ProviderName,
			BaseURL:             baseURL,
			UserAgent:           cfg.UserAgent,
			Headers:             cfg.Headers,
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

// Waypoint is a location with Valhalla location options such as type, heading,
// radius or minimum_reachability.
type Waypoint struct {
	Position routing.Coordinate
	Options  convert.Params
}

// Waypoints wraps plain coordinates as waypoints without options.
func Waypoints(coords ...routing.Coordinate) []Waypoint {
	wps := make([]Waypoint, len(coords))
	for i, c := range coords {
		wps[i] = Waypoint{Position: c}
	}
	return wps
}

func (w Waypoint) params() convert.Params {
	p := convert.Params{"lon": w.Position.Lon, "lat": w.Position.Lat}
	for k, v := range w.Options {
		p[k] = v
	}
	return p
}

// buildLocations renders waypoints as Valhalla location objects.
func buildLocations(wps []Waypoint) []convert.Params {
	locations := make([]convert.Params, len(wps))
	for i, w := range wps {
		locations[i] = w.params()
	}
	return locations
}

func validateWaypoints(op, field string, wps []Waypoint, minCount int) error {
	if len(wps) < minCount {
		return routing.NewArgumentError(op, field, "need at least %d locations, got %d", minCount, len(wps))
	}
	for i, w := range wps {
		if err := routing.ValidateCoordinate(op, fmt.Sprintf("%s[%d]", field, i), w.Position); err != nil {
			return err
		}
	}
	return nil
}

// costingKey returns the costing_options key for a profile. Multimodal requests are
// configured through the transit costing.
func costingKey(profile string) string {
	if profile == "multimodal" {
		return "transit"
	}
	return profile
}

// costingOptions builds the costing_options object, or nil when there is nothing to set.
func costingOptions(profile, preference string, options convert.Params) convert.Params {
	if options == nil && preference == "" {
		return nil
	}

	o := options.Clone()
	if o == nil {
		o = convert.Params{}
	}
	if preference == "shortest" {
		o["shortest"] = true
	}
	return convert.Params{costingKey(profile): o}
}

// DateTime sets the departure or arrival time of a request.
type DateTime struct {
	// Type is 0 for current departure, 1 for departure at Value, 2 for arrival by
	// Value, 3 for invariant.
	Type int `json:"type"`
	// Value is local time as YYYY-MM-DDThh:mm.
	Value string `json:"value,omitempty"`
}

func (d *DateTime) params() convert.Params {
	p := convert.Params{"type": d.Type}
	if d.Value != "" {
		p["value"] = d.Value
	}
	return p
}

// apiError is the error body Valhalla returns with 4xx and 5xx responses.
type apiError struct {
	ErrorCode  int    `json:"error_code"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
}

// mapError maps Valhalla error bodies to domain errors.
func mapError(statusCode int, body []byte) error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.ErrorCode == 0 {
		return nil
	}
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return nil
	}

	code := fmt.Sprintf("VALHALLA_%d", e.ErrorCode)
	switch e.ErrorCode {
	case errCodeUnconnectedRegions, errCodeNoPath, errCodeNoExactMatch:
		return &routing.Error{
			Provider:   ProviderName,
			Code:       code,
			Message:    e.Error,
			StatusCode: statusCode,
			Err:        routing.ErrNoRouteFound,
		}
	default:
		return &routing.Error{
			Provider:   ProviderName,
			Code:       code,
			Message:    e.Error,
			StatusCode: statusCode,
			Err:        routing.ErrAPIRejected,
		}
	}
}

// Package ign is the routing adapter for the IGN Géoplateforme navigation service
// (itineraire and isochrone operations). Requests are GET query strings with
// "lon,lat" points; results are requested in metres and seconds.
//
// IGN computes one contour per isochrone call and has no matrix operation.
package ign

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
	"github.com/breatheroute/routekit/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "ign"

	// DefaultBaseURL is the Géoplateforme navigation endpoint.
	DefaultBaseURL = "https://data.geopf.fr/navigation"

	// DefaultDirectionsResource is the graph used for directions.
	DefaultDirectionsResource = "bdtopo-osrm"

	// DefaultIsochroneResource is the graph used for isochrones; bdtopo-osrm has none.
	DefaultIsochroneResource = "bdtopo-valhalla"

	// DefaultProfile is the IGN car profile.
	DefaultProfile = "car"
)

// Geometry formats.
const (
	GeometryGeoJSON  = "geojson"
	GeometryPolyline = "polyline"
)

// ClientConfig holds configuration for the IGN client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// UserAgent overrides the default user agent.
	UserAgent string

	// Timeout is the per-attempt request timeout (optional).
	Timeout time.Duration

	// RetryTimeout bounds the total retry time of one request (optional).
	RetryTimeout time.Duration

	// RetryOverQueryLimit retries HTTP 429 responses until RetryTimeout.
	RetryOverQueryLimit bool

	// SkipAPIError returns empty results instead of errors when IGN rejects a request.
	SkipAPIError bool

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient transport.HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// DryRunOutput receives dry-run request descriptions (optional).
	DryRunOutput io.Writer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an IGN Géoplateforme client.
type Client struct {
	transport *transport.Client
	logger    zerolog.Logger
}

// NewClient creates a new IGN client.
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
			Timeout:             cfg.Timeout,
			RetryTimeout:        cfg.RetryTimeout,
			RetryOverQueryLimit: cfg.RetryOverQueryLimit,
			SkipAPIError:        cfg.SkipAPIError,
			HTTPClient:          cfg.HTTPClient,
			Registry:            cfg.Registry,
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

func formatPoint(c routing.Coordinate) string {
	return convert.FormatCoordinate(c.Lon, c.Lat)
}

// parsePoint parses a "lon,lat" string.
func parsePoint(s string) (routing.Coordinate, error) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return routing.Coordinate{}, fmt.Errorf("point %q is not \"lon,lat\"", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return routing.Coordinate{}, fmt.Errorf("point %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return routing.Coordinate{}, fmt.Errorf("point %q: %w", s, err)
	}
	return routing.Coordinate{Lat: lat, Lon: lon}, nil
}

// encodeConstraints renders constraints as the query string value IGN expects: a
// string is sent as is, anything else is JSON encoded.
func encodeConstraints(op string, constraints any) (string, error) {
	if s, ok := constraints.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(constraints)
	if err != nil {
		return "", routing.NewArgumentError(op, "constraints", "cannot encode as JSON: %v", err)
	}
	return string(b), nil
}

// decodeGeometry reads a GeoJSON geometry or, for the polyline format, a precision 5
// polyline string. A LineString yields one ring, a Polygon all of its rings.
func decodeGeometry(raw json.RawMessage, format string) ([][]routing.Coordinate, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if format == GeometryPolyline {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("polyline geometry: %w", err)
		}
		points, err := polyline.Decode5(encoded)
		if err != nil {
			return nil, err
		}
		line, _ := routing.CoordinatesFromPoints(points)
		return [][]routing.Coordinate{line}, nil
	}

	var g geoJSONGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("geojson geometry: %w", err)
	}
	switch g.Type {
	case "Polygon":
		var rings [][]routing.Coordinate
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon: %w", err)
		}
		return rings, nil
	case "LineString":
		var line []routing.Coordinate
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return nil, fmt.Errorf("line: %w", err)
		}
		return [][]routing.Coordinate{line}, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func roundInt(f *float64) int {
	if f == nil {
		return 0
	}
	return int(math.Round(*f))
}

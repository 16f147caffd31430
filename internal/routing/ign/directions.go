package ign

import (
	"context"
	"fmt"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// DirectionsRequest is an itineraire request.
type DirectionsRequest struct {
	// Locations are start, intermediates and end, in visiting order.
	Locations []routing.Coordinate
	// Profile is car or pedestrian; defaults to car.
	Profile string
	// Resource is the routing graph; defaults to bdtopo-osrm.
	Resource string
	// Optimization is fastest or shortest.
	Optimization string
	// GeometryFormat is geojson or polyline.
	GeometryFormat string
	// Constraints are sent as is when a string, JSON encoded otherwise.
	Constraints any
	GetSteps    *bool
	GetBbox     *bool
	// CRS of the returned geometry, e.g. EPSG:4326.
	CRS            string
	WaysAttributes []string
	Extra          convert.Params
	DryRun         bool
}

// DirectionsParams builds the itineraire query parameters.
func DirectionsParams(req DirectionsRequest) (convert.Params, error) {
	const op = "ign.directions"
	if err := routing.ValidateLocations(op, req.Locations, 2); err != nil {
		return nil, err
	}

	last := len(req.Locations) - 1
	params := convert.Params{
		"start": formatPoint(req.Locations[0]),
		"end":   formatPoint(req.Locations[last]),
	}
	if last > 1 {
		intermediates := make([]string, 0, last-1)
		for _, c := range req.Locations[1:last] {
			intermediates = append(intermediates, formatPoint(c))
		}
		params["intermediates"] = convert.DelimitList(intermediates, convert.DelimitPipe)
	}

	params["resource"] = req.Resource
	if req.Resource == "" {
		params["resource"] = DefaultDirectionsResource
	}
	params["profile"] = req.Profile
	if req.Profile == "" {
		params["profile"] = DefaultProfile
	}

	params.SetIf(req.Optimization != "", "optimization", req.Optimization)
	params.SetIf(req.GeometryFormat != "", "geometryFormat", req.GeometryFormat)
	if req.Constraints != nil {
		s, err := encodeConstraints(op, req.Constraints)
		if err != nil {
			return nil, err
		}
		params["constraints"] = s
	}
	if req.GetSteps != nil {
		params["getSteps"] = convert.ConvertBool(*req.GetSteps)
	}
	if req.GetBbox != nil {
		params["getBbox"] = convert.ConvertBool(*req.GetBbox)
	}
	params["distanceUnit"] = "meter"
	params["timeUnit"] = "second"
	params.SetIf(req.CRS != "", "crs", req.CRS)
	params.SetIf(len(req.WaysAttributes) > 0, "waysAttributes", convert.DelimitList(req.WaysAttributes, convert.DelimitComma))

	return convert.DeepMerge(params, req.Extra), nil
}

// GetDirections requests a route through the locations.
func (c *Client) GetDirections(ctx context.Context, req DirectionsRequest) (*routing.Directions, error) {
	params, err := DirectionsParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", fmt.Sprint(params["profile"])).
		Str("resource", fmt.Sprint(params["resource"])).
		Int("location_count", len(req.Locations)).
		Msg("requesting directions from IGN")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/itineraire", Query: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseDirections(body, req.GeometryFormat)
}

// Directions implements routing.DirectionsRouter. IGN has no alternatives; the query's
// Alternatives is ignored.
func (c *Client) Directions(ctx context.Context, q routing.DirectionsQuery) (*routing.Directions, error) {
	return c.GetDirections(ctx, DirectionsRequest{
		Locations: q.Locations,
		Profile:   q.Profile,
		Extra:     q.Extra,
		DryRun:    q.DryRun,
	})
}

// ParseDirections parses an itineraire response into a single route.
func ParseDirections(body []byte, geometryFormat string) (*routing.Directions, error) {
	var resp routeResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Directions{}, nil
	}

	rings, err := decodeGeometry(resp.Geometry, geometryFormat)
	if err != nil {
		return nil, fmt.Errorf("ign route geometry: %w", err)
	}

	route := routing.Direction{
		Duration: roundInt(resp.Duration),
		Distance: roundInt(resp.Distance),
		Raw:      body,
	}
	if len(rings) > 0 {
		route.Geometry = rings[0]
	}
	if route.Empty() {
		return &routing.Directions{Raw: body}, nil
	}
	return &routing.Directions{Routes: []routing.Direction{route}, Raw: body}, nil
}

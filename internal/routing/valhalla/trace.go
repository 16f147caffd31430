package valhalla

import (
	"context"
	"fmt"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
	"github.com/breatheroute/routekit/pkg/polyline"
)

// Shape match algorithms.
const (
	ShapeMatchEdgeWalk   = "edge_walk"
	ShapeMatchMapSnap    = "map_snap"
	ShapeMatchWalkOrSnap = "walk_or_snap"
)

// TraceAttributesRequest map-matches a trace and returns attributes of the matched edges.
// Exactly one of Locations and EncodedPolyline must be set.
type TraceAttributesRequest struct {
	Locations []Waypoint
	// EncodedPolyline is a precision 6 encoded trace.
	EncodedPolyline string
	// Profile defaults to bicycle.
	Profile string
	// ShapeMatch defaults to walk_or_snap.
	ShapeMatch string
	// Filters are attribute names such as "edge.id", applied with FiltersAction.
	Filters []string
	// FiltersAction is include or exclude.
	FiltersAction string
	Options       convert.Params
	Extra         convert.Params
	DryRun        bool
}

// TraceAttributesParams builds the /trace_attributes request body.
func TraceAttributesParams(req TraceAttributesRequest) (convert.Params, error) {
	const op = "valhalla.trace_attributes"

	params := convert.Params{}
	switch {
	case len(req.Locations) > 0 && req.EncodedPolyline != "":
		return nil, routing.NewArgumentError(op, "locations", "locations and encoded_polyline are mutually exclusive")
	case len(req.Locations) > 0:
		if err := validateWaypoints(op, "locations", req.Locations, 1); err != nil {
			return nil, err
		}
		params["shape"] = buildLocations(req.Locations)
	case req.EncodedPolyline != "":
		params["encoded_polyline"] = req.EncodedPolyline
	default:
		return nil, routing.NewArgumentError(op, "locations", "either locations or encoded_polyline is required")
	}

	if len(req.Filters) > 0 && req.FiltersAction != "" {
		params["filters"] = convert.Params{"attributes": req.Filters}
		params["action"] = req.FiltersAction
	}

	profile := req.Profile
	if profile == "" {
		profile = "bicycle"
	}
	shapeMatch := req.ShapeMatch
	if shapeMatch == "" {
		shapeMatch = ShapeMatchWalkOrSnap
	}
	params["costing"] = profile
	params["shape_match"] = shapeMatch

	if len(req.Options) > 0 {
		params["costing_options"] = convert.Params{costingKey(profile): req.Options.Clone()}
	}

	return convert.DeepMerge(params, req.Extra), nil
}

// TraceAttributes map-matches a GPS trace.
func (c *Client) TraceAttributes(ctx context.Context, req TraceAttributesRequest) (*routing.MatchedResults, error) {
	params, err := TraceAttributesParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("location_count", len(req.Locations)).
		Bool("encoded", req.EncodedPolyline != "").
		Msg("requesting trace attributes from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/trace_attributes", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseTraceAttributes(body)
}

// ParseTraceAttributes parses a /trace_attributes response. Edges and matched points
// are passed through, the matched shape is decoded.
func ParseTraceAttributes(body []byte) (*routing.MatchedResults, error) {
	var resp traceResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.MatchedResults{}, nil
	}

	points, err := polyline.Decode(resp.Shape, shapePrecision, false)
	if err != nil {
		return nil, fmt.Errorf("decoding matched shape: %w", err)
	}
	geometry, _ := routing.CoordinatesFromPoints(points)

	return &routing.MatchedResults{
		Edges:         resp.Edges,
		MatchedPoints: resp.MatchedPoints,
		Geometry:      geometry,
		Raw:           body,
	}, nil
}

package openrouteservice

import (
	"context"
	"fmt"
	"math"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
	"github.com/breatheroute/routekit/pkg/polyline"
)

// AlternativeRoutes configures alternative route generation. ORS only computes
// alternatives between exactly two locations.
type AlternativeRoutes struct {
	// TargetCount is the total number of routes wanted, the primary included.
	TargetCount  int
	WeightFactor float64
	ShareFactor  float64
}

func (a *AlternativeRoutes) params() convert.Params {
	p := convert.Params{"target_count": a.TargetCount}
	p.SetIf(a.WeightFactor > 0, "weight_factor", a.WeightFactor)
	p.SetIf(a.ShareFactor > 0, "share_factor", a.ShareFactor)
	return p
}

// DirectionsRequest is an ORS directions request.
type DirectionsRequest struct {
	Locations []routing.Coordinate
	// Profile is an ORS profile such as driving-car, cycling-regular or foot-walking.
	Profile string
	// Preference is fastest, shortest or recommended.
	Preference         string
	Language           string
	GeometrySimplify   *bool
	Instructions       *bool
	InstructionsFormat string
	RoundaboutExits    *bool
	Attributes         []string
	// Radiuses are snapping radii in metres, one per location; -1 means unlimited.
	Radiuses []float64
	// Bearings are [bearing, deviation] pairs, one per location.
	Bearings         [][]float64
	ContinueStraight *bool
	// Elevation requests 3D geometry; the parsed routes then carry an elevation profile.
	Elevation    bool
	ExtraInfo    []string
	Options      convert.Params
	Alternatives *AlternativeRoutes
	Extra        convert.Params
	DryRun       bool
}

// DirectionsParams builds the directions request body.
func DirectionsParams(req DirectionsRequest) (convert.Params, error) {
	const op = "openrouteservice.directions"
	if err := routing.ValidateLocations(op, req.Locations, 2); err != nil {
		return nil, err
	}
	if len(req.Radiuses) > 0 && len(req.Radiuses) != len(req.Locations) {
		return nil, routing.NewArgumentError(op, "radiuses", "need one radius per location, got %d for %d", len(req.Radiuses), len(req.Locations))
	}
	if len(req.Bearings) > 0 && len(req.Bearings) != len(req.Locations) {
		return nil, routing.NewArgumentError(op, "bearings", "need one bearing per location, got %d for %d", len(req.Bearings), len(req.Locations))
	}
	if req.Alternatives != nil {
		if req.Alternatives.TargetCount < 1 {
			return nil, routing.NewArgumentError(op, "alternative_routes", "target count must be positive, got %d", req.Alternatives.TargetCount)
		}
		if len(req.Locations) != 2 {
			return nil, routing.NewArgumentError(op, "alternative_routes", "only supported between two locations, got %d", len(req.Locations))
		}
	}

	params := convert.Params{
		"coordinates": lonLats(req.Locations),
		"geometry":    true,
	}
	params.SetIf(req.Preference != "", "preference", req.Preference)
	params.SetIf(req.Language != "", "language", req.Language)
	if req.GeometrySimplify != nil {
		params["geometry_simplify"] = *req.GeometrySimplify
	}
	if req.Instructions != nil {
		params["instructions"] = *req.Instructions
	}
	params.SetIf(req.InstructionsFormat != "", "instructions_format", req.InstructionsFormat)
	if req.RoundaboutExits != nil {
		params["roundabout_exits"] = *req.RoundaboutExits
	}
	params.SetIf(len(req.Attributes) > 0, "attributes", req.Attributes)
	params.SetIf(len(req.Radiuses) > 0, "radiuses", req.Radiuses)
	params.SetIf(len(req.Bearings) > 0, "bearings", req.Bearings)
	if req.ContinueStraight != nil {
		params["continue_straight"] = *req.ContinueStraight
	}
	params.SetIf(req.Elevation, "elevation", true)
	params.SetIf(len(req.ExtraInfo) > 0, "extra_info", req.ExtraInfo)
	params.SetIf(len(req.Options) > 0, "options", req.Options.Clone())
	if req.Alternatives != nil {
		params["alternative_routes"] = req.Alternatives.params()
	}

	return withUnits(params, req.Extra), nil
}

// GetDirections requests a route through the locations.
func (c *Client) GetDirections(ctx context.Context, req DirectionsRequest) (*routing.Directions, error) {
	params, err := DirectionsParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Int("location_count", len(req.Locations)).
		Bool("elevation", req.Elevation).
		Msg("requesting directions from ORS")

	body, err := c.transport.Do(ctx, transport.Request{
		Path:   profilePath("directions", req.Profile) + "/json",
		Body:   params,
		DryRun: req.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return ParseDirections(body, req.Elevation)
}

// Directions implements routing.DirectionsRouter. Alternatives are counted on top of
// the primary route.
func (c *Client) Directions(ctx context.Context, q routing.DirectionsQuery) (*routing.Directions, error) {
	if q.Alternatives < 0 {
		return nil, routing.NewArgumentError("openrouteservice.directions", "alternatives", "must not be negative, got %d", q.Alternatives)
	}

	req := DirectionsRequest{
		Locations: q.Locations,
		Profile:   q.Profile,
		Extra:     q.Extra,
		DryRun:    q.DryRun,
	}
	if q.Alternatives > 0 {
		req.Alternatives = &AlternativeRoutes{TargetCount: q.Alternatives + 1}
	}
	return c.GetDirections(ctx, req)
}

// ParseDirections parses a directions response. elevation must match the request so
// the polyline is decoded with the right dimension.
func ParseDirections(body []byte, elevation bool) (*routing.Directions, error) {
	var resp directionsResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Directions{}, nil
	}

	routes := make([]routing.Direction, 0, len(resp.Routes))
	for i := range resp.Routes {
		r := &resp.Routes[i]
		points, err := polyline.Decode(r.Geometry, polyline.Precision5, elevation)
		if err != nil {
			return nil, fmt.Errorf("ors route %d geometry: %w", i, err)
		}
		geometry, profile := routing.CoordinatesFromPoints(points)
		routes = append(routes, routing.Direction{
			Geometry:  geometry,
			Elevation: profile,
			Duration:  int(math.Round(r.Summary.Duration)),
			Distance:  int(math.Round(r.Summary.Distance)),
			Raw:       body,
		})
	}
	return &routing.Directions{Routes: routes, Raw: body}, nil
}

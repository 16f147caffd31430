package valhalla

import (
	"context"
	"fmt"
	"math"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
	"github.com/breatheroute/routekit/pkg/polyline"
)

// DirectionsRequest is a Valhalla route request.
type DirectionsRequest struct {
	// Locations are visited in order. At least two are required.
	Locations []Waypoint
	// Profile is the Valhalla costing, e.g. auto, bicycle, pedestrian, multimodal.
	Profile string
	// Preference "shortest" optimises for distance instead of time.
	Preference string
	// Options are the costing options of Profile.
	Options convert.Params
	// Instructions requests narrative instructions.
	Instructions bool
	// Language of the narrative, e.g. "en-US".
	Language string
	// DirectionsType is one of none, maneuvers, instructions.
	DirectionsType string
	// AvoidLocations are locations to route around.
	AvoidLocations []Waypoint
	// AvoidPolygons are rings of [lon, lat] points to route around.
	AvoidPolygons [][][]float64
	// DateTime sets departure or arrival time.
	DateTime *DateTime
	// Alternatives is the number of alternate routes wanted.
	Alternatives int
	// ID is echoed back in the response.
	ID string
	// Extra is deep-merged into the request body last.
	Extra convert.Params
	// DryRun describes the request instead of sending it.
	DryRun bool
}

// DirectionsParams builds the /route request body.
func DirectionsParams(req DirectionsRequest) (convert.Params, error) {
	const op = "valhalla.directions"
	if err := validateWaypoints(op, "locations", req.Locations, 2); err != nil {
		return nil, err
	}
	if err := validateWaypoints(op, "avoid_locations", req.AvoidLocations, 0); err != nil {
		return nil, err
	}
	if req.Alternatives < 0 {
		return nil, routing.NewArgumentError(op, "alternatives", "must not be negative, got %d", req.Alternatives)
	}

	params := convert.Params{
		"costing":   req.Profile,
		"narrative": req.Instructions,
		"locations": buildLocations(req.Locations),
	}

	if co := costingOptions(req.Profile, req.Preference, req.Options); co != nil {
		params["costing_options"] = co
	}

	if req.Language != "" || req.DirectionsType != "" {
		do := convert.Params{}
		do.SetIf(req.Language != "", "language", req.Language)
		do.SetIf(req.DirectionsType != "", "directions_type", req.DirectionsType)
		params["directions_options"] = do
	}

	params.SetIf(len(req.AvoidLocations) > 0, "avoid_locations", buildLocations(req.AvoidLocations))
	params.SetIf(len(req.AvoidPolygons) > 0, "avoid_polygons", req.AvoidPolygons)
	if req.DateTime != nil {
		params["date_time"] = req.DateTime.params()
	}
	params.SetIf(req.Alternatives > 0, "alternates", req.Alternatives)
	params.SetIf(req.ID != "", "id", req.ID)

	// Distances are always requested in kilometres and converted back to metres.
	extra := convert.DeepMerge(req.Extra, convert.Params{"units": wireUnits})
	return convert.DeepMerge(params, extra), nil
}

// GetDirections requests a route. With Alternatives set the result holds the primary
// route followed by the alternates Valhalla could find.
func (c *Client) GetDirections(ctx context.Context, req DirectionsRequest) (*routing.Directions, error) {
	params, err := DirectionsParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Int("location_count", len(req.Locations)).
		Int("alternatives", req.Alternatives).
		Msg("requesting directions from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/route", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseDirections(body, req.Alternatives > 0)
}

// Directions implements routing.DirectionsRouter.
func (c *Client) Directions(ctx context.Context, q routing.DirectionsQuery) (*routing.Directions, error) {
	return c.GetDirections(ctx, DirectionsRequest{
		Locations:    Waypoints(q.Locations...),
		Profile:      q.Profile,
		Alternatives: q.Alternatives,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseDirections parses a /route response. Without alternatives only the primary
// route is returned. An absent or unparsable body yields empty Directions.
func ParseDirections(body []byte, alternatives bool) (*routing.Directions, error) {
	var resp routeResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Directions{}, nil
	}

	trips := []trip{resp.Trip}
	if alternatives {
		for _, alt := range resp.Alternates {
			trips = append(trips, alt.Trip)
		}
	}

	routes := make([]routing.Direction, 0, len(trips))
	for i := range trips {
		if len(trips[i].Legs) == 0 {
			continue
		}
		d, err := trips[i].direction(body)
		if err != nil {
			return nil, err
		}
		routes = append(routes, d)
	}

	return &routing.Directions{Routes: routes, Raw: body}, nil
}

// direction sums the trip's legs into one route.
func (t *trip) direction(raw []byte) (routing.Direction, error) {
	var (
		points   [][]float64
		duration float64
		km       float64
	)
	for i, leg := range t.Legs {
		shape, err := polyline.Decode(leg.Shape, shapePrecision, false)
		if err != nil {
			return routing.Direction{}, fmt.Errorf("decoding shape of leg %d: %w", i, err)
		}
		points = append(points, shape...)
		duration += leg.Summary.Time
		km += leg.Summary.Length
	}

	geometry, _ := routing.CoordinatesFromPoints(points)
	return routing.Direction{
		Geometry: geometry,
		Duration: int(math.Round(duration)),
		Distance: kmToMetres(km),
		Raw:      raw,
	}, nil
}

// kmToMetres converts a Valhalla length to whole metres.
func kmToMetres(km float64) int {
	return int(math.Round(km * 1000))
}

// OptimizedDirections requests a route visiting the locations in the cheapest order.
// The first and last locations stay fixed. Alternatives are not supported.
func (c *Client) OptimizedDirections(ctx context.Context, req DirectionsRequest) (*routing.OptimizedDirection, error) {
	req.Alternatives = 0
	params, err := DirectionsParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Int("location_count", len(req.Locations)).
		Msg("requesting optimized route from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/optimized_route", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseOptimizedDirections(body)
}

// ParseOptimizedDirections parses an /optimized_route response. OriginalIndices holds,
// for every location in visiting order, its index in the request.
func ParseOptimizedDirections(body []byte) (*routing.OptimizedDirection, error) {
	var resp routeResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.OptimizedDirection{}, nil
	}

	indices := make([]int, 0, len(resp.Trip.Locations))
	for i, loc := range resp.Trip.Locations {
		if loc.OriginalIndex == nil {
			return nil, fmt.Errorf("optimized route location %d has no original_index", i)
		}
		indices = append(indices, *loc.OriginalIndex)
	}

	d, err := resp.Trip.direction(body)
	if err != nil {
		return nil, err
	}
	return &routing.OptimizedDirection{Direction: d, OriginalIndices: indices}, nil
}

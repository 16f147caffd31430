package ign

import (
	"context"
	"fmt"
	"math"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// Location types of an isochrone.
const (
	LocationDeparture = "departure"
	LocationArrival   = "arrival"
)

// IsochronesRequest is an IGN isochrone request. IGN computes a single contour, so
// only the first interval is sent.
type IsochronesRequest struct {
	Location routing.Coordinate
	// Intervals are seconds, or metres when IntervalType is distance.
	Intervals    []int
	IntervalType routing.IntervalType
	// Profile defaults to car.
	Profile string
	// Resource defaults to bdtopo-valhalla.
	Resource string
	// Direction is departure (reachable points) or arrival (points that reach Location).
	Direction      string
	Constraints    any
	GeometryFormat string
	CRS            string
	Extra          convert.Params
	DryRun         bool
}

func (req *IsochronesRequest) intervalType() routing.IntervalType {
	if req.IntervalType == "" {
		return routing.IntervalTime
	}
	return req.IntervalType
}

// IsochronesParams builds the isochrone query parameters.
func IsochronesParams(req IsochronesRequest) (convert.Params, error) {
	const op = "ign.isochrones"
	if err := routing.ValidateCoordinate(op, "location", req.Location); err != nil {
		return nil, err
	}
	if len(req.Intervals) == 0 {
		return nil, routing.NewArgumentError(op, "intervals", "one interval is required")
	}
	if req.Intervals[0] <= 0 {
		return nil, routing.NewArgumentError(op, "intervals", "must be positive, got %d", req.Intervals[0])
	}
	intervalType := req.intervalType()
	if !intervalType.Valid() {
		return nil, routing.NewArgumentError(op, "interval_type", "must be time or distance, got %q", intervalType)
	}

	params := convert.Params{
		"point":        formatPoint(req.Location),
		"costValue":    req.Intervals[0],
		"costType":     string(intervalType),
		"resource":     req.Resource,
		"profile":      req.Profile,
		"distanceUnit": "meter",
		"timeUnit":     "second",
	}
	if req.Resource == "" {
		params["resource"] = DefaultIsochroneResource
	}
	if req.Profile == "" {
		params["profile"] = DefaultProfile
	}

	params.SetIf(req.Direction != "", "location_type", req.Direction)
	if req.Constraints != nil {
		s, err := encodeConstraints(op, req.Constraints)
		if err != nil {
			return nil, err
		}
		params["constraints"] = s
	}
	params.SetIf(req.GeometryFormat != "", "geometryFormat", req.GeometryFormat)
	params.SetIf(req.CRS != "", "crs", req.CRS)

	return convert.DeepMerge(params, req.Extra), nil
}

// GetIsochrones requests the contour of the first interval.
func (c *Client) GetIsochrones(ctx context.Context, req IsochronesRequest) (*routing.Isochrones, error) {
	params, err := IsochronesParams(req)
	if err != nil {
		return nil, err
	}

	if len(req.Intervals) > 1 {
		c.logger.Warn().
			Ints("intervals", req.Intervals).
			Int("used", req.Intervals[0]).
			Msg("IGN computes one isochrone per request, only the first interval is used")
	}

	body, err := c.transport.Do(ctx, transport.Request{Path: "/isochrone", Query: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseIsochrones(body, req.GeometryFormat)
}

// Isochrones implements routing.IsochronesRouter.
func (c *Client) Isochrones(ctx context.Context, q routing.IsochronesQuery) (*routing.Isochrones, error) {
	return c.GetIsochrones(ctx, IsochronesRequest{
		Location:     q.Location,
		Intervals:    q.Intervals,
		IntervalType: q.IntervalType,
		Profile:      q.Profile,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseIsochrones parses an isochrone response. The center and interval are read back
// from the response.
func ParseIsochrones(body []byte, geometryFormat string) (*routing.Isochrones, error) {
	var resp isochroneResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Isochrones{}, nil
	}

	rings, err := decodeGeometry(resp.Geometry, geometryFormat)
	if err != nil {
		return nil, fmt.Errorf("ign isochrone geometry: %w", err)
	}
	if len(rings) == 0 {
		return &routing.Isochrones{Raw: body}, nil
	}

	center, err := parsePoint(resp.Point)
	if err != nil {
		return nil, fmt.Errorf("ign isochrone center: %w", err)
	}

	return &routing.Isochrones{
		Contours: []routing.Isochrone{{
			Geometry:     rings,
			Interval:     int(math.Round(resp.CostValue)),
			IntervalType: routing.IntervalType(resp.CostType),
			Center:       center,
		}},
		Raw: body,
	}, nil
}

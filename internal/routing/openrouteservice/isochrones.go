package openrouteservice

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// Location types of an isochrone.
const (
	LocationStart       = "start"
	LocationDestination = "destination"
)

// IsochronesRequest is an ORS isochrones request.
type IsochronesRequest struct {
	Location routing.Coordinate
	Profile  string
	// Intervals are seconds, or metres when IntervalType is distance.
	Intervals    []int
	IntervalType routing.IntervalType
	// Interval splits a single range into equal steps.
	Interval     int
	LocationType string
	// Smoothing is between 0 and 100.
	Smoothing  *float64
	Attributes []string
	Options    convert.Params
	Extra      convert.Params
	DryRun     bool
}

func (req *IsochronesRequest) intervalType() routing.IntervalType {
	if req.IntervalType == "" {
		return routing.IntervalTime
	}
	return req.IntervalType
}

// IsochronesParams builds the isochrones request body.
func IsochronesParams(req IsochronesRequest) (convert.Params, error) {
	const op = "openrouteservice.isochrones"
	if err := routing.ValidateCoordinate(op, "location", req.Location); err != nil {
		return nil, err
	}
	if len(req.Intervals) == 0 {
		return nil, routing.NewArgumentError(op, "intervals", "at least one interval is required")
	}
	for _, r := range req.Intervals {
		if r <= 0 {
			return nil, routing.NewArgumentError(op, "intervals", "must be positive, got %d", r)
		}
	}
	intervalType := req.intervalType()
	if !intervalType.Valid() {
		return nil, routing.NewArgumentError(op, "interval_type", "must be time or distance, got %q", intervalType)
	}
	if req.Smoothing != nil && (*req.Smoothing < 0 || *req.Smoothing > 100) {
		return nil, routing.NewArgumentError(op, "smoothing", "must be within [0, 100], got %v", *req.Smoothing)
	}

	params := convert.Params{
		"locations":  [][]float64{req.Location.LonLat()},
		"range":      slices.Clone(req.Intervals),
		"range_type": string(intervalType),
	}
	params.SetIf(req.Interval > 0, "interval", req.Interval)
	params.SetIf(req.LocationType != "", "location_type", req.LocationType)
	if req.Smoothing != nil {
		params["smoothing"] = *req.Smoothing
	}
	params.SetIf(len(req.Attributes) > 0, "attributes", req.Attributes)
	params.SetIf(len(req.Options) > 0, "options", req.Options.Clone())

	return withUnits(params, req.Extra), nil
}

// GetIsochrones requests one contour per interval.
func (c *Client) GetIsochrones(ctx context.Context, req IsochronesRequest) (*routing.Isochrones, error) {
	params, err := IsochronesParams(req)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.Do(ctx, transport.Request{
		Path:   profilePath("isochrones", req.Profile),
		Body:   params,
		DryRun: req.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return ParseIsochrones(body, req.intervalType())
}

// Isochrones implements routing.IsochronesRouter.
func (c *Client) Isochrones(ctx context.Context, q routing.IsochronesQuery) (*routing.Isochrones, error) {
	return c.GetIsochrones(ctx, IsochronesRequest{
		Location:     q.Location,
		Profile:      q.Profile,
		Intervals:    q.Intervals,
		IntervalType: q.IntervalType,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseIsochrones parses an isochrones FeatureCollection. Contours are ordered by
// increasing value; features that are not polygons are skipped.
func ParseIsochrones(body []byte, intervalType routing.IntervalType) (*routing.Isochrones, error) {
	var resp isochronesResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Isochrones{}, nil
	}

	contours := make([]routing.Isochrone, 0, len(resp.Features))
	for i, f := range resp.Features {
		if f.Geometry.Type != "Polygon" {
			continue
		}
		var rings [][]routing.Coordinate
		if err := json.Unmarshal(f.Geometry.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("ors isochrone %d geometry: %w", i, err)
		}
		var center routing.Coordinate
		if len(f.Properties.Center) >= 2 {
			center = routing.Coordinate{Lon: f.Properties.Center[0], Lat: f.Properties.Center[1]}
		}
		contours = append(contours, routing.Isochrone{
			Geometry:     rings,
			Interval:     int(math.Round(f.Properties.Value)),
			IntervalType: intervalType,
			Center:       center,
		})
	}
	slices.SortStableFunc(contours, func(a, b routing.Isochrone) int {
		return cmp.Compare(a.Interval, b.Interval)
	})
	return &routing.Isochrones{Contours: contours, Raw: body}, nil
}

package valhalla

import (
	"context"
	"fmt"
	"slices"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// IsochronesRequest is a Valhalla isochrone request.
type IsochronesRequest struct {
	Location Waypoint
	Profile  string
	// Intervals are seconds, or metres when IntervalType is distance.
	Intervals    []int
	IntervalType routing.IntervalType
	// Colors are hex colors without '#', one per interval.
	Colors []string
	// Polygons returns polygons instead of lines when set.
	Polygons *bool
	// Denoise removes contours smaller than this fraction of the largest one, 0 to 1.
	Denoise float64
	// Generalize is the simplification tolerance in metres.
	Generalize     float64
	Preference     string
	Options        convert.Params
	AvoidLocations []Waypoint
	AvoidPolygons  [][][]float64
	DateTime       *DateTime
	// ShowLocations adds the input and snapped locations to the response.
	ShowLocations *bool
	ID            string
	Extra         convert.Params
	DryRun        bool
}

func (req *IsochronesRequest) intervalType() routing.IntervalType {
	if req.IntervalType == "" {
		return routing.IntervalTime
	}
	return req.IntervalType
}

// IsochronesParams builds the /isochrone request body.
func IsochronesParams(req IsochronesRequest) (convert.Params, error) {
	const op = "valhalla.isochrones"
	if err := validateWaypoints(op, "location", []Waypoint{req.Location}, 1); err != nil {
		return nil, err
	}
	if err := validateWaypoints(op, "avoid_locations", req.AvoidLocations, 0); err != nil {
		return nil, err
	}

	contours, err := buildContours(op, req.Intervals, req.intervalType(), req.Colors)
	if err != nil {
		return nil, err
	}

	params := convert.Params{
		"locations": buildLocations([]Waypoint{req.Location}),
		"costing":   req.Profile,
		"contours":  contours,
	}

	if co := costingOptions(req.Profile, req.Preference, req.Options); co != nil {
		params["costing_options"] = co
	}
	if req.Polygons != nil {
		params["polygons"] = *req.Polygons
	}
	params.SetIf(req.Denoise != 0, "denoise", req.Denoise)
	params.SetIf(req.Generalize != 0, "generalize", req.Generalize)
	params.SetIf(len(req.AvoidLocations) > 0, "avoid_locations", buildLocations(req.AvoidLocations))
	params.SetIf(len(req.AvoidPolygons) > 0, "avoid_polygons", req.AvoidPolygons)
	if req.DateTime != nil {
		params["date_time"] = req.DateTime.params()
	}
	if req.ShowLocations != nil {
		params["show_locations"] = *req.ShowLocations
	}
	params.SetIf(req.ID != "", "id", req.ID)

	return convert.DeepMerge(params, req.Extra), nil
}

// buildContours converts intervals to Valhalla contours, in minutes or kilometres.
func buildContours(op string, intervals []int, intervalType routing.IntervalType, colors []string) ([]convert.Params, error) {
	if len(intervals) == 0 {
		return nil, routing.NewArgumentError(op, "intervals", "at least one interval is required")
	}
	if !intervalType.Valid() {
		return nil, routing.NewArgumentError(op, "interval_type", "must be time or distance, got %q", intervalType)
	}
	if len(colors) > 0 && len(colors) != len(intervals) {
		return nil, routing.NewArgumentError(op, "colors",
			"need one color per interval, got %d colors for %d intervals", len(colors), len(intervals))
	}

	contours := make([]convert.Params, len(intervals))
	for i, r := range intervals {
		if r <= 0 {
			return nil, routing.NewArgumentError(op, "intervals", "must be positive, got %d", r)
		}
		c := convert.Params{}
		if intervalType == routing.IntervalDistance {
			c["distance"] = float64(r) / 1000
		} else {
			c["time"] = float64(r) / 60
		}
		if len(colors) > 0 {
			c["color"] = colors[i]
		}
		contours[i] = c
	}
	return contours, nil
}

// GetIsochrones requests isochrones around one location.
func (c *Client) GetIsochrones(ctx context.Context, req IsochronesRequest) (*routing.Isochrones, error) {
	params, err := IsochronesParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Ints("intervals", req.Intervals).
		Str("interval_type", string(req.intervalType())).
		Msg("requesting isochrones from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/isochrone", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseIsochrones(body, req.Intervals, req.Location.Position, req.intervalType())
}

// Isochrones implements routing.IsochronesRouter.
func (c *Client) Isochrones(ctx context.Context, q routing.IsochronesQuery) (*routing.Isochrones, error) {
	return c.GetIsochrones(ctx, IsochronesRequest{
		Location:     Waypoint{Position: q.Location},
		Profile:      q.Profile,
		Intervals:    q.Intervals,
		IntervalType: q.IntervalType,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseIsochrones parses an /isochrone response. Valhalla returns the largest contour
// first, so features are read in reverse and paired with the intervals sorted ascending.
// Point features added by show_locations are skipped.
func ParseIsochrones(body []byte, intervals []int, center routing.Coordinate, intervalType routing.IntervalType) (*routing.Isochrones, error) {
	var fc featureCollection
	if !routing.DecodeResponse(body, &fc) {
		return &routing.Isochrones{}, nil
	}

	ascending := slices.Sorted(slices.Values(intervals))
	contours := make([]routing.Isochrone, 0, len(fc.Features))
	for _, f := range slices.Backward(fc.Features) {
		if f.Geometry.Type != "LineString" && f.Geometry.Type != "Polygon" {
			continue
		}
		idx := len(contours)
		if idx >= len(ascending) {
			return nil, fmt.Errorf("valhalla returned more contours than the %d requested intervals", len(intervals))
		}

		rings, err := f.Geometry.rings()
		if err != nil {
			return nil, fmt.Errorf("contour %d: %w", idx, err)
		}
		contours = append(contours, routing.Isochrone{
			Geometry:     rings,
			Interval:     ascending[idx],
			IntervalType: intervalType,
			Center:       center,
		})
	}

	return &routing.Isochrones{Contours: contours, Raw: body}, nil
}

// Raster requests an isochrone rendered as a GeoTIFF image.
func (c *Client) Raster(ctx context.Context, req IsochronesRequest) (*routing.Raster, error) {
	params, err := IsochronesParams(req)
	if err != nil {
		return nil, err
	}
	params["format"] = "geotiff"

	c.logger.Debug().
		Str("profile", req.Profile).
		Ints("intervals", req.Intervals).
		Msg("requesting isochrone raster from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/isochrone", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseRaster(body, slices.Max(req.Intervals)), nil
}

// ParseRaster wraps a raster response.
func ParseRaster(body []byte, maxTravelTime int) *routing.Raster {
	if len(body) == 0 {
		return &routing.Raster{}
	}
	return &routing.Raster{Image: body, MaxTravelTime: maxTravelTime}
}

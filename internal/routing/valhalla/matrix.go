package valhalla

import (
	"context"
	"math"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// MatrixRequest is a Valhalla sources_to_targets request.
type MatrixRequest struct {
	Locations []Waypoint
	Profile   string
	// Sources and Destinations index into Locations. Empty selects every location.
	Sources        []int
	Destinations   []int
	Preference     string
	Options        convert.Params
	AvoidLocations []Waypoint
	AvoidPolygons  [][][]float64
	DateTime       *DateTime
	ID             string
	Extra          convert.Params
	DryRun         bool
}

// MatrixParams builds the /sources_to_targets request body.
func MatrixParams(req MatrixRequest) (convert.Params, error) {
	const op = "valhalla.matrix"
	if err := validateWaypoints(op, "locations", req.Locations, 1); err != nil {
		return nil, err
	}
	if err := validateWaypoints(op, "avoid_locations", req.AvoidLocations, 0); err != nil {
		return nil, err
	}
	if err := routing.ValidateIndices(op, "sources", req.Sources, len(req.Locations)); err != nil {
		return nil, err
	}
	if err := routing.ValidateIndices(op, "destinations", req.Destinations, len(req.Locations)); err != nil {
		return nil, err
	}

	params := convert.Params{
		"costing": req.Profile,
		"sources": buildLocations(selectWaypoints(req.Locations, req.Sources)),
		"targets": buildLocations(selectWaypoints(req.Locations, req.Destinations)),
	}

	if co := costingOptions(req.Profile, req.Preference, req.Options); co != nil {
		params["costing_options"] = co
	}
	params.SetIf(len(req.AvoidLocations) > 0, "avoid_locations", buildLocations(req.AvoidLocations))
	params.SetIf(len(req.AvoidPolygons) > 0, "avoid_polygons", req.AvoidPolygons)
	if req.DateTime != nil {
		params["date_time"] = req.DateTime.params()
	}
	params.SetIf(req.ID != "", "id", req.ID)

	extra := convert.DeepMerge(req.Extra, convert.Params{"units": wireUnits})
	return convert.DeepMerge(params, extra), nil
}

// selectWaypoints returns the waypoints at indices in the given order, or all of them
// when indices is empty.
func selectWaypoints(wps []Waypoint, indices []int) []Waypoint {
	if len(indices) == 0 {
		return wps
	}
	selected := make([]Waypoint, len(indices))
	for i, idx := range indices {
		selected[i] = wps[idx]
	}
	return selected
}

// GetMatrix requests durations and distances between sources and destinations.
func (c *Client) GetMatrix(ctx context.Context, req MatrixRequest) (*routing.Matrix, error) {
	params, err := MatrixParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Int("location_count", len(req.Locations)).
		Msg("requesting matrix from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/sources_to_targets", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}
	return ParseMatrix(body)
}

// Matrix implements routing.MatrixRouter.
func (c *Client) Matrix(ctx context.Context, q routing.MatrixQuery) (*routing.Matrix, error) {
	return c.GetMatrix(ctx, MatrixRequest{
		Locations:    Waypoints(q.Locations...),
		Profile:      q.Profile,
		Sources:      q.Sources,
		Destinations: q.Destinations,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseMatrix parses a /sources_to_targets response. Unreachable pairs are nil.
func ParseMatrix(body []byte) (*routing.Matrix, error) {
	var resp matrixResponse
	if !routing.DecodeResponse(body, &resp) || resp.SourcesToTargets == nil {
		return &routing.Matrix{}, nil
	}

	durations := make([][]*float64, len(resp.SourcesToTargets))
	distances := make([][]*float64, len(resp.SourcesToTargets))
	for i, row := range resp.SourcesToTargets {
		durations[i] = make([]*float64, len(row))
		distances[i] = make([]*float64, len(row))
		for j, cell := range row {
			durations[i][j] = cell.Time
			if cell.Distance != nil {
				m := math.Round(*cell.Distance * 1000)
				distances[i][j] = &m
			}
		}
	}

	return &routing.Matrix{Durations: durations, Distances: distances, Raw: body}, nil
}

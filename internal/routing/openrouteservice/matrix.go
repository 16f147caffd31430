package openrouteservice

import (
	"context"
	"slices"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// Matrix metrics.
const (
	MetricDuration = "duration"
	MetricDistance = "distance"
)

// MatrixRequest is an ORS matrix request.
type MatrixRequest struct {
	Locations []routing.Coordinate
	Profile   string
	// Sources and Destinations index into Locations; empty means all.
	Sources      []int
	Destinations []int
	// Metrics defaults to duration and distance.
	Metrics          []string
	ResolveLocations *bool
	Extra            convert.Params
	DryRun           bool
}

func (req *MatrixRequest) metrics() []string {
	if len(req.Metrics) == 0 {
		return []string{MetricDuration, MetricDistance}
	}
	return req.Metrics
}

// MatrixParams builds the matrix request body.
func MatrixParams(req MatrixRequest) (convert.Params, error) {
	const op = "openrouteservice.matrix"
	if err := routing.ValidateLocations(op, req.Locations, 1); err != nil {
		return nil, err
	}
	if err := routing.ValidateIndices(op, "sources", req.Sources, len(req.Locations)); err != nil {
		return nil, err
	}
	if err := routing.ValidateIndices(op, "destinations", req.Destinations, len(req.Locations)); err != nil {
		return nil, err
	}
	for _, m := range req.metrics() {
		if m != MetricDuration && m != MetricDistance {
			return nil, routing.NewArgumentError(op, "metrics", "must be duration or distance, got %q", m)
		}
	}

	params := convert.Params{
		"locations": lonLats(req.Locations),
		"metrics":   slices.Clone(req.metrics()),
	}
	params.SetIf(len(req.Sources) > 0, "sources", slices.Clone(req.Sources))
	params.SetIf(len(req.Destinations) > 0, "destinations", slices.Clone(req.Destinations))
	if req.ResolveLocations != nil {
		params["resolve_locations"] = *req.ResolveLocations
	}

	return withUnits(params, req.Extra), nil
}

// GetMatrix requests the durations and distances between sources and destinations.
func (c *Client) GetMatrix(ctx context.Context, req MatrixRequest) (*routing.Matrix, error) {
	params, err := MatrixParams(req)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.Do(ctx, transport.Request{
		Path:   profilePath("matrix", req.Profile),
		Body:   params,
		DryRun: req.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return ParseMatrix(body)
}

// Matrix implements routing.MatrixRouter.
func (c *Client) Matrix(ctx context.Context, q routing.MatrixQuery) (*routing.Matrix, error) {
	return c.GetMatrix(ctx, MatrixRequest{
		Locations:    q.Locations,
		Profile:      q.Profile,
		Sources:      q.Sources,
		Destinations: q.Destinations,
		Extra:        q.Extra,
		DryRun:       q.DryRun,
	})
}

// ParseMatrix parses a matrix response. Unreachable pairs stay nil.
func ParseMatrix(body []byte) (*routing.Matrix, error) {
	var resp matrixResponse
	if !routing.DecodeResponse(body, &resp) {
		return &routing.Matrix{}, nil
	}
	return &routing.Matrix{
		Durations: resp.Durations,
		Distances: resp.Distances,
		Raw:       body,
	}, nil
}

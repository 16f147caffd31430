package valhalla

import (
	"context"
	"fmt"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/transport"
)

// Expansion properties Valhalla can attach to every edge.
const (
	ExpansionDuration = "duration"
	ExpansionDistance = "distance"
	ExpansionCost     = "cost"
	ExpansionEdgeID   = "edge_id"
	ExpansionPredID   = "pred_edge_id"
	ExpansionStatus   = "edge_status"
)

// ExpansionRequest asks for the graph expansion of an isochrone computation.
type ExpansionRequest struct {
	Location     Waypoint
	Profile      string
	Intervals    []int
	IntervalType routing.IntervalType
	// SkipOpposites returns only one direction of each edge.
	SkipOpposites bool
	// ExpansionProperties are the edge properties to return.
	ExpansionProperties []string
	Options             convert.Params
	DateTime            *DateTime
	ID                  string
	Extra               convert.Params
	DryRun              bool
}

// ExpansionParams builds the /expansion request body.
func ExpansionParams(req ExpansionRequest) (convert.Params, error) {
	iso, err := IsochronesParams(IsochronesRequest{
		Location:     req.Location,
		Profile:      req.Profile,
		Intervals:    req.Intervals,
		IntervalType: req.IntervalType,
		Options:      req.Options,
		DateTime:     req.DateTime,
		ID:           req.ID,
	})
	if err != nil {
		return nil, err
	}

	iso["action"] = "isochrone"
	iso.SetIf(req.SkipOpposites, "skip_opposites", true)
	iso.SetIf(len(req.ExpansionProperties) > 0, "expansion_properties", req.ExpansionProperties)

	return convert.DeepMerge(iso, req.Extra), nil
}

// Expansion requests the edges Valhalla explored while computing an isochrone.
func (c *Client) Expansion(ctx context.Context, req ExpansionRequest) (*routing.Expansions, error) {
	params, err := ExpansionParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", req.Profile).
		Strs("expansion_properties", req.ExpansionProperties).
		Msg("requesting expansion from Valhalla")

	body, err := c.transport.Do(ctx, transport.Request{Path: "/expansion", Body: params, DryRun: req.DryRun})
	if err != nil {
		return nil, err
	}

	intervalType := req.IntervalType
	if intervalType == "" {
		intervalType = routing.IntervalTime
	}
	return ParseExpansion(body, req.Location.Position, req.ExpansionProperties, intervalType)
}

// ParseExpansion parses an /expansion response, keeping only the requested properties.
func ParseExpansion(body []byte, center routing.Coordinate, properties []string, intervalType routing.IntervalType) (*routing.Expansions, error) {
	var fc featureCollection
	if !routing.DecodeResponse(body, &fc) {
		return &routing.Expansions{}, nil
	}

	edges := make([]routing.Edge, 0, len(fc.Features))
	for i, f := range fc.Features {
		line, err := f.Geometry.line()
		if err != nil {
			return nil, fmt.Errorf("expansion edge %d: %w", i, err)
		}

		edge := routing.Edge{Geometry: line}
		for _, p := range properties {
			v, ok := f.Properties[p]
			if !ok {
				continue
			}
			if edge.Properties == nil {
				edge.Properties = make(map[string]any, len(properties))
			}
			edge.Properties[p] = v
		}
		edges = append(edges, edge)
	}

	return &routing.Expansions{
		Edges:        edges,
		Center:       center,
		IntervalType: intervalType,
		Raw:          body,
	}, nil
}

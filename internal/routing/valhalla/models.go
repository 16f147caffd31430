package valhalla

import (
	"encoding/json"
	"fmt"

	"github.com/breatheroute/routekit/internal/routing"
)

// Valhalla API response types.

type routeResponse struct {
	Trip       trip        `json:"trip"`
	Alternates []alternate `json:"alternates,omitempty"`
	ID         string      `json:"id,omitempty"`
}

type alternate struct {
	Trip trip `json:"trip"`
}

type trip struct {
	Locations []tripLocation `json:"locations"`
	Legs      []leg          `json:"legs"`
	Summary   summary        `json:"summary"`
	Units     string         `json:"units"`
}

type tripLocation struct {
	Type          string  `json:"type"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	OriginalIndex *int    `json:"original_index"`
}

type leg struct {
	Shape   string  `json:"shape"`
	Summary summary `json:"summary"`
}

type summary struct {
	Time   float64 `json:"time"`   // Seconds
	Length float64 `json:"length"` // Kilometres
}

type matrixResponse struct {
	SourcesToTargets [][]matrixCell `json:"sources_to_targets"`
	Units            string         `json:"units"`
}

type matrixCell struct {
	Time     *float64 `json:"time"`
	Distance *float64 `json:"distance"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// rings returns the geometry's coordinates as rings: every ring of a Polygon, or the
// line of a LineString as a single ring.
func (g geometry) rings() ([][]routing.Coordinate, error) {
	switch g.Type {
	case "Polygon":
		var rings [][]routing.Coordinate
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decoding polygon: %w", err)
		}
		return rings, nil
	case "LineString":
		line, err := g.line()
		if err != nil {
			return nil, err
		}
		return [][]routing.Coordinate{line}, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func (g geometry) line() ([]routing.Coordinate, error) {
	var line []routing.Coordinate
	if err := json.Unmarshal(g.Coordinates, &line); err != nil {
		return nil, fmt.Errorf("decoding line: %w", err)
	}
	return line, nil
}

type traceResponse struct {
	Shape         string           `json:"shape"`
	Edges         []map[string]any `json:"edges"`
	MatchedPoints []map[string]any `json:"matched_points"`
}

package routing

import (
	"context"

	"github.com/breatheroute/routekit/internal/convert"
)

// DirectionsQuery is a provider-agnostic directions request.
type DirectionsQuery struct {
	Locations    []Coordinate   `json:"locations"`
	Profile      string         `json:"profile"`
	Alternatives int            `json:"alternatives,omitempty"` // Number of alternates wanted
	Extra        convert.Params `json:"extra,omitempty"`        // Deep-merged into the wire parameters
	DryRun       bool           `json:"dry_run,omitempty"`
}

// IsochronesQuery is a provider-agnostic isochrones request.
type IsochronesQuery struct {
	Location     Coordinate     `json:"location"`
	Profile      string         `json:"profile"`
	Intervals    []int          `json:"intervals"` // Seconds or metres
	IntervalType IntervalType   `json:"interval_type,omitempty"`
	Extra        convert.Params `json:"extra,omitempty"`
	DryRun       bool           `json:"dry_run,omitempty"`
}

// MatrixQuery is a provider-agnostic matrix request.
type MatrixQuery struct {
	Locations    []Coordinate   `json:"locations"`
	Profile      string         `json:"profile"`
	Sources      []int          `json:"sources,omitempty"`      // Indices into Locations, all when empty
	Destinations []int          `json:"destinations,omitempty"` // Indices into Locations, all when empty
	Extra        convert.Params `json:"extra,omitempty"`
	DryRun       bool           `json:"dry_run,omitempty"`
}

// Router is a named routing provider.
type Router interface {
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// DirectionsRouter computes routes.
type DirectionsRouter interface {
	Router
	Directions(ctx context.Context, q DirectionsQuery) (*Directions, error)
}

// IsochronesRouter computes isochrones.
type IsochronesRouter interface {
	Router
	Isochrones(ctx context.Context, q IsochronesQuery) (*Isochrones, error)
}

// MatrixRouter computes duration and distance matrices.
type MatrixRouter interface {
	Router
	Matrix(ctx context.Context, q MatrixQuery) (*Matrix, error)
}

// ValidateIndices checks that every index selects one of n locations.
func ValidateIndices(op, field string, indices []int, n int) error {
	for _, i := range indices {
		if i < 0 || i >= n {
			return NewArgumentError(op, field, "index %d out of range for %d locations", i, n)
		}
	}
	return nil
}

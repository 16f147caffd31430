// Package routing defines the provider-agnostic result types, queries and errors shared
// by every routing provider adapter, plus a Service that dispatches queries to them.
package routing

import (
	"encoding/json"
	"fmt"
)

// Coordinate represents a geographic point.
// It is encoded as a GeoJSON position, [lon, lat].
type Coordinate struct {
	Lat float64
	Lon float64
}

// LonLat returns c as a [lon, lat] pair.
func (c Coordinate) LonLat() []float64 {
	return []float64{c.Lon, c.Lat}
}

// MarshalJSON encodes c as [lon, lat].
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.LonLat())
}

// UnmarshalJSON decodes a [lon, lat] position. Extra values such as elevation are ignored.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	var pos []float64
	if err := json.Unmarshal(b, &pos); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	if len(pos) < 2 {
		return fmt.Errorf("coordinate: want [lon, lat], got %d values", len(pos))
	}
	c.Lon, c.Lat = pos[0], pos[1]
	return nil
}

// CoordinatesFromPoints converts [lon, lat(, z)] points into coordinates. When every
// point carries a third value those values are returned as the elevation profile.
func CoordinatesFromPoints(points [][]float64) ([]Coordinate, []float64) {
	if len(points) == 0 {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(points))
	elevation := make([]float64, 0, len(points))
	for _, p := range points {
		if len(p) < 2 {
			continue
		}
		coords = append(coords, Coordinate{Lon: p[0], Lat: p[1]})
		if len(p) > 2 {
			elevation = append(elevation, p[2])
		}
	}

	if len(elevation) != len(coords) {
		elevation = nil
	}
	return coords, elevation
}

// IntervalType tells whether isochrone intervals are durations or distances.
type IntervalType string

const (
	// IntervalTime means intervals are durations in seconds.
	IntervalTime IntervalType = "time"
	// IntervalDistance means intervals are distances in metres.
	IntervalDistance IntervalType = "distance"
)

// Valid reports whether t is a known interval type.
func (t IntervalType) Valid() bool {
	return t == IntervalTime || t == IntervalDistance
}

// ValidateCoordinate checks that c is within valid latitude and longitude ranges.
func ValidateCoordinate(op, field string, c Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return &ArgumentError{
			Op:     op,
			Field:  field,
			Reason: fmt.Sprintf("latitude %f out of range [-90, 90]", c.Lat),
			Err:    ErrInvalidCoordinates,
		}
	}
	if c.Lon < -180 || c.Lon > 180 {
		return &ArgumentError{
			Op:     op,
			Field:  field,
			Reason: fmt.Sprintf("longitude %f out of range [-180, 180]", c.Lon),
			Err:    ErrInvalidCoordinates,
		}
	}
	return nil
}

// ValidateLocations checks the minimum location count and the range of every location.
func ValidateLocations(op string, locations []Coordinate, minCount int) error {
	if len(locations) < minCount {
		return NewArgumentError(op, "locations", "need at least %d locations, got %d", minCount, len(locations))
	}
	for i, c := range locations {
		if err := ValidateCoordinate(op, fmt.Sprintf("locations[%d]", i), c); err != nil {
			return err
		}
	}
	return nil
}

package routing

import (
	"encoding/json"
)

// DecodeResponse unmarshals a provider response into v. It reports false when the body
// is absent or not valid JSON, in which case parsers return an empty result.
func DecodeResponse(body []byte, v any) bool {
	return len(body) > 0 && json.Unmarshal(body, v) == nil
}

// metresToMiles is the exact metre to statute mile factor.
const metresToMiles = 0.0006213712

// Direction is a single route.
type Direction struct {
	Geometry  []Coordinate    `json:"geometry"`            // Route traversal order
	Elevation []float64       `json:"elevation,omitempty"` // Metres per geometry point, 3D routes only
	Duration  int             `json:"duration"`            // Seconds
	Distance  int             `json:"distance"`            // Metres
	Raw       json.RawMessage `json:"-"`
}

// KM returns the distance in kilometres.
func (d Direction) KM() float64 {
	return float64(d.Distance) / 1000
}

// Miles returns the distance in statute miles.
func (d Direction) Miles() float64 {
	return float64(d.Distance) * metresToMiles
}

// Empty reports whether the provider returned no route.
func (d Direction) Empty() bool {
	return len(d.Geometry) == 0 && d.Duration == 0 && d.Distance == 0
}

// Directions is the primary route followed by any alternates.
type Directions struct {
	Routes []Direction     `json:"routes"`
	Raw    json.RawMessage `json:"-"`
}

// Primary returns the first route, or an empty Direction when there is none.
func (d *Directions) Primary() Direction {
	if d == nil || len(d.Routes) == 0 {
		return Direction{}
	}
	return d.Routes[0]
}

// Len returns the number of routes.
func (d *Directions) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Routes)
}

// Empty reports whether no route was returned.
func (d *Directions) Empty() bool {
	return d.Len() == 0
}

// Isochrone is one contour of an isochrone request.
type Isochrone struct {
	// Geometry holds the contour's rings: every ring of a polygon, or a single line for
	// LineString and polyline encoded contours.
	Geometry     [][]Coordinate `json:"geometry"`
	Interval     int            `json:"interval"` // Seconds or metres, as requested
	IntervalType IntervalType   `json:"interval_type"`
	Center       Coordinate     `json:"center"`
}

// Isochrones holds contours ordered by increasing interval.
type Isochrones struct {
	Contours []Isochrone     `json:"contours"`
	Raw      json.RawMessage `json:"-"`
}

// Empty reports whether no contour was returned.
func (i *Isochrones) Empty() bool {
	return i == nil || len(i.Contours) == 0
}

// Matrix holds durations and distances between sources (rows) and destinations
// (columns). A nil cell means the pair is unreachable or the metric was not returned.
type Matrix struct {
	Durations [][]*float64    `json:"durations,omitempty"` // Seconds
	Distances [][]*float64    `json:"distances,omitempty"` // Metres
	Raw       json.RawMessage `json:"-"`
}

// Duration returns the duration from source i to destination j.
func (m *Matrix) Duration(i, j int) (float64, bool) {
	return cell(m.Durations, i, j)
}

// Distance returns the distance from source i to destination j.
func (m *Matrix) Distance(i, j int) (float64, bool) {
	return cell(m.Distances, i, j)
}

// Shape returns the number of rows and columns.
func (m *Matrix) Shape() (rows, cols int) {
	grid := m.Durations
	if grid == nil {
		grid = m.Distances
	}
	if len(grid) == 0 {
		return 0, 0
	}
	return len(grid), len(grid[0])
}

// Empty reports whether neither metric was returned.
func (m *Matrix) Empty() bool {
	return m == nil || (len(m.Durations) == 0 && len(m.Distances) == 0)
}

func cell(grid [][]*float64, i, j int) (float64, bool) {
	if i < 0 || i >= len(grid) || j < 0 || j >= len(grid[i]) || grid[i][j] == nil {
		return 0, false
	}
	return *grid[i][j], true
}

// Edge is one edge of an expansion tree.
type Edge struct {
	Geometry []Coordinate `json:"geometry"`
	// Properties holds only the requested properties the provider returned.
	Properties map[string]any `json:"properties,omitempty"`
}

// Float returns a numeric property.
func (e Edge) Float(key string) (float64, bool) {
	v, ok := e.Properties[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Expansions is the search tree explored while computing an isochrone or route.
type Expansions struct {
	Edges        []Edge          `json:"edges"`
	Center       Coordinate      `json:"center"`
	IntervalType IntervalType    `json:"interval_type"`
	Raw          json.RawMessage `json:"-"`
}

// Empty reports whether no edge was returned.
func (e *Expansions) Empty() bool {
	return e == nil || len(e.Edges) == 0
}

// OptimizedDirection is a route through reordered waypoints.
type OptimizedDirection struct {
	Direction
	// OriginalIndices maps each output location position to the caller's input index.
	OriginalIndices []int `json:"original_indices"`
}

// OriginalIndex returns the input index of the location at output position i.
func (o *OptimizedDirection) OriginalIndex(i int) (int, bool) {
	if o == nil || i < 0 || i >= len(o.OriginalIndices) {
		return 0, false
	}
	return o.OriginalIndices[i], true
}

// Empty reports whether no route was returned.
func (o *OptimizedDirection) Empty() bool {
	return o == nil || (o.Direction.Empty() && len(o.OriginalIndices) == 0)
}

// MatchedResults is the provider's map-matching answer, passed through mostly as is.
type MatchedResults struct {
	Edges         []map[string]any `json:"edges,omitempty"`
	MatchedPoints []map[string]any `json:"matched_points,omitempty"`
	Geometry      []Coordinate     `json:"geometry,omitempty"` // Decoded matched shape
	Raw           json.RawMessage  `json:"-"`
}

// Empty reports whether nothing was matched.
func (m *MatchedResults) Empty() bool {
	return m == nil || (len(m.Edges) == 0 && len(m.MatchedPoints) == 0 && len(m.Geometry) == 0)
}

// Raster is a rendered isochrone image.
type Raster struct {
	Image         []byte `json:"-"`
	MaxTravelTime int    `json:"max_travel_time"` // Largest requested interval
}

// Empty reports whether no image was returned.
func (r *Raster) Empty() bool {
	return r == nil || len(r.Image) == 0
}

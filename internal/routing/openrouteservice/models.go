package openrouteservice

import "encoding/json"

// directionsResponse is the /json directions response. Geometry is an encoded
// polyline, three dimensional when elevation was requested.
type directionsResponse struct {
	Routes []route   `json:"routes"`
	BBox   []float64 `json:"bbox,omitempty"`
}

type route struct {
	Summary   routeSummary `json:"summary"`
	Geometry  string       `json:"geometry"`
	WayPoints []int        `json:"way_points,omitempty"`
	Warnings  []warning    `json:"warnings,omitempty"`
}

type routeSummary struct {
	Distance float64 `json:"distance"` // Metres
	Duration float64 `json:"duration"` // Seconds
	Ascent   float64 `json:"ascent,omitempty"`
	Descent  float64 `json:"descent,omitempty"`
}

type warning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// isochronesResponse is a GeoJSON FeatureCollection with one polygon per range.
type isochronesResponse struct {
	Type     string             `json:"type"`
	Features []isochroneFeature `json:"features"`
}

type isochroneFeature struct {
	Type       string              `json:"type"`
	Properties isochroneProperties `json:"properties"`
	Geometry   struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

type isochroneProperties struct {
	GroupIndex int       `json:"group_index"`
	Value      float64   `json:"value"`
	Center     []float64 `json:"center"`
}

type matrixResponse struct {
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// apiError is the error body ORS returns with 4xx responses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS error codes for error mapping.
const (
	errCodeRouteNotFound = 2009
	errCodePointNotFound = 2010
)

package ign

import "encoding/json"

// IGN API response types.

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// routeResponse is the itineraire response. Geometry is a GeoJSON object or an
// encoded polyline string depending on geometryFormat.
type routeResponse struct {
	Resource string          `json:"resource"`
	Profile  string          `json:"profile"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Geometry json.RawMessage `json:"geometry"`
	Duration *float64        `json:"duration"` // Seconds, as requested by timeUnit
	Distance *float64        `json:"distance"` // Metres, as requested by distanceUnit
}

type isochroneResponse struct {
	Point     string          `json:"point"`
	Resource  string          `json:"resource"`
	CostType  string          `json:"costType"`
	CostValue float64         `json:"costValue"`
	Geometry  json.RawMessage `json:"geometry"`
}

// Package polyline decodes and encodes Google encoded polylines at the precisions
// used by routing providers (5 for Google/ORS/IGN, 6 for Valhalla/OSRM).
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Encoded polylines store points as (lat, lon). Everything returned from this package
// is in GeoJSON order, (lon, lat), because that is what every routing result exposes.
package polyline

import (
	"fmt"
	"math"

	gopolyline "github.com/twpayne/go-polyline"
)

const (
	// Precision5 is the Google default of five decimal places.
	Precision5 = 5
	// Precision6 is the six decimal places used by Valhalla.
	Precision6 = 6

	// elevationScale is the fixed scale of the third dimension in 3D polylines
	// (elevation in centimetres).
	elevationScale = 100
)

func codec(precision, dim int) (gopolyline.Codec, error) {
	if precision != Precision5 && precision != Precision6 {
		return gopolyline.Codec{}, fmt.Errorf("unsupported polyline precision %d", precision)
	}
	return gopolyline.Codec{Dim: dim, Scale: math.Pow10(precision)}, nil
}

// Decode decodes an encoded polyline into [lon, lat] points. When is3d is set each
// point carries a third value, the elevation in metres.
// An empty string decodes to nil.
func Decode(encoded string, precision int, is3d bool) ([][]float64, error) {
	if encoded == "" {
		return nil, nil
	}

	dim := 2
	if is3d {
		dim = 3
	}
	c, err := codec(precision, dim)
	if err != nil {
		return nil, err
	}

	// DecodeFlatCoords accumulates integer deltas; DecodeCoords drifts on long lines.
	flat, _, err := c.DecodeFlatCoords(nil, []byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding polyline: %w", err)
	}

	// The codec applies one scale to every dimension; elevation is always /100.
	zFactor := c.Scale / elevationScale

	points := make([][]float64, 0, len(flat)/dim)
	for i := 0; i+dim <= len(flat); i += dim {
		pt := []float64{flat[i+1], flat[i]}
		if is3d {
			pt = append(pt, math.Round(flat[i+2]*zFactor*elevationScale)/elevationScale)
		}
		points = append(points, pt)
	}
	return points, nil
}

// Decode5 decodes a 2D polyline at precision 5.
func Decode5(encoded string) ([][]float64, error) {
	return Decode(encoded, Precision5, false)
}

// Decode6 decodes a 2D polyline at precision 6.
func Decode6(encoded string) ([][]float64, error) {
	return Decode(encoded, Precision6, false)
}

// Encode encodes [lon, lat] points at the given precision. It is the inverse of a
// 2D Decode.
func Encode(points [][]float64, precision int) (string, error) {
	if len(points) == 0 {
		return "", nil
	}
	c, err := codec(precision, 2)
	if err != nil {
		return "", err
	}

	latLon := make([][]float64, len(points))
	for i, p := range points {
		if len(p) < 2 {
			return "", fmt.Errorf("point %d has %d values, want at least 2", i, len(p))
		}
		latLon[i] = []float64{p[1], p[0]}
	}
	return string(c.EncodeCoords(nil, latLon)), nil
}

package ign

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
)

var paris = []routing.Coordinate{
	{Lat: 48.849319, Lon: 2.337306},
	{Lat: 48.850871, Lon: 2.343564},
	{Lat: 48.852149, Lon: 2.355214},
	{Lat: 48.852891, Lon: 2.367776},
}

func boolPtr(b bool) *bool { return &b }

// newTestClient serves fixture and hands every request's query to inspect.
func newTestClient(t *testing.T, path, fixture string, logger zerolog.Logger, inspect func(url.Values)) *Client {
	t.Helper()
	respBody, err := os.ReadFile("testdata/" + fixture)
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != path {
			t.Errorf("expected path %s, got %s", path, r.URL.Path)
		}
		if inspect != nil {
			inspect(r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(respBody)
	}))
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     logger,
	})
}

func TestDirectionsParams(t *testing.T) {
	params, err := DirectionsParams(DirectionsRequest{
		Locations:      paris,
		Profile:        "pedestrian",
		Optimization:   "shortest",
		GeometryFormat: GeometryPolyline,
		Constraints:    map[string]any{"constraintType": "banned", "key": "wayType", "operator": "=", "value": "autoroute"},
		GetSteps:       boolPtr(true),
		GetBbox:        boolPtr(false),
		CRS:            "EPSG:4326",
		WaysAttributes: []string{"name", "nature"},
		Extra:          convert.Params{"timeUnit": "minute"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]any{
		"start":          "2.337306,48.849319",
		"end":            "2.367776,48.852891",
		"intermediates":  "2.343564,48.850871|2.355214,48.852149",
		"resource":       DefaultDirectionsResource,
		"profile":        "pedestrian",
		"optimization":   "shortest",
		"geometryFormat": "polyline",
		"constraints":    `{"constraintType":"banned","key":"wayType","operator":"=","value":"autoroute"}`,
		"getSteps":       "true",
		"getBbox":        "false",
		"distanceUnit":   "meter",
		"timeUnit":       "minute",
		"crs":            "EPSG:4326",
		"waysAttributes": "name,nature",
	}
	if len(params) != len(expected) {
		t.Errorf("expected %d parameters, got %d: %v", len(expected), len(params), params)
	}
	for k, want := range expected {
		if got := params[k]; got != want {
			t.Errorf("%s: expected %v, got %v", k, want, got)
		}
	}
}

func TestDirectionsParams_Defaults(t *testing.T) {
	params, err := DirectionsParams(DirectionsRequest{Locations: paris[:2]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if params["resource"] != DefaultDirectionsResource {
		t.Errorf("expected default resource, got %v", params["resource"])
	}
	if params["profile"] != DefaultProfile {
		t.Errorf("expected default profile, got %v", params["profile"])
	}
	if params["timeUnit"] != "second" || params["distanceUnit"] != "meter" {
		t.Errorf("units not forced: %v / %v", params["timeUnit"], params["distanceUnit"])
	}
	for _, k := range []string{"intermediates", "getSteps", "getBbox", "constraints", "geometryFormat"} {
		if _, ok := params[k]; ok {
			t.Errorf("unexpected parameter %s", k)
		}
	}
}

func TestDirectionsParams_StringConstraints(t *testing.T) {
	raw := `{"constraintType":"banned","key":"wayType","operator":"=","value":"tunnel"}`
	params, err := DirectionsParams(DirectionsRequest{Locations: paris[:2], Constraints: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["constraints"] != raw {
		t.Errorf("expected constraints passed through, got %v", params["constraints"])
	}
}

func TestDirectionsParams_Invalid(t *testing.T) {
	if _, err := DirectionsParams(DirectionsRequest{Locations: paris[:1]}); !errors.Is(err, routing.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for one location, got %v", err)
	}

	_, err := DirectionsParams(DirectionsRequest{Locations: paris[:2], Constraints: make(chan int)})
	if !errors.Is(err, routing.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unencodable constraints, got %v", err)
	}
}

func TestClient_GetDirections(t *testing.T) {
	client := newTestClient(t, "/itineraire", "itineraire.json", zerolog.Nop(), func(q url.Values) {
		if q.Get("start") != "2.337306,48.849319" {
			t.Errorf("unexpected start %q", q.Get("start"))
		}
		if q.Get("getSteps") != "true" {
			t.Errorf("expected getSteps=true, got %q", q.Get("getSteps"))
		}
	})

	dirs, err := client.GetDirections(context.Background(), DirectionsRequest{
		Locations: []routing.Coordinate{paris[0], paris[3]},
		GetSteps:  boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dirs.Len() != 1 {
		t.Fatalf("expected 1 route, got %d", dirs.Len())
	}
	route := dirs.Primary()
	if route.Duration != 612 {
		t.Errorf("expected duration 612, got %d", route.Duration)
	}
	if route.Distance != 3246 {
		t.Errorf("expected distance 3246, got %d", route.Distance)
	}
	if len(route.Geometry) != 4 {
		t.Fatalf("expected 4 points, got %d", len(route.Geometry))
	}
	if route.Geometry[3] != paris[3] {
		t.Errorf("expected last point %v, got %v", paris[3], route.Geometry[3])
	}
}

func TestClient_GetDirections_Polyline(t *testing.T) {
	client := newTestClient(t, "/itineraire", "itineraire_polyline.json", zerolog.Nop(), func(q url.Values) {
		if q.Get("geometryFormat") != GeometryPolyline {
			t.Errorf("expected geometryFormat=polyline, got %q", q.Get("geometryFormat"))
		}
	})

	dirs, err := client.GetDirections(context.Background(), DirectionsRequest{
		Locations:      []routing.Coordinate{{Lat: 49.42058, Lon: 8.68864}, {Lat: 49.41578, Lon: 8.68092}},
		GeometryFormat: GeometryPolyline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route := dirs.Primary()
	want := []routing.Coordinate{{Lat: 49.42058, Lon: 8.68864}, {Lat: 49.41578, Lon: 8.68092}}
	if len(route.Geometry) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(route.Geometry))
	}
	for i := range want {
		if route.Geometry[i] != want[i] {
			t.Errorf("point %d: expected %v, got %v", i, want[i], route.Geometry[i])
		}
	}
	if route.Duration != 91 || route.Distance != 845 {
		t.Errorf("expected 91 s / 845 m, got %d s / %d m", route.Duration, route.Distance)
	}
}

func TestParseDirections_Empty(t *testing.T) {
	for _, body := range [][]byte{nil, []byte("not json"), []byte(`{}`)} {
		dirs, err := ParseDirections(body, "")
		if err != nil {
			t.Errorf("%q: unexpected error: %v", body, err)
			continue
		}
		if !dirs.Empty() {
			t.Errorf("%q: expected empty directions", body)
		}
	}
}

func TestIsochronesParams(t *testing.T) {
	params, err := IsochronesParams(IsochronesRequest{
		Location:     paris[0],
		Intervals:    []int{1000},
		IntervalType: routing.IntervalDistance,
		Direction:    LocationArrival,
		Constraints:  []map[string]string{{"constraintType": "banned", "key": "wayType", "operator": "=", "value": "autoroute"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := params.Query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	expected := map[string]string{
		"point":         "2.337306,48.849319",
		"costValue":     "1000",
		"costType":      "distance",
		"resource":      DefaultIsochroneResource,
		"profile":       DefaultProfile,
		"location_type": "arrival",
		"distanceUnit":  "meter",
		"timeUnit":      "second",
		"constraints":   `[{"constraintType":"banned","key":"wayType","operator":"=","value":"autoroute"}]`,
	}
	for k, want := range expected {
		if got := q.Get(k); got != want {
			t.Errorf("%s: expected %q, got %q", k, want, got)
		}
	}
}

func TestIsochronesParams_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  IsochronesRequest
	}{
		{"no interval", IsochronesRequest{Location: paris[0]}},
		{"zero interval", IsochronesRequest{Location: paris[0], Intervals: []int{0}}},
		{"bad interval type", IsochronesRequest{Location: paris[0], Intervals: []int{60}, IntervalType: "cost"}},
		{"bad location", IsochronesRequest{Location: routing.Coordinate{Lat: 48, Lon: 190}, Intervals: []int{60}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := IsochronesParams(tt.req); !errors.Is(err, routing.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestClient_GetIsochrones_FirstIntervalOnly(t *testing.T) {
	var logs bytes.Buffer
	client := newTestClient(t, "/isochrone", "isochrone.json", zerolog.New(&logs), func(q url.Values) {
		if q.Get("costValue") != "600" {
			t.Errorf("expected costValue=600, got %q", q.Get("costValue"))
		}
	})

	isos, err := client.GetIsochrones(context.Background(), IsochronesRequest{
		Location:  paris[0],
		Intervals: []int{600, 1200},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(logs.String(), "only the first interval is used") {
		t.Errorf("expected a warning about dropped intervals, got logs %q", logs.String())
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) {
		t.Errorf("expected warn level, got logs %q", logs.String())
	}

	if len(isos.Contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(isos.Contours))
	}
	iso := isos.Contours[0]
	if iso.Interval != 600 {
		t.Errorf("expected interval 600, got %d", iso.Interval)
	}
	if iso.IntervalType != routing.IntervalTime {
		t.Errorf("expected interval type time, got %q", iso.IntervalType)
	}
	if iso.Center != paris[0] {
		t.Errorf("expected center %v, got %v", paris[0], iso.Center)
	}
	if len(iso.Geometry) != 1 || len(iso.Geometry[0]) != 5 {
		t.Errorf("expected one ring of 5 points, got %v", iso.Geometry)
	}
}

func TestClient_GetIsochrones_SingleIntervalNoWarning(t *testing.T) {
	var logs bytes.Buffer
	client := newTestClient(t, "/isochrone", "isochrone.json", zerolog.New(&logs), nil)

	if _, err := client.GetIsochrones(context.Background(), IsochronesRequest{
		Location:  paris[0],
		Intervals: []int{600},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(logs.String(), "first interval") {
		t.Errorf("unexpected warning: %s", logs.String())
	}
}

func TestParsePoint(t *testing.T) {
	c, err := parsePoint("2.337306, 48.849319")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != paris[0] {
		t.Errorf("expected %v, got %v", paris[0], c)
	}

	for _, bad := range []string{"", "2.3", "a,b"} {
		if _, err := parsePoint(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestClient_MatrixUnsupported(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zerolog.Nop()})
	if _, ok := any(client).(routing.MatrixRouter); ok {
		t.Fatal("IGN must not advertise matrix support")
	}

	svc := routing.NewService(routing.ServiceConfig{Routers: []routing.Router{client}, Logger: zerolog.Nop()})
	_, err := svc.Matrix(context.Background(), ProviderName, routing.MatrixQuery{Locations: paris[:2]})
	if !errors.Is(err, routing.ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestClient_DryRun(t *testing.T) {
	var out bytes.Buffer
	client := NewClient(ClientConfig{BaseURL: "http://ign.invalid", DryRunOutput: &out, Logger: zerolog.Nop()})

	dirs, err := client.GetDirections(context.Background(), DirectionsRequest{Locations: paris[:2], DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dirs.Empty() {
		t.Error("expected empty directions for a dry run")
	}
	if !strings.Contains(out.String(), "GET") || !strings.Contains(out.String(), "/itineraire") {
		t.Errorf("dry run output missing request description: %s", out.String())
	}
}

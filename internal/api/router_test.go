package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/routekit/internal/api"
	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/config"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/routing/providers"
)

// newTestRouter wires the router to a Valhalla client talking to a stub upstream that
// answers every /route call with the fixture route.
func newTestRouter(t *testing.T, rateLimit int) (http.Handler, *[]map[string]any) {
	t.Helper()

	fixture, err := os.ReadFile("testdata/valhalla_route.json")
	require.NoError(t, err)

	var bodies []map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("upstream: decode body: %v", err)
		}
		bodies = append(bodies, body)

		if r.URL.Path != "/route" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	t.Cleanup(upstream.Close)

	svc, registry := providers.NewService(config.ProvidersConfig{
		Valhalla: config.ProviderConfig{Enabled: true, BaseURL: upstream.URL},
		IGN:      config.ProviderConfig{Enabled: true, BaseURL: upstream.URL},
	}, zerolog.Nop())

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    zerolog.Nop(),
		Service:   svc,
		Registry:  registry,
		RateLimit: rateLimit,
	})
	return router, &bodies
}

func TestRouter_HealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 2)
	assert.Equal(t, "ign", status.Providers[0].Provider)
	assert.Equal(t, "valhalla", status.Providers[1].Provider)
}

func TestRouter_ListProviders(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var list models.ProviderList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Providers, 2)
	assert.Equal(t, "valhalla", list.Providers[1].Name)
	assert.Equal(t, []string{"directions", "isochrones", "matrix"}, list.Providers[1].Operations)
}

func TestRouter_Directions(t *testing.T) {
	router, bodies := newTestRouter(t, 0)

	body := `{"locations": [[-73.986764, 40.739727], [-73.998971, 40.744628]], "profile": "auto"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/providers/valhalla/directions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, *bodies, 1)
	assert.Equal(t, "auto", (*bodies)[0]["costing"])

	var dirs routing.Directions
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dirs))
	require.Len(t, dirs.Routes, 1)
	assert.Equal(t, 57, dirs.Routes[0].Duration)
	assert.Equal(t, 150440, dirs.Routes[0].Distance)
	assert.Len(t, dirs.Routes[0].Geometry, 21)
}

func TestRouter_Directions_InvalidCoordinates(t *testing.T) {
	router, bodies := newTestRouter(t, 0)

	body := `{"locations": [[-73.98, 140.7], [-73.99, 40.74]], "profile": "auto"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/providers/valhalla/directions", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Empty(t, *bodies, "invalid input must not reach the provider")
}

func TestRouter_Matrix_Unsupported(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	body := `{"locations": [[2.35, 48.85], [2.29, 48.86]], "profile": "car"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/providers/ign/matrix", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_RequireJSON(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/providers/valhalla/directions", bytes.NewBufferString("locations=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	router, _ := newTestRouter(t, 1)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/providers/valhalla/directions",
			strings.NewReader(`{"locations": [[-73.98, 40.73], [-73.99, 40.74]]}`))
		req.RemoteAddr = "203.0.113.9:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Ops endpoints are not limited.
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.RemoteAddr = "203.0.113.9:4000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers/valhalla/directions", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

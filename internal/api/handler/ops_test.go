package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/routekit/internal/api/handler"
	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/provider/resilience"
)

// newTrippableClient registers a client whose circuit opens on the first failure.
func newTrippableClient(name string, registry *resilience.Registry) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.CircuitBreaker.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 1
	}
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("v1.2.3", "2026-10-01T00:00:00Z", nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.HealthStatusOK, got.Status)
	assert.Equal(t, "v1.2.3", got.Details["version"])
}

func TestOpsHandler_ReadinessCheck_Healthy(t *testing.T) {
	registry := resilience.NewRegistry()
	newTrippableClient("valhalla", registry)

	h := handler.NewOpsHandler("dev", "", registry)
	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsHandler_ReadinessCheck_AllOpen(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newTrippableClient("valhalla", registry)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	h := handler.NewOpsHandler("dev", "", registry)
	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.HealthStatusFail, got.Status)
}

func TestOpsHandler_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	newTrippableClient("valhalla", registry)
	newTrippableClient("ign", registry)
	registry.RecordSuccess("valhalla")
	registry.RecordFailure("ign", errors.New("HTTP 400"))

	h := handler.NewOpsHandler("v2.0.0", "", registry)
	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.HealthStatusOK, got.Status)
	assert.Equal(t, "v2.0.0", got.Version)
	require.Len(t, got.Providers, 2)

	assert.Equal(t, "ign", got.Providers[0].Provider)
	require.NotNil(t, got.Providers[0].Message)
	assert.Equal(t, "HTTP 400", *got.Providers[0].Message)
	assert.NotNil(t, got.Providers[0].LastFailureAt)

	assert.Equal(t, "valhalla", got.Providers[1].Provider)
	assert.NotNil(t, got.Providers[1].LastSuccessAt)
	assert.Equal(t, "closed", got.Providers[1].CircuitState)
}

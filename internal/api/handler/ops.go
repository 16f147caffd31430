// Package handler provides HTTP handlers for the routekit API.
package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/api/response"
	"github.com/breatheroute/routekit/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. registry may be nil, in which case readiness
// does not depend on provider health.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is not ready
// when every provider's circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := overallStatus(providers)

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if status == models.HealthStatusFail {
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - per-provider circuit breaker status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := models.SystemStatus{
		Status:    overallStatus(providers),
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		Providers: providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, health := range all {
		statuses = append(statuses, providerStatus(health))
	}
	slices.SortFunc(statuses, func(a, b models.ProviderStatus) int {
		return strings.Compare(a.Provider, b.Provider)
	})
	return statuses
}

// overallStatus is OK when every provider is healthy, FAIL when none can serve and
// DEGRADED otherwise.
func overallStatus(providers []models.ProviderStatus) models.HealthStatus {
	if len(providers) == 0 {
		return models.HealthStatusOK
	}
	failed, degraded := 0, 0
	for _, p := range providers {
		switch p.Status {
		case models.HealthStatusFail:
			failed++
		case models.HealthStatusDegraded:
			degraded++
		}
	}
	switch {
	case failed == len(providers):
		return models.HealthStatusFail
	case failed > 0 || degraded > 0:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func providerStatus(h *resilience.ProviderHealth) models.ProviderStatus {
	status := models.ProviderStatus{
		Provider:            h.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
		CircuitTrips:        h.Trips,
	}
	switch {
	case h.IsUnhealthy():
		status.Status = models.HealthStatusFail
	case h.IsDegraded():
		status.Status = models.HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ts := models.Timestamp(*h.LastSuccessAt)
		status.LastSuccessAt = &ts
	}
	if h.LastFailureAt != nil {
		ts := models.Timestamp(*h.LastFailureAt)
		status.LastFailureAt = &ts
	}
	if h.LastError != "" {
		msg := h.LastError
		status.Message = &msg
	}
	return status
}

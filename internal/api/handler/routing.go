package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/api/response"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
)

// maxBodyBytes bounds routing request bodies.
const maxBodyBytes = 1 << 20

// RoutingHandler exposes the routing Service over HTTP.
type RoutingHandler struct {
	service  *routing.Service
	registry *resilience.Registry
}

// NewRoutingHandler creates a new RoutingHandler. registry may be nil.
func NewRoutingHandler(service *routing.Service, registry *resilience.Registry) *RoutingHandler {
	return &RoutingHandler{service: service, registry: registry}
}

// ListProviders handles GET /v1/providers.
func (h *RoutingHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	names := h.service.Providers()
	list := models.ProviderList{Providers: make([]models.ProviderInfo, 0, len(names))}
	for _, name := range names {
		info, err := h.providerInfo(name)
		if err != nil {
			// Unregistered between Providers and Capabilities.
			continue
		}
		list.Providers = append(list.Providers, info)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetProvider handles GET /v1/providers/{provider}.
func (h *RoutingHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	info, err := h.providerInfo(chi.URLParam(r, "provider"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, info)
}

// Directions handles POST /v1/providers/{provider}/directions.
func (h *RoutingHandler) Directions(w http.ResponseWriter, r *http.Request) {
	var q routing.DirectionsQuery
	if !decodeQuery(w, r, &q, &q.DryRun) {
		return
	}
	result, err := h.service.Directions(r.Context(), chi.URLParam(r, "provider"), q)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if result == nil {
		result = &routing.Directions{}
	}
	if result.Routes == nil {
		result.Routes = []routing.Direction{}
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Isochrones handles POST /v1/providers/{provider}/isochrones.
func (h *RoutingHandler) Isochrones(w http.ResponseWriter, r *http.Request) {
	var q routing.IsochronesQuery
	if !decodeQuery(w, r, &q, &q.DryRun) {
		return
	}
	result, err := h.service.Isochrones(r.Context(), chi.URLParam(r, "provider"), q)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if result == nil {
		result = &routing.Isochrones{}
	}
	if result.Contours == nil {
		result.Contours = []routing.Isochrone{}
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Matrix handles POST /v1/providers/{provider}/matrix.
func (h *RoutingHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	var q routing.MatrixQuery
	if !decodeQuery(w, r, &q, &q.DryRun) {
		return
	}
	result, err := h.service.Matrix(r.Context(), chi.URLParam(r, "provider"), q)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if result == nil {
		result = &routing.Matrix{}
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *RoutingHandler) providerInfo(name string) (models.ProviderInfo, error) {
	ops, err := h.service.Capabilities(name)
	if err != nil {
		return models.ProviderInfo{}, err
	}
	info := models.ProviderInfo{Name: name, Operations: ops}
	if h.registry != nil {
		if health := h.registry.GetHealth(name); health != nil {
			status := providerStatus(health)
			info.Health = &status
		}
	}
	return info, nil
}

// decodeQuery reads a JSON routing query from the body and writes a 400 on failure.
// Dry runs print to the server's stdout, so they are refused over HTTP.
func decodeQuery(w http.ResponseWriter, r *http.Request, dst any, dryRun *bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is required", nil)
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body too large", nil)
		default:
			response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
		}
		return false
	}
	if *dryRun {
		response.BadRequest(w, r, "dry runs are not available over HTTP", []models.FieldError{
			{Field: "dry_run", Message: "must be false", Code: "UNSUPPORTED"},
		})
		return false
	}
	return true
}

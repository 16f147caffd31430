// Package response provides utilities for HTTP response handling.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/breatheroute/routekit/internal/api/middleware"
	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/routing"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewBadRequest(traceID, detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewNotFound(traceID, detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewInternalError(traceID, detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	Error(w, r, models.NewServiceUnavailable(traceID, detail))
}

// FromError writes the problem response matching a routing error.
//
//	*routing.ArgumentError      400
//	ErrUnknownProvider          404
//	ErrNoRouteFound             422
//	ErrRateLimitExceeded        429
//	ErrUnsupportedOperation     501
//	ErrAPIRejected              502
//	ErrProviderUnavailable      503
//	context deadline            503
//
// Anything else is a 500 whose detail does not leak the error text.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	var argErr *routing.ArgumentError
	if errors.As(err, &argErr) {
		code := "INVALID_ARGUMENT"
		if errors.Is(err, routing.ErrInvalidCoordinates) {
			code = "INVALID_COORDINATES"
		}
		Error(w, r, models.NewBadRequest(traceID, argErr.Error(), []models.FieldError{
			{Field: argErr.Field, Message: argErr.Reason, Code: code},
		}))
		return
	}

	var problem *models.Problem
	switch {
	case errors.Is(err, routing.ErrUnknownProvider):
		problem = models.NewNotFound(traceID, err.Error())
	case errors.Is(err, routing.ErrNoRouteFound):
		problem = models.NewNoRoute(traceID, err.Error())
	case errors.Is(err, routing.ErrRateLimitExceeded):
		problem = models.NewTooManyRequests(traceID, err.Error())
	case errors.Is(err, routing.ErrUnsupportedOperation):
		problem = models.NewNotImplemented(traceID, err.Error())
	case errors.Is(err, routing.ErrAPIRejected):
		problem = models.NewProviderRejected(traceID, err.Error())
	case errors.Is(err, routing.ErrProviderUnavailable), errors.Is(err, context.DeadlineExceeded):
		problem = models.NewServiceUnavailable(traceID, err.Error())
	default:
		problem = models.NewInternalError(traceID, "an unexpected error occurred")
	}
	Error(w, r, problem)
}

package routing

import (
	"errors"
	"fmt"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidArgument indicates a request violated a structural precondition.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAPIRejected indicates the provider answered the request with a 4xx error.
	ErrAPIRejected = errors.New("request rejected by routing provider")
	// ErrUnsupportedOperation indicates the provider does not offer the operation.
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
	// ErrUnknownProvider indicates no provider is registered under the requested name.
	ErrUnknownProvider = errors.New("unknown routing provider")
)

// ArgumentError reports caller input that fails a precondition. It is always returned
// before any request is sent.
type ArgumentError struct {
	Op     string // Operation being built, e.g. "valhalla.isochrones"
	Field  string // Offending input
	Reason string
	Err    error // Optional more specific sentinel
}

// NewArgumentError builds an ArgumentError with a formatted reason.
func NewArgumentError(op, field, format string, args ...any) *ArgumentError {
	return &ArgumentError{Op: op, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return e.Op + ": " + e.Reason
	}
	return e.Op + ": " + e.Field + ": " + e.Reason
}

// Unwrap makes ArgumentError match ErrInvalidArgument and, when set, its Err.
func (e *ArgumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArgument, e.Err}
	}
	return []error{ErrInvalidArgument}
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider   string // Provider that generated the error
	Code       string // Error code from the provider
	Message    string // Human-readable error message
	StatusCode int    // HTTP status, 0 for network failures
	Err        error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// IsAPIError reports whether err is a provider-side rejection of the request (4xx other
// than rate limiting). These are the errors skip-on-error mode turns into empty results.
func IsAPIError(err error) bool {
	var rErr *Error
	if !errors.As(err, &rErr) {
		return false
	}
	return rErr.StatusCode >= 400 && rErr.StatusCode < 500 && rErr.StatusCode != 429
}

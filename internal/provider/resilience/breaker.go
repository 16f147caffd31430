// Package resilience wraps provider HTTP calls in retries with exponential backoff and
// a per-provider circuit breaker, and tracks each provider's health for the ops API.
package resilience

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig tunes a provider's circuit breaker. Zero fields take the
// defaults from DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	// MaxRequests is the number of probe requests let through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically so old failures age out.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// ReadyToTrip decides when the closed breaker opens.
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultCircuitBreakerConfig returns the settings used for routing providers.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the circuit after five consecutive failures, or when at least
// half of ten or more requests in the current interval failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= 5 {
		return true
	}
	if counts.Requests < 10 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

func newBreaker(name string, cfg CircuitBreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	defaults := DefaultCircuitBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = defaults.ReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{ //nolint:bodyclose // type param, not response
		Name:          name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: onChange,
	})
}

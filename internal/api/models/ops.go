package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Version   string           `json:"version,omitempty"`
	Providers []ProviderStatus `json:"providers"`
}

// ProviderStatus reports one routing provider's circuit breaker health.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	CircuitTrips        int          `json:"circuitTrips"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// ProviderInfo describes a configured routing provider and the operations it serves.
type ProviderInfo struct {
	Name       string          `json:"name"`
	Operations []string        `json:"operations"`
	Health     *ProviderStatus `json:"health,omitempty"`
}

// ProviderList is the body of GET /v1/providers.
type ProviderList struct {
	Providers []ProviderInfo `json:"providers"`
}

package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a snapshot of one provider's breaker and call history.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// Trips counts how often the circuit opened since the provider was registered.
	Trips int
	// StateChangedAt is when the circuit last changed state; nil if it never has.
	StateChangedAt *time.Time
}

// IsDegraded reports a half-open circuit that is probing the provider.
func (h *ProviderHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open circuit.
func (h *ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// breakerSource is the part of Client the registry reads.
type breakerSource interface {
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

type providerEntry struct {
	source         breakerSource
	lastSuccessAt  *time.Time
	lastFailureAt  *time.Time
	lastError      string
	trips          int
	stateChangedAt *time.Time
}

// Registry tracks the providers of one routing service. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerEntry
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerEntry),
		now:       time.Now,
	}
}

// Register adds client under name, replacing any previous client and its history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerEntry{source: client}
}

// RecordSuccess notes a successful provider call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(e *providerEntry, now time.Time) {
		e.lastSuccessAt = &now
	})
}

// RecordFailure notes a failed provider call and keeps err's message.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(e *providerEntry, now time.Time) {
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	})
}

func (r *Registry) recordStateChange(name string, to gobreaker.State) {
	r.update(name, func(e *providerEntry, now time.Time) {
		e.stateChangedAt = &now
		if to == gobreaker.StateOpen {
			e.trips++
		}
	})
}

func (r *Registry) update(name string, fn func(e *providerEntry, now time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		fn(e, r.now())
	}
}

// GetHealth returns a snapshot for name, or nil when it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	e, ok := r.providers[name]
	var entry providerEntry
	if ok {
		entry = *e
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return entry.snapshot(name)
}

// GetAllHealth returns a snapshot of every provider, sorted by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	// Breakers report state changes while holding their own lock, so they are read
	// only after the registry lock is released.
	r.mu.RLock()
	entries := make(map[string]providerEntry, len(r.providers))
	for name, e := range r.providers {
		entries[name] = *e
	}
	r.mu.RUnlock()

	health := make([]*ProviderHealth, 0, len(entries))
	for name, e := range entries {
		health = append(health, e.snapshot(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// GetProviderNames returns the registered names in no particular order.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (e providerEntry) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:           name,
		CircuitState:   e.source.CircuitBreakerState(),
		Counts:         e.source.CircuitBreakerCounts(),
		LastSuccessAt:  e.lastSuccessAt,
		LastFailureAt:  e.lastFailureAt,
		LastError:      e.lastError,
		Trips:          e.trips,
		StateChangedAt: e.stateChangedAt,
	}
}

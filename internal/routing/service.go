package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Routers are the providers available at start-up.
	Routers []Router

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service dispatches provider-agnostic queries to named providers.
// It holds no per-request state.
type Service struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	routers map[string]Router
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		logger:  cfg.Logger,
		routers: make(map[string]Router, len(cfg.Routers)),
	}
	for _, r := range cfg.Routers {
		s.Register(r)
	}
	return s
}

// Register adds or replaces a provider.
func (s *Service) Register(r Router) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routers[r.Name()] = r
}

// Providers returns the registered provider names in sorted order.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.routers))
	for name := range s.routers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities returns the operations a provider supports.
func (s *Service) Capabilities(provider string) ([]string, error) {
	r, err := s.router(provider)
	if err != nil {
		return nil, err
	}

	var ops []string
	if _, ok := r.(DirectionsRouter); ok {
		ops = append(ops, "directions")
	}
	if _, ok := r.(IsochronesRouter); ok {
		ops = append(ops, "isochrones")
	}
	if _, ok := r.(MatrixRouter); ok {
		ops = append(ops, "matrix")
	}
	return ops, nil
}

// Directions returns routes between the query's locations.
func (s *Service) Directions(ctx context.Context, provider string, q DirectionsQuery) (*Directions, error) {
	r, err := s.router(provider)
	if err != nil {
		return nil, err
	}
	dr, ok := r.(DirectionsRouter)
	if !ok {
		return nil, unsupported(provider, "directions")
	}
	if err := ValidateLocations("directions", q.Locations, 2); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := dr.Directions(ctx, q)
	s.logResult(provider, "directions", q.Profile, start, err).
		Int("location_count", len(q.Locations)).
		Int("route_count", resp.Len()).
		Msg("directions dispatched")
	return resp, err
}

// Isochrones returns reachability contours around the query's location.
func (s *Service) Isochrones(ctx context.Context, provider string, q IsochronesQuery) (*Isochrones, error) {
	r, err := s.router(provider)
	if err != nil {
		return nil, err
	}
	ir, ok := r.(IsochronesRouter)
	if !ok {
		return nil, unsupported(provider, "isochrones")
	}
	if err := ValidateCoordinate("isochrones", "location", q.Location); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := ir.Isochrones(ctx, q)
	ev := s.logResult(provider, "isochrones", q.Profile, start, err).
		Ints("intervals", q.Intervals)
	if resp != nil {
		ev = ev.Int("contour_count", len(resp.Contours))
	}
	ev.Msg("isochrones dispatched")
	return resp, err
}

// Matrix returns the duration and distance matrix between the query's locations.
func (s *Service) Matrix(ctx context.Context, provider string, q MatrixQuery) (*Matrix, error) {
	r, err := s.router(provider)
	if err != nil {
		return nil, err
	}
	mr, ok := r.(MatrixRouter)
	if !ok {
		return nil, unsupported(provider, "matrix")
	}
	if err := ValidateLocations("matrix", q.Locations, 1); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := mr.Matrix(ctx, q)
	ev := s.logResult(provider, "matrix", q.Profile, start, err).
		Int("location_count", len(q.Locations))
	if resp != nil {
		rows, cols := resp.Shape()
		ev = ev.Int("rows", rows).Int("cols", cols)
	}
	ev.Msg("matrix dispatched")
	return resp, err
}

func (s *Service) router(provider string) (Router, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return r, nil
}

// logResult starts a log event for a finished dispatch at a level matching its outcome.
func (s *Service) logResult(provider, op, profile string, start time.Time, err error) *zerolog.Event {
	var ev *zerolog.Event
	var argErr *ArgumentError
	switch {
	case err == nil:
		ev = s.logger.Debug()
	case errors.As(err, &argErr):
		ev = s.logger.Info().Err(err)
	default:
		ev = s.logger.Error().Err(err)
	}
	return ev.
		Str("provider", provider).
		Str("operation", op).
		Str("profile", profile).
		Dur("duration", time.Since(start))
}

func unsupported(provider, op string) error {
	return &Error{
		Provider: provider,
		Code:     "UNSUPPORTED",
		Message:  fmt.Sprintf("%s does not support %s", provider, op),
		Err:      ErrUnsupportedOperation,
	}
}

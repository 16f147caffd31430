package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// mockRouter is a mock provider supporting directions and isochrones, but not matrix.
type mockRouter struct {
	name       string
	directions *Directions
	isochrones *Isochrones
	err        error
	callCount  atomic.Int32
}

func (m *mockRouter) Name() string {
	return m.name
}

func (m *mockRouter) Directions(_ context.Context, _ DirectionsQuery) (*Directions, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.directions, nil
}

func (m *mockRouter) Isochrones(_ context.Context, _ IsochronesQuery) (*Isochrones, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.isochrones, nil
}

// matrixOnly supports matrix only.
type matrixOnly struct{}

func (matrixOnly) Name() string { return "matrix-only" }

func (matrixOnly) Matrix(_ context.Context, q MatrixQuery) (*Matrix, error) {
	v := 1.0
	return &Matrix{Durations: [][]*float64{{&v}}}, nil
}

var (
	amsterdam = Coordinate{Lat: 52.3676, Lon: 4.9041}
	utrecht   = Coordinate{Lat: 52.0907, Lon: 5.1214}
)

func TestService_Directions(t *testing.T) {
	router := &mockRouter{
		name: "test-provider",
		directions: &Directions{Routes: []Direction{
			{Geometry: []Coordinate{amsterdam, utrecht}, Distance: 12345, Duration: 2456},
		}},
	}

	service := NewService(ServiceConfig{Routers: []Router{router}, Logger: zerolog.Nop()})

	resp, err := service.Directions(context.Background(), "test-provider", DirectionsQuery{
		Locations: []Coordinate{amsterdam, utrecht},
		Profile:   "bicycle",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if router.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", router.callCount.Load())
	}
	if resp.Len() != 1 {
		t.Fatalf("expected 1 route, got %d", resp.Len())
	}
	if resp.Primary().Distance != 12345 {
		t.Errorf("expected distance 12345, got %d", resp.Primary().Distance)
	}
}

func TestService_Directions_TooFewLocations(t *testing.T) {
	router := &mockRouter{name: "test-provider"}
	service := NewService(ServiceConfig{Routers: []Router{router}})

	_, err := service.Directions(context.Background(), "test-provider", DirectionsQuery{
		Locations: []Coordinate{amsterdam},
	})

	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if router.callCount.Load() != 0 {
		t.Errorf("provider must not be called, got %d calls", router.callCount.Load())
	}
}

func TestService_Directions_InvalidCoordinates(t *testing.T) {
	router := &mockRouter{name: "test-provider"}
	service := NewService(ServiceConfig{Routers: []Router{router}})

	_, err := service.Directions(context.Background(), "test-provider", DirectionsQuery{
		Locations: []Coordinate{amsterdam, {Lat: 91, Lon: 5}},
	})

	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected *ArgumentError, got %T", err)
	}
	if argErr.Field != "locations[1]" {
		t.Errorf("expected field locations[1], got %s", argErr.Field)
	}
}

func TestService_UnknownProvider(t *testing.T) {
	service := NewService(ServiceConfig{})

	_, err := service.Directions(context.Background(), "nope", DirectionsQuery{
		Locations: []Coordinate{amsterdam, utrecht},
	})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestService_UnsupportedOperation(t *testing.T) {
	service := NewService(ServiceConfig{Routers: []Router{&mockRouter{name: "test-provider"}}})

	_, err := service.Matrix(context.Background(), "test-provider", MatrixQuery{
		Locations: []Coordinate{amsterdam, utrecht},
	})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}

	_, err = service.Isochrones(context.Background(), "matrix-only", IsochronesQuery{})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider before registration, got %v", err)
	}

	service.Register(matrixOnly{})
	_, err = service.Isochrones(context.Background(), "matrix-only", IsochronesQuery{Location: amsterdam})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestService_Matrix(t *testing.T) {
	service := NewService(ServiceConfig{Routers: []Router{matrixOnly{}}})

	m, err := service.Matrix(context.Background(), "matrix-only", MatrixQuery{Locations: []Coordinate{amsterdam}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := m.Duration(0, 0); !ok || v != 1 {
		t.Errorf("expected duration 1, got %v (%v)", v, ok)
	}
}

func TestService_ProviderError(t *testing.T) {
	providerErr := &Error{
		Provider: "test-provider",
		Code:     "SERVER_503",
		Message:  "routing provider is temporarily unavailable",
		Err:      ErrProviderUnavailable,
	}
	router := &mockRouter{name: "test-provider", err: providerErr}
	service := NewService(ServiceConfig{Routers: []Router{router}})

	_, err := service.Isochrones(context.Background(), "test-provider", IsochronesQuery{
		Location:  amsterdam,
		Intervals: []int{600},
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestService_ProvidersAndCapabilities(t *testing.T) {
	service := NewService(ServiceConfig{Routers: []Router{&mockRouter{name: "b"}, matrixOnly{}}})

	names := service.Providers()
	if len(names) != 2 || names[0] != "b" || names[1] != "matrix-only" {
		t.Errorf("expected sorted [b matrix-only], got %v", names)
	}

	ops, err := service.Capabilities("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 2 || ops[0] != "directions" || ops[1] != "isochrones" {
		t.Errorf("expected [directions isochrones], got %v", ops)
	}

	if _, err := service.Capabilities("zzz"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestService_ConcurrentDispatch(t *testing.T) {
	router := &mockRouter{
		name:       "test-provider",
		directions: &Directions{Routes: []Direction{{Distance: 1}}},
	}
	service := NewService(ServiceConfig{Routers: []Router{router}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = service.Directions(context.Background(), "test-provider", DirectionsQuery{
				Locations: []Coordinate{amsterdam, utrecht},
			})
		}()
	}
	wg.Wait()

	if router.callCount.Load() != 10 {
		t.Errorf("expected 10 provider calls, got %d", router.callCount.Load())
	}
}

// Package providers builds the configured routing adapters and registers them with a
// routing Service.
package providers

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/config"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
	"github.com/breatheroute/routekit/internal/routing/ign"
	"github.com/breatheroute/routekit/internal/routing/openrouteservice"
	"github.com/breatheroute/routekit/internal/routing/valhalla"
)

// Option customizes the clients built by NewService.
type Option func(*options)

type options struct {
	dryRunOutput io.Writer
	skipAPIError bool
}

// WithDryRunOutput sends every client's dry-run request descriptions to w.
func WithDryRunOutput(w io.Writer) Option {
	return func(o *options) { o.dryRunOutput = w }
}

// WithSkipAPIError turns provider rejections into empty results for every client,
// whatever the per-provider setting.
func WithSkipAPIError() Option {
	return func(o *options) { o.skipAPIError = true }
}

// NewService builds every enabled provider. All providers share the returned registry,
// which reports their circuit breaker health.
func NewService(cfg config.ProvidersConfig, log zerolog.Logger, opts ...Option) (*routing.Service, *resilience.Registry) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	registry := resilience.NewRegistry()
	var routers []routing.Router

	if p := cfg.Valhalla; p.Enabled {
		var headers map[string]string
		if p.APIKey != "" {
			headers = map[string]string{"Authorization": p.APIKey}
		}
		routers = append(routers, valhalla.NewClient(valhalla.ClientConfig{
			BaseURL:             p.BaseURL,
			Headers:             headers,
			UserAgent:           p.UserAgent,
			Timeout:             p.Timeout,
			RetryTimeout:        p.RetryTimeout,
			RetryOverQueryLimit: p.RetryOverQueryLimit,
			SkipAPIError:        p.SkipAPIError || o.skipAPIError,
			Registry:            registry,
			DryRunOutput:        o.dryRunOutput,
			Logger:              log,
		}))
	}

	if p := cfg.OpenRouteService; p.Enabled {
		if p.APIKey == "" && p.BaseURL == "" {
			log.Warn().Msg("openrouteservice enabled without an API key, the public API will reject requests")
		}
		routers = append(routers, openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:              p.APIKey,
			BaseURL:             p.BaseURL,
			UserAgent:           p.UserAgent,
			Timeout:             p.Timeout,
			RetryTimeout:        p.RetryTimeout,
			RetryOverQueryLimit: p.RetryOverQueryLimit,
			SkipAPIError:        p.SkipAPIError || o.skipAPIError,
			Registry:            registry,
			DryRunOutput:        o.dryRunOutput,
			Logger:              log,
		}))
	}

	if p := cfg.IGN; p.Enabled {
		routers = append(routers, ign.NewClient(ign.ClientConfig{
			BaseURL:             p.BaseURL,
			UserAgent:           p.UserAgent,
			Timeout:             p.Timeout,
			RetryTimeout:        p.RetryTimeout,
			RetryOverQueryLimit: p.RetryOverQueryLimit,
			SkipAPIError:        p.SkipAPIError || o.skipAPIError,
			Registry:            registry,
			DryRunOutput:        o.dryRunOutput,
			Logger:              log,
		}))
	}

	for _, r := range routers {
		log.Info().Str("provider", r.Name()).Msg("routing provider configured")
	}

	return routing.NewService(routing.ServiceConfig{
		Routers: routers,
		Logger:  log,
	}), registry
}

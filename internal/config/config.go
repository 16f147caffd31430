// Package config loads routekit settings from an optional YAML file overlaid by
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
	// RateLimit is the number of requests allowed per client IP per minute.
	RateLimit int `yaml:"rate_limit"`
	// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
	RequireTLS bool `yaml:"require_tls"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// SampleRatio is the fraction of root traces recorded; 0 records all of them.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ProviderConfig holds the settings shared by every routing provider.
type ProviderConfig struct {
	Enabled             bool          `yaml:"enabled"`
	BaseURL             string        `yaml:"base_url"`
	APIKey              string        `yaml:"api_key"`
	UserAgent           string        `yaml:"user_agent"`
	Timeout             time.Duration `yaml:"timeout"`
	RetryTimeout        time.Duration `yaml:"retry_timeout"`
	RetryOverQueryLimit bool          `yaml:"retry_over_query_limit"`
	SkipAPIError        bool          `yaml:"skip_api_error"`
}

// ProvidersConfig configures each routing provider.
type ProvidersConfig struct {
	Valhalla         ProviderConfig `yaml:"valhalla"`
	OpenRouteService ProviderConfig `yaml:"openrouteservice"`
	IGN              ProviderConfig `yaml:"ign"`
}

// Default returns the configuration used when nothing is set. OpenRouteService is
// disabled until an API key is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:      "8080",
			Env:       "development",
			RateLimit: 120,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
		},
		Providers: ProvidersConfig{
			Valhalla: ProviderConfig{Enabled: true},
			IGN:      ProviderConfig{Enabled: true},
		},
	}
}

// Load reads path, when set, over the defaults and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}

	for name, p := range c.Providers.byName() {
		if p.Timeout < 0 || p.RetryTimeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s: timeouts must not be negative", name))
		}
	}
	if len(c.Providers.Enabled()) == 0 {
		errs = append(errs, errors.New("at least one provider must be enabled"))
	}
	return errors.Join(errs...)
}

// Enabled returns the names of the enabled providers.
func (p ProvidersConfig) Enabled() []string {
	var names []string
	for _, name := range []string{"ign", "openrouteservice", "valhalla"} {
		if p.byName()[name].Enabled {
			names = append(names, name)
		}
	}
	return names
}

func (p ProvidersConfig) byName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"valhalla":         p.Valhalla,
		"openrouteservice": p.OpenRouteService,
		"ign":              p.IGN,
	}
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnvOrDefault("APP_PORT", c.Server.Port)
	c.Server.Env = getEnvOrDefault("APP_ENV", c.Server.Env)
	c.Telemetry.OTLPEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)

	var err error
	if c.Server.RateLimit, err = getEnvInt("APP_RATE_LIMIT", c.Server.RateLimit); err != nil {
		return err
	}
	if c.Server.RequireTLS, err = getEnvBool("REQUIRE_TLS", c.Server.RequireTLS); err != nil {
		return err
	}
	if c.Telemetry.Enabled, err = getEnvBool("OTEL_ENABLED", c.Telemetry.Enabled); err != nil {
		return err
	}

	if err := c.Providers.Valhalla.applyEnv("VALHALLA"); err != nil {
		return err
	}
	// A key alone is enough to turn OpenRouteService on.
	if os.Getenv("ORS_API_KEY") != "" {
		c.Providers.OpenRouteService.Enabled = true
	}
	if err := c.Providers.OpenRouteService.applyEnv("ORS"); err != nil {
		return err
	}
	return c.Providers.IGN.applyEnv("IGN")
}

func (p *ProviderConfig) applyEnv(prefix string) error {
	p.BaseURL = getEnvOrDefault(prefix+"_BASE_URL", p.BaseURL)
	p.APIKey = getEnvOrDefault(prefix+"_API_KEY", p.APIKey)
	p.UserAgent = getEnvOrDefault(prefix+"_USER_AGENT", p.UserAgent)

	var err error
	if p.Enabled, err = getEnvBool(prefix+"_ENABLED", p.Enabled); err != nil {
		return err
	}
	if p.Timeout, err = getEnvDuration(prefix+"_TIMEOUT", p.Timeout); err != nil {
		return err
	}
	if p.RetryTimeout, err = getEnvDuration(prefix+"_RETRY_TIMEOUT", p.RetryTimeout); err != nil {
		return err
	}
	if p.RetryOverQueryLimit, err = getEnvBool(prefix+"_RETRY_OVER_QUERY_LIMIT", p.RetryOverQueryLimit); err != nil {
		return err
	}
	if p.SkipAPIError, err = getEnvBool(prefix+"_SKIP_API_ERROR", p.SkipAPIError); err != nil {
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

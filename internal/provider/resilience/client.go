package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the provider while its circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// maxRetryAfter caps how long a provider's Retry-After header can stall one retry.
const maxRetryAfter = time.Minute

// ClientConfig configures a Client for one routing provider.
type ClientConfig struct {
	// Name is the provider name used for the breaker, logs and the registry.
	Name string

	// Timeout bounds each attempt. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default: 3.
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff.
	// Defaults: 100ms and 5 seconds.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxElapsedTime bounds the total time spent retrying one request; 0 leaves only
	// MaxRetries as the bound.
	MaxElapsedTime time.Duration

	// RetryOverQueryLimit retries HTTP 429 responses, honouring Retry-After, instead of
	// handing them straight back.
	RetryOverQueryLimit bool

	// CircuitBreaker overrides DefaultCircuitBreakerConfig when set.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, registers the client under Name and receives its breaker
	// state changes.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for the named provider.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig()
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client is an HTTP client for one provider. Network errors and 5xx responses are
// retried and counted by the breaker; 4xx responses are returned as they are.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
	log        zerolog.Logger
}

// NewClient creates a client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	log := cfg.Logger.With().Str("provider", cfg.Name).Logger()
	registry := cfg.Registry
	onChange := func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("provider circuit breaker changed state")
		if registry != nil {
			registry.recordStateChange(name, to)
		}
	}

	var cbConfig CircuitBreakerConfig
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(cfg.Name, cbConfig, onChange),
		config:     cfg,
		log:        log,
	}

	if registry != nil {
		registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do sends req until it succeeds, fails permanently, or the retry budget runs out. The
// request context bounds the whole exchange. When retries run out on a 5xx or 429, the
// last response is returned with a nil error so the caller can read the provider's
// error body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	hinted := &retryAfterBackOff{BackOff: c.newBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, c.config.MaxRetries), ctx)

	var last *http.Response
	attempt := 0

	operation := func() error {
		attempt++
		if last != nil {
			last.Body.Close()
			last = nil
		}

		clone, err := cloneRequest(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by the caller or the next attempt
			r, err := c.httpClient.Do(clone)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &StatusError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s: %w", c.config.Name, ErrCircuitOpen))
		}
		last = resp
		if err != nil {
			return err
		}

		// Over query limit is the provider throttling us, not failing; the breaker
		// already counted it as a success.
		if resp.StatusCode == http.StatusTooManyRequests && c.config.RetryOverQueryLimit {
			wait := retryAfter(resp.Header.Get("Retry-After"), time.Now())
			hinted.hint = wait
			return &StatusError{StatusCode: resp.StatusCode, RetryAfter: wait}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying provider request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = c.config.MaxElapsedTime
	bo.Reset()
	return bo
}

// CircuitBreakerState returns the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker's counts for the current interval.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// cloneRequest copies req for one attempt, replaying the body when there is one.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed: GetBody is nil")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// StatusError is a provider response that was worth retrying: a 5xx, or a 429 when
// over-query-limit retries are on.
type StatusError struct {
	StatusCode int
	// RetryAfter is the wait the provider asked for, if any.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("provider responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.RetryAfter > 0 {
		msg += ", retry after " + e.RetryAfter.String()
	}
	return msg
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	hint := b.hint
	b.hint = 0
	if next == backoff.Stop || hint <= next {
		return next
	}
	return hint
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	var wait time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		wait = at.Sub(now)
	}
	return min(max(wait, 0), maxRetryAfter)
}

package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without contacting the upstream while the breaker is open
	// or while its half-open probes are in flight.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig configures a Client. Zero values pick the defaults noted per field.
type ClientConfig struct {
	// Name labels the breaker, the registry entry and log lines.
	Name string

	// Timeout bounds a single attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// Attempts is the total number of tries per request, the first included.
	// Default: 1
	Attempts uint64

	// Backoff spacing between attempts.
	// Default: 100ms doubling up to 5 seconds
	FirstBackoff time.Duration
	MaxBackoff   time.Duration

	Breaker  BreakerConfig
	Registry *Registry
	Logger   zerolog.Logger

	// Transport replaces http.DefaultTransport, mainly in tests.
	Transport http.RoundTripper
}

// Client sends HTTP requests through a circuit breaker. 5xx responses and transport
// errors count as failures; any other status is the caller's business.
type Client struct {
	name     string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry
	attempts uint64
	first    time.Duration
	max      time.Duration
}

// NewClient builds a client and registers it with cfg.Registry when one is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.FirstBackoff == 0 {
		cfg.FirstBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	logger := cfg.Logger.With().Str("upstream", cfg.Name).Logger()
	onChange := func(_ string, from, to gobreaker.State) {
		ev := logger.Warn()
		if to == gobreaker.StateClosed {
			ev = logger.Info()
		}
		ev.Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}

	c := &Client{
		name:     cfg.Name,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		cb:       newBreaker[*http.Response](cfg.Name, cfg.Breaker, onChange), //nolint:bodyclose // type parameter
		registry: cfg.Registry,
		attempts: cfg.Attempts,
		first:    cfg.FirstBackoff,
		max:      cfg.MaxBackoff,
	}
	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string { return c.name }

// Do sends req using its own context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transport errors and 5xx responses up to the
// configured number of attempts. When every attempt ends in a 5xx the last response is
// returned with a nil error so the caller can map the status itself.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil && last != resp {
			last.Body.Close()
		}
		last = resp
	}

	attempt := func() error {
		resp, err := c.cb.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			resp, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp, &ServerError{StatusCode: resp.StatusCode}
			}
			return resp, nil
		})
		if resp != nil {
			keep(resp)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(c.policy(), c.attempts-1), ctx))
	if c.registry != nil {
		c.registry.Observe(c.name, err)
	}

	var serverErr *ServerError
	switch {
	case err == nil:
		return last, nil
	case errors.As(err, &serverErr) && last != nil:
		return last, nil
	}
	if last != nil {
		last.Body.Close()
	}
	return nil, err
}

func (c *Client) policy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.first
	bo.MaxInterval = c.max
	bo.MaxElapsedTime = 0
	return bo
}

// ServerError reports a 5xx response from the upstream.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "upstream returned " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.cb.State()
}

// CircuitBreakerCounts returns the breaker counters for the current window.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.cb.Counts()
}

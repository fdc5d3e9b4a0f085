// Package hstc provides a client for the Hyperspace Tunneling Corp gate network API.
package hstc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/network"
	"github.com/starseeker/starseeker/internal/provider/resilience"
)

const (
	// ProviderName identifies the gate network API.
	ProviderName = "hstc"

	// DefaultBaseURL is the gate network API base URL.
	DefaultBaseURL = "https://hstc-api.testing.keyholding.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	apiKeyHeader = "x-api-key"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the gate network client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent on every request in the x-api-key header.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with retries disabled.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// AllRoutesSupported enables the ?all=true variant of the route endpoint.
	AllRoutesSupported bool

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a gate network API client. It neither retries nor caches.
type Client struct {
	apiKey             string
	baseURL            string
	httpClient         HTTPDoer
	allRoutesSupported bool
	logger             zerolog.Logger
}

var _ network.Gateway = (*Client)(nil)

// NewClient creates a new gate network client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  timeout,
			Breaker:  resilience.DefaultBreakerConfig(),
			Registry: cfg.Registry,
			Logger:   cfg.Logger,
		})
	}

	return &Client{
		apiKey:             cfg.APIKey,
		baseURL:            baseURL,
		httpClient:         httpClient,
		allRoutesSupported: cfg.AllRoutesSupported,
		logger:             cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ListGates returns every gate in the network.
func (c *Client) ListGates(ctx context.Context) ([]network.Gate, error) {
	var gates []network.Gate
	if err := c.get(ctx, "/gates", nil, network.ErrGateNotFound, &gates); err != nil {
		return nil, err
	}

	c.logger.Debug().Int("gate_count", len(gates)).Msg("received gates")
	return gates, nil
}

// GetGate returns the details of a single gate.
func (c *Client) GetGate(ctx context.Context, code string) (*network.Gate, error) {
	if err := network.ValidateGateCode("code", code); err != nil {
		return nil, err
	}

	var gate network.Gate
	path := "/gates/" + url.PathEscape(code)
	if err := c.get(ctx, path, nil, network.ErrGateNotFound, &gate); err != nil {
		return nil, err
	}
	return &gate, nil
}

// FindRoute returns the cheapest route the server knows between two gates.
func (c *Client) FindRoute(ctx context.Context, from, to string) (*network.Route, error) {
	if err := network.ValidateRouteQuery(from, to); err != nil {
		return nil, err
	}

	var route network.Route
	if err := c.get(ctx, routePath(from, to), nil, network.ErrNoRouteFound, &route); err != nil {
		return nil, err
	}
	return &route, nil
}

// FindAllRoutes returns every route between two gates. Without the all-routes capability
// the single server-chosen route is returned as a one-element list.
func (c *Client) FindAllRoutes(ctx context.Context, from, to string) ([]network.Route, error) {
	if !c.allRoutesSupported {
		route, err := c.FindRoute(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return []network.Route{*route}, nil
	}

	if err := network.ValidateRouteQuery(from, to); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	query := url.Values{"all": []string{"true"}}
	if err := c.get(ctx, routePath(from, to), query, network.ErrNoRouteFound, &raw); err != nil {
		return nil, err
	}

	routes, err := decodeRoutes(raw)
	if err != nil {
		return nil, &network.Error{
			Provider: ProviderName,
			Code:     "INVALID_RESPONSE",
			Message:  "failed to decode routes",
			Err:      fmt.Errorf("%w: %w", network.ErrInvalidResponse, err),
		}
	}

	c.logger.Debug().
		Str("from", from).
		Str("to", to).
		Int("route_count", len(routes)).
		Msg("received routes")

	return routes, nil
}

// GetTransportCost prices a journey of the given distance.
func (c *Client) GetTransportCost(ctx context.Context, q network.CostQuery) (*network.JourneyCost, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	path := "/transport/" + strconv.FormatFloat(q.Distance, 'f', -1, 64)
	query := url.Values{
		"passengers": []string{strconv.Itoa(q.Passengers)},
		"parking":    []string{strconv.Itoa(q.ParkingDays)},
	}

	var cost network.JourneyCost
	if err := c.get(ctx, path, query, network.ErrNoRouteFound, &cost); err != nil {
		return nil, err
	}
	return &cost, nil
}

func routePath(from, to string) string {
	return "/gates/" + url.PathEscape(from) + "/to/" + url.PathEscape(to)
}

// decodeRoutes accepts either a JSON array of routes or a single route object.
func decodeRoutes(raw json.RawMessage) ([]network.Route, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var routes []network.Route
		if err := json.Unmarshal(trimmed, &routes); err != nil {
			return nil, err
		}
		return routes, nil
	}

	var route network.Route
	if err := json.Unmarshal(trimmed, &route); err != nil {
		return nil, err
	}
	return []network.Route{route}, nil
}

// get issues a GET and decodes a 200 response into out. notFound is the sentinel used
// for a 404 on this endpoint.
func (c *Client) get(ctx context.Context, path string, query url.Values, notFound error, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		// Encode sorts keys; the API accepts any order.
		reqURL += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Msg("requesting gate network API")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode, body, notFound)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &network.Error{
			Provider:   ProviderName,
			Code:       "INVALID_RESPONSE",
			Message:    "failed to decode gate network response",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %w", network.ErrInvalidResponse, err),
		}
	}
	return nil
}

// transportError maps a failure to obtain a response.
func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return &network.Error{
			Provider: ProviderName,
			Code:     "TIMEOUT",
			Message:  "gate network API did not respond in time",
			Err:      network.ErrTimeout,
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	code := "REQUEST_FAILED"
	if errors.Is(err, resilience.ErrCircuitOpen) {
		code = "CIRCUIT_OPEN"
	}
	c.logger.Warn().Err(err).Msg("gate network request failed")

	return &network.Error{
		Provider: ProviderName,
		Code:     code,
		Message:  "failed to reach gate network API",
		Err:      network.ErrUnavailable,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// apiErrorResponse is the error body the API returns when it has one.
type apiErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// handleErrorResponse maps API error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte, notFound error) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	detail := apiErr.Message
	if detail == "" {
		detail = apiErr.Error
	}

	e := &network.Error{
		Provider:   ProviderName,
		StatusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Code = "UNAUTHORIZED"
		e.Message = "API key rejected - check API key configuration"
		e.Err = network.ErrUnauthorized
	case statusCode == http.StatusNotFound:
		e.Code = "NOT_FOUND"
		e.Message = notFound.Error()
		e.Err = notFound
	case statusCode == http.StatusTooManyRequests:
		e.Code = "RATE_LIMIT"
		e.Message = "API rate limit exceeded, please try again later"
		e.Err = network.ErrRateLimited
	case statusCode >= 500:
		e.Code = fmt.Sprintf("HTTP_%d", statusCode)
		e.Message = fmt.Sprintf("gate network API returned status %d", statusCode)
		e.Err = network.ErrUnavailable
	default:
		e.Code = fmt.Sprintf("HTTP_%d", statusCode)
		e.Message = fmt.Sprintf("gate network API returned status %d", statusCode)
		e.Err = network.ErrInvalidResponse
	}

	if detail != "" {
		e.Message += ": " + detail
	}

	c.logger.Debug().
		Int("status", statusCode).
		Str("code", e.Code).
		Msg("gate network API error")

	return e
}

package hstc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/network"
	"github.com/starseeker/starseeker/internal/provider/resilience"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	body, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err, "failed to load test fixture")
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...func(*ClientConfig)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

func TestClient_ListGates(t *testing.T) {
	body := loadFixture(t, "gates.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/gates", r.URL.Path)
		assert.Equal(t, "mock123", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	gates, err := client.ListGates(context.Background())
	require.NoError(t, err)
	require.Len(t, gates, 3)
	assert.Equal(t, "SOL", gates[0].Code)
	assert.Equal(t, "Sol", gates[0].Name)
	require.NotNil(t, gates[0].CreatedAt)
	assert.Equal(t, int64(1704067200000), *gates[0].CreatedAt)
}

func TestClient_GetGate(t *testing.T) {
	body := loadFixture(t, "gate_sol.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gates/SOL", r.URL.Path)
		_, _ = w.Write(body)
	})

	gate, err := client.GetGate(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, "SOL", gate.Code)
	require.Len(t, gate.Links, 2)

	cost, err := gate.Links[1].Cost()
	require.NoError(t, err)
	assert.InDelta(t, 100.5, cost, 0.0001)
	require.NotNil(t, gate.Coordinates)
}

func TestClient_GetGate_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Gate XXX not found"}`))
	})

	_, err := client.GetGate(context.Background(), "XXX")
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrGateNotFound)

	var gwErr *network.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, ProviderName, gwErr.Provider)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.Contains(t, gwErr.Message, "Gate XXX not found")
	assert.False(t, gwErr.IsRetryable())
}

func TestClient_FindRoute(t *testing.T) {
	body := loadFixture(t, "route_sol_sir.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gates/SOL/to/SIR", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write(body)
	})

	route, err := client.FindRoute(context.Background(), "SOL", "SIR")
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL", "PRX", "SIR"}, route.Route)
	assert.InDelta(t, 42.0, route.TotalCost, 0.0001)
	assert.Equal(t, "SOL-SIR-42-SOL-PRX-SIR", route.ID())
}

func TestClient_FindAllRoutes_Supported(t *testing.T) {
	body := loadFixture(t, "routes_sol_sir_all.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gates/SOL/to/SIR", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		_, _ = w.Write(body)
	}, func(cfg *ClientConfig) { cfg.AllRoutesSupported = true })

	routes, err := client.FindAllRoutes(context.Background(), "SOL", "SIR")
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.NotEqual(t, routes[0].ID(), routes[1].ID())
}

func TestClient_FindAllRoutes_SingleObject(t *testing.T) {
	body := loadFixture(t, "route_sol_sir.json")

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}, func(cfg *ClientConfig) { cfg.AllRoutesSupported = true })

	routes, err := client.FindAllRoutes(context.Background(), "SOL", "SIR")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "SIR", routes[0].To.Code)
}

func TestClient_FindAllRoutes_Unsupported(t *testing.T) {
	body := loadFixture(t, "route_sol_sir.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("all"), "capability disabled must not send all=true")
		_, _ = w.Write(body)
	})

	routes, err := client.FindAllRoutes(context.Background(), "SOL", "SIR")
	require.NoError(t, err)
	require.Len(t, routes, 1)
}

func TestClient_FindAllRoutes_ErrorNotMasked(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *ClientConfig) { cfg.AllRoutesSupported = true })

	_, err := client.FindAllRoutes(context.Background(), "SOL", "SIR")
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "failure must not trigger a fallback request")
}

func TestClient_GetTransportCost(t *testing.T) {
	body := loadFixture(t, "transport_100.json")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transport/100", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("passengers"))
		assert.Equal(t, "5", r.URL.Query().Get("parking"))
		_, _ = w.Write(body)
	})

	cost, err := client.GetTransportCost(context.Background(), network.CostQuery{
		Distance:    100,
		Passengers:  3,
		ParkingDays: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Personal Transport", cost.RecommendedTransport.Name)
	assert.InDelta(t, 0.3, cost.RecommendedTransport.RatePerAU, 0.0001)
	assert.InDelta(t, 55.0, cost.Total(), 0.0001)
	assert.Equal(t, "HU", cost.Currency)
}

func TestClient_GetTransportCost_DefaultParking(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("parking"))
		_, _ = w.Write(loadFixture(t, "transport_100.json"))
	})

	_, err := client.GetTransportCost(context.Background(), network.CostQuery{Distance: 2.5, Passengers: 1})
	require.NoError(t, err)
}

func TestClient_ValidationBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name string
		call func() error
	}{
		{"negative distance", func() error {
			_, err := client.GetTransportCost(context.Background(), network.CostQuery{Distance: -10, Passengers: 1})
			return err
		}},
		{"zero passengers", func() error {
			_, err := client.GetTransportCost(context.Background(), network.CostQuery{Distance: 10})
			return err
		}},
		{"same endpoints", func() error {
			_, err := client.FindRoute(context.Background(), "SOL", "SOL")
			return err
		}},
		{"missing endpoint", func() error {
			_, err := client.FindAllRoutes(context.Background(), "", "SIR")
			return err
		}},
		{"empty gate code", func() error {
			_, err := client.GetGate(context.Background(), " ")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, network.ErrValidation)
		})
	}

	assert.Equal(t, int32(0), calls.Load(), "validation failures must not reach the network")
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, network.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, network.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, network.ErrRateLimited, true},
		{"server error", http.StatusInternalServerError, network.ErrUnavailable, true},
		{"bad request", http.StatusBadRequest, network.ErrInvalidResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.ListGates(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.retryable, network.IsRetryable(err))
		})
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.ListGates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrInvalidResponse)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	_, err := client.ListGates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrTimeout)
	assert.True(t, network.IsRetryable(err))
}

func TestClient_DefaultsToResilientClient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	_, err := client.ListGates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "gateway must not retry")

	health, ok := registry.Health(ProviderName)
	require.True(t, ok)
	assert.False(t, health.LastFailureAt.IsZero())
	assert.Equal(t, 1, health.ConsecutiveFailures)
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zerolog.Nop()})
	assert.Equal(t, "hstc", client.Name())
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}

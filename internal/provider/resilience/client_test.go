package resilience_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/provider/resilience"
)

// gateAPI answers with the statuses in order, repeating the last one.
func gateAPI(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
		_, _ = io.WriteString(w, `{"code":"SOL"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, c *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url+"/gates/SOL", http.NoBody)
	require.NoError(t, err)
	return c.Do(req)
}

func fastClient(name string, attempts uint64, reg *resilience.Registry) *resilience.Client {
	return resilience.NewClient(resilience.ClientConfig{
		Name:         name,
		Attempts:     attempts,
		FirstBackoff: time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
		Registry:     reg,
		Logger:       zerolog.Nop(),
	})
}

func TestClient_PassesThroughSuccess(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusOK)
	reg := resilience.NewRegistry()
	client := fastClient("hstc", 0, reg)

	resp, err := get(t, client, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"code":"SOL"}`, string(body))
	assert.Equal(t, int32(1), calls.Load())

	h, ok := reg.Health("hstc")
	require.True(t, ok)
	assert.Equal(t, int64(1), h.Successes)
	assert.Equal(t, resilience.LevelHealthy, h.Level())
}

func TestClient_SingleAttemptByDefault(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusBadGateway, http.StatusOK)
	client := fastClient("hstc", 0, nil)

	resp, err := get(t, client, srv.URL)
	require.NoError(t, err, "an exhausted 5xx is handed back as a response")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK)
	client := fastClient("hstc", 3, nil)

	resp, err := get(t, client, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusNotFound)
	reg := resilience.NewRegistry()
	client := fastClient("hstc", 3, reg)

	resp, err := get(t, client, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	h, _ := reg.Health("hstc")
	assert.Zero(t, h.Failures, "a 404 is an answer, not an outage")
}

func TestClient_RecordsExhaustedFailure(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusInternalServerError)
	reg := resilience.NewRegistry()
	client := fastClient("hstc", 2, reg)

	resp, err := get(t, client, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(2), calls.Load())
	h, _ := reg.Health("hstc")
	assert.Equal(t, int64(1), h.Failures)
	assert.Equal(t, 1, h.ConsecutiveFailures)
	assert.Contains(t, h.LastError, "Internal Server Error")
	assert.Equal(t, resilience.LevelDegraded, h.Level())
}

func TestClient_OpensAfterConsecutiveFailures(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusServiceUnavailable)
	reg := resilience.NewRegistry()
	client := fastClient("hstc", 1, reg)

	for range 5 {
		resp, err := get(t, client, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	_, err := get(t, client, srv.URL)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load(), "an open circuit does not reach the upstream")

	h, _ := reg.Health("hstc")
	assert.Equal(t, resilience.LevelUnhealthy, h.Level())
}

func TestClient_TransportErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	reg := resilience.NewRegistry()
	client := fastClient("hstc", 1, reg)

	resp, err := get(t, client, url)
	require.Error(t, err)
	assert.Nil(t, resp)

	h, _ := reg.Health("hstc")
	assert.Equal(t, int64(1), h.Failures)
}

func TestClient_HonoursContextCancellation(t *testing.T) {
	srv, calls := gateAPI(t, http.StatusServiceUnavailable)
	client := resilience.NewClient(resilience.ClientConfig{
		Name:         "hstc",
		Attempts:     10,
		FirstBackoff: time.Second,
		MaxBackoff:   time.Second,
		Logger:       zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_UsesCustomTransport(t *testing.T) {
	var seen string
	client := resilience.NewClient(resilience.ClientConfig{
		Name: "hstc",
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = r.URL.Path
			return nil, errors.New("offline")
		}),
		Logger: zerolog.Nop(),
	})

	_, err := get(t, client, "http://gates.invalid")
	require.Error(t, err)
	assert.Equal(t, "/gates/SOL", seen)
	assert.Equal(t, "hstc", client.Name())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBreakerConfig_ShouldTrip(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"quiet", gobreaker.Counts{}, false},
		{"four in a row", gobreaker.Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4}, false},
		{"five in a row", gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, true},
		{"half of too few", gobreaker.Counts{Requests: 8, TotalFailures: 4, ConsecutiveFailures: 1}, false},
		{"half of ten", gobreaker.Counts{Requests: 10, TotalFailures: 5, ConsecutiveFailures: 1}, true},
		{"under half", gobreaker.Counts{Requests: 20, TotalFailures: 9, ConsecutiveFailures: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldTrip(tt.counts))
		})
	}
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()
	assert.Equal(t, uint32(1), cfg.HalfOpenProbes)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
}

package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	ResultHit   = "hit"
	ResultStale = "stale"
	ResultMiss  = "miss"
)

// Collector exposes request cache and gateway metrics to Prometheus.
type Collector struct {
	gatherer prometheus.Gatherer

	CacheRequests *prometheus.CounterVec
	GatewayCalls  *prometheus.CounterVec
	GatewayTime   *prometheus.HistogramVec
}

// NewCollector registers the request cache metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starseeker_cache_requests_total",
		Help: "Request cache lookups partitioned by query kind and result.",
	}, []string{"kind", "result"})
	requests, err := registerCounterVec(reg, requests, "starseeker_cache_requests_total")
	if err != nil {
		return nil, err
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starseeker_gateway_calls_total",
		Help: "Calls made to the gate network API partitioned by query kind and outcome.",
	}, []string{"kind", "outcome"})
	calls, err = registerCounterVec(reg, calls, "starseeker_gateway_calls_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starseeker_gateway_call_duration_seconds",
		Help:    "Duration of gate network API calls including retries.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})
	duration, err = registerHistogramVec(reg, duration, "starseeker_gateway_call_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		CacheRequests: requests,
		GatewayCalls:  calls,
		GatewayTime:   duration,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveLookup records a cache lookup.
func (c *Collector) ObserveLookup(kind, result string) {
	if c == nil || c.CacheRequests == nil {
		return
	}
	c.CacheRequests.WithLabelValues(kind, result).Inc()
}

// ObserveGatewayCall records a completed gateway call.
func (c *Collector) ObserveGatewayCall(kind string, d time.Duration, err error) {
	if c == nil || c.GatewayCalls == nil {
		return
	}
	c.GatewayCalls.WithLabelValues(kind, outcome(err)).Inc()
	c.GatewayTime.WithLabelValues(kind).Observe(d.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrGateNotFound), errors.Is(err, ErrNoRouteFound):
		return "not_found"
	case IsRetryable(err):
		return "unavailable"
	default:
		return "error"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the HTTP server.
type Metrics struct {
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec
}

// NewMetrics registers the HTTP server metrics against reg. A nil registerer uses the
// Prometheus default registry. Registering twice on the same registry reuses the
// existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starseeker_http_request_duration_seconds",
		Help:    "Duration of HTTP server requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	total, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starseeker_http_requests_total",
		Help: "Total number of HTTP server requests.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starseeker_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed.",
	}))
	if err != nil {
		return nil, err
	}

	size, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starseeker_http_response_size_bytes",
		Help:    "Size of HTTP server responses in bytes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"method", "route"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration:  duration,
		requestTotal:     total,
		requestsInFlight: inFlight,
		responseSize:     size,
	}, nil
}

// Middleware returns an HTTP middleware that records metrics for each request. Routes
// are labelled by their chi pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			status := strconv.Itoa(wrapped.statusCode)

			m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
			m.responseSize.WithLabelValues(r.Method, route).Observe(float64(wrapped.written))
		})
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

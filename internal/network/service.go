package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/starseeker/starseeker/internal/telemetry"
)

// Query kinds, also used as cache key prefixes.
const (
	KindGates       = "gates"
	KindGateDetails = "gate-details"
	KindRoutes      = "routes"
	KindCost        = "cost"
)

// ServiceConfig holds configuration for the request cache.
type ServiceConfig struct {
	// Gateway is the remote gate network API.
	Gateway Gateway

	// Logger for service operations.
	Logger zerolog.Logger

	// StaleTime is how long a result is served without revalidation (default: 10s).
	StaleTime time.Duration

	// GCTime is how long an unused result is kept at all (default: 24h).
	GCTime time.Duration

	// Retries is the number of retries for transient failures (default: 3).
	// A negative value disables retries.
	Retries int

	// RetryInitialInterval is the first retry delay, doubled per attempt (default: 1s).
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the retry delay (default: 30s).
	RetryMaxInterval time.Duration

	// LoadTimeout bounds one shared gateway load including retries (default: 2m).
	// Loads outlive the caller that started them, so waiting callers are unaffected
	// when it goes away.
	LoadTimeout time.Duration

	// AllRoutes asks the gateway for every route rather than the cheapest one.
	AllRoutes bool

	// Metrics records cache and gateway metrics (optional).
	Metrics *Collector

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service fronts the Gateway with a stale-while-revalidate cache. Identical concurrent
// requests share one gateway call, and stale entries are returned immediately while a
// single background refresh runs.
type Service struct {
	gateway   Gateway
	logger    zerolog.Logger
	staleTime time.Duration
	retries   uint64
	initial   time.Duration
	maxDelay  time.Duration
	timeout   time.Duration
	allRoutes bool
	metrics   *Collector
	now       func() time.Time

	cache *gocache.Cache
	group singleflight.Group
	bg    sync.WaitGroup

	hits          atomic.Int64
	misses        atomic.Int64
	revalidations atomic.Int64
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Revalidations int64 `json:"revalidations"`
}

// NewService creates a new request cache.
func NewService(cfg ServiceConfig) *Service {
	staleTime := cfg.StaleTime
	if staleTime == 0 {
		staleTime = 10 * time.Second
	}

	gcTime := cfg.GCTime
	if gcTime == 0 {
		gcTime = 24 * time.Hour
	}

	var retries uint64
	switch {
	case cfg.Retries == 0:
		retries = 3
	case cfg.Retries > 0:
		retries = uint64(cfg.Retries)
	}

	initial := cfg.RetryInitialInterval
	if initial == 0 {
		initial = time.Second
	}

	maxDelay := cfg.RetryMaxInterval
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}

	timeout := cfg.LoadTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	cleanup := gcTime / 4
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}

	return &Service{
		gateway:   cfg.Gateway,
		logger:    cfg.Logger,
		staleTime: staleTime,
		retries:   retries,
		initial:   initial,
		maxDelay:  maxDelay,
		timeout:   timeout,
		allRoutes: cfg.AllRoutes,
		metrics:   cfg.Metrics,
		now:       now,
		cache:     gocache.New(gcTime, cleanup),
	}
}

// ListGates returns every gate in the network.
func (s *Service) ListGates(ctx context.Context) ([]Gate, error) {
	return query(ctx, s, KindGates, KindGates, s.gateway.ListGates)
}

// GetGate returns the details of a single gate.
func (s *Service) GetGate(ctx context.Context, code string) (*Gate, error) {
	if err := ValidateGateCode("code", code); err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	return query(ctx, s, KindGateDetails, KindGateDetails+":"+code, func(ctx context.Context) (*Gate, error) {
		return s.gateway.GetGate(ctx, code)
	})
}

// FindRoutes returns the routes between two gates, cheapest first. Whether the gateway is
// asked for every route or only its preferred one follows ServiceConfig.AllRoutes.
func (s *Service) FindRoutes(ctx context.Context, from, to string) ([]Route, error) {
	return s.findRoutes(ctx, from, to, s.allRoutes)
}

// FindAllRoutes asks for every known route between two gates regardless of
// ServiceConfig.AllRoutes. Gateways without that capability answer with their single
// preferred route.
func (s *Service) FindAllRoutes(ctx context.Context, from, to string) ([]Route, error) {
	return s.findRoutes(ctx, from, to, true)
}

func (s *Service) findRoutes(ctx context.Context, from, to string, all bool) ([]Route, error) {
	if err := ValidateRouteQuery(from, to); err != nil {
		return nil, err
	}
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	key := KindRoutes + ":" + from + ":" + to
	if all {
		key += ":all"
	}
	routes, err := query(ctx, s, KindRoutes, key, func(ctx context.Context) ([]Route, error) {
		var (
			routes []Route
			err    error
		)
		if all {
			routes, err = s.gateway.FindAllRoutes(ctx, from, to)
		} else {
			var r *Route
			r, err = s.gateway.FindRoute(ctx, from, to)
			if r != nil {
				routes = []Route{*r}
			}
		}
		if err != nil {
			return nil, err
		}
		SortRoutesByCost(routes)
		return routes, nil
	})
	if err != nil {
		return nil, err
	}

	// Cached slices are shared; hand out a copy.
	out := make([]Route, len(routes))
	copy(out, routes)
	return out, nil
}

// GetTransportCost prices a journey.
func (s *Service) GetTransportCost(ctx context.Context, q CostQuery) (*JourneyCost, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%s:%d:%d", KindCost,
		strconv.FormatFloat(q.Distance, 'f', -1, 64), q.Passengers, q.ParkingDays)

	return query(ctx, s, KindCost, key, func(ctx context.Context) (*JourneyCost, error) {
		return s.gateway.GetTransportCost(ctx, q)
	})
}

// Invalidate drops every cached entry whose key starts with prefix. An empty prefix
// drops everything.
func (s *Service) Invalidate(prefix string) int {
	if prefix == "" {
		n := s.cache.ItemCount()
		s.cache.Flush()
		return n
	}

	n := 0
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
			n++
		}
	}
	return n
}

// Stats returns a snapshot of cache counters.
func (s *Service) Stats() Stats {
	return Stats{
		Entries:       s.cache.ItemCount(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Revalidations: s.revalidations.Load(),
	}
}

// Wait blocks until background revalidations have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// GatewayName returns the name of the underlying gateway.
func (s *Service) GatewayName() string {
	return s.gateway.Name()
}

// query is the cache read path shared by all query kinds.
func query[T any](ctx context.Context, s *Service, kind, key string, fetch func(context.Context) (T, error)) (T, error) {
	if cached, ok := s.cache.Get(key); ok {
		entry := cached.(*cacheEntry)
		value := entry.value.(T)

		if s.now().Sub(entry.fetchedAt) < s.staleTime {
			s.hits.Add(1)
			s.metrics.ObserveLookup(kind, ResultHit)
			return value, nil
		}

		s.hits.Add(1)
		s.metrics.ObserveLookup(kind, ResultStale)
		s.revalidate(ctx, kind, key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
		return value, nil
	}

	s.misses.Add(1)
	s.metrics.ObserveLookup(kind, ResultMiss)

	ch := s.group.DoChan(key, func() (any, error) {
		return s.detachedLoad(ctx, kind, key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("cache_key", key).Msg("shared in-flight request")
		}
		return res.Val.(T), nil
	}
}

// detachedLoad runs load on a context that keeps the caller's values but not its
// cancellation, bounded by the load timeout.
func (s *Service) detachedLoad(ctx context.Context, kind, key string, fetch func(context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.load(ctx, kind, key, fetch)
}

// revalidate refreshes a stale entry in the background. Concurrent revalidations of the
// same key collapse into one call.
func (s *Service) revalidate(ctx context.Context, kind, key string, fetch func(context.Context) (any, error)) {
	s.revalidations.Add(1)
	s.bg.Add(1)

	ch := s.group.DoChan(key, func() (any, error) {
		return s.detachedLoad(ctx, kind, key, fetch)
	})

	go func() {
		defer s.bg.Done()
		res := <-ch
		if res.Err != nil {
			s.logger.Warn().Err(res.Err).
				Str("cache_key", key).
				Msg("background revalidation failed, keeping stale entry")
		}
	}()
}

// load fetches with retries and stores the result.
func (s *Service) load(ctx context.Context, kind, key string, fetch func(context.Context) (any, error)) (value any, err error) {
	attempt := 0
	ctx, call := telemetry.StartCall(ctx, "gateway."+kind,
		attribute.String("cache.key", key),
		attribute.String("gateway.provider", s.gateway.Name()),
	)
	defer func() { call.End(err, attribute.Int("gateway.attempts", attempt)) }()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initial
	bo.MaxInterval = s.maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.retries), ctx)

	start := s.now()

	err = backoff.Retry(func() error {
		attempt++
		v, err := fetch(ctx)
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			s.logger.Debug().Err(err).
				Str("cache_key", key).
				Int("attempt", attempt).
				Msg("transient gateway failure")
			return err
		}
		value = v
		return nil
	}, policy)

	s.metrics.ObserveGatewayCall(kind, s.now().Sub(start), err)

	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		s.logger.Error().Err(err).
			Str("cache_key", key).
			Int("attempts", attempt).
			Msg("failed to fetch from gateway")
		return nil, err
	}

	s.cache.SetDefault(key, &cacheEntry{value: value, fetchedAt: s.now()})

	s.logger.Debug().
		Str("cache_key", key).
		Str("provider", s.gateway.Name()).
		Msg("cached gateway response")

	return value, nil
}

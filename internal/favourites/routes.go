package favourites

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/kvstore"
	"github.com/starseeker/starseeker/internal/network"
)

// RouteManagerConfig holds configuration for the route favourites manager.
type RouteManagerConfig struct {
	Store  kvstore.Store
	Logger zerolog.Logger

	// HistoryLimit bounds the search history (default: 20).
	HistoryLimit int

	// Now overrides the clock used for timestamps (default: time.Now).
	Now func() time.Time
}

// RouteManager maintains favourite routes and the route search history. Routes are
// identified by network.Route.ID. Failure semantics match GateManager.
type RouteManager struct {
	store        kvstore.Store
	logger       zerolog.Logger
	historyLimit int
	now          func() time.Time

	opMu sync.Mutex

	mu         sync.RWMutex
	state      State
	favourites []SavedRoute
	history    []SavedRoute
}

// NewRouteManager creates a route favourites manager. Call Load before reading.
func NewRouteManager(cfg RouteManagerConfig) *RouteManager {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RouteManager{
		store:        cfg.Store,
		logger:       cfg.Logger.With().Str("component", "route_favourites").Logger(),
		historyLimit: limit,
		now:          now,
		favourites:   []SavedRoute{},
		history:      []SavedRoute{},
	}
}

// Load reads the persisted favourites and history. Each key fails independently.
func (m *RouteManager) Load(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.load(ctx)
}

func (m *RouteManager) load(ctx context.Context) {
	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()

	favourites := readList[SavedRoute](ctx, m.store, RouteFavouritesKey, m.logger)
	history := readList[SavedRoute](ctx, m.store, RouteHistoryKey, m.logger)
	if len(history) > m.historyLimit {
		history = history[:m.historyLimit]
	}

	m.mu.Lock()
	m.favourites = favourites
	m.history = history
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Debug().
		Int("favourites", len(favourites)).
		Int("history", len(history)).
		Msg("loaded routes")
}

func (m *RouteManager) ensureLoaded(ctx context.Context) {
	if m.State() != StateReady {
		m.load(ctx)
	}
}

// State returns the manager lifecycle state.
func (m *RouteManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Loading reports whether the routes have not been loaded yet.
func (m *RouteManager) Loading() bool {
	return m.State() != StateReady
}

// IsFavourite reports whether the route id is a favourite.
func (m *RouteManager) IsFavourite(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return indexOf(m.favourites, id, routeID) >= 0
}

// IsFavouriteRoute reports whether the route is a favourite.
func (m *RouteManager) IsFavouriteRoute(route network.Route) bool {
	return m.IsFavourite(route.ID())
}

// Favourites returns the favourite routes, most recently added first.
func (m *RouteManager) Favourites() []SavedRoute {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.favourites)
}

// History returns the search history, most recent first. IsFavourite reflects the
// favourites at the time of the call.
func (m *RouteManager) History() []SavedRoute {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := clone(m.history)
	for i := range out {
		out[i].IsFavourite = indexOf(m.favourites, out[i].ID, routeID) >= 0
	}
	return out
}

func (m *RouteManager) historySnapshot() []SavedRoute {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history
}

func (m *RouteManager) saved(route network.Route, favourite bool) SavedRoute {
	return SavedRoute{
		Route:       route,
		ID:          route.ID(),
		Timestamp:   m.now().UnixMilli(),
		IsFavourite: favourite,
	}
}

func (m *RouteManager) commitFavourites(ctx context.Context, op string, next []SavedRoute) bool {
	if err := writeList(ctx, m.store, RouteFavouritesKey, next); err != nil {
		m.logger.Error().Err(err).Str("op", op).Msg("failed to persist favourite routes")
		return false
	}
	m.mu.Lock()
	m.favourites = next
	m.mu.Unlock()
	return true
}

func (m *RouteManager) commitHistory(ctx context.Context, op string, next []SavedRoute) bool {
	if err := writeList(ctx, m.store, RouteHistoryKey, next); err != nil {
		m.logger.Error().Err(err).Str("op", op).Msg("failed to persist route history")
		return false
	}
	m.mu.Lock()
	m.history = next
	m.mu.Unlock()
	return true
}

// ToggleFavourite removes the route if it is a favourite and adds it otherwise. It
// returns whether the route is a favourite afterwards.
func (m *RouteManager) ToggleFavourite(ctx context.Context, route network.Route) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	id := route.ID()
	current := m.Favourites()

	if indexOf(current, id, routeID) >= 0 {
		if !m.commitFavourites(ctx, "toggle", without(current, id, routeID)) {
			return true
		}
		m.logger.Info().Str("route_id", id).Msg("removed favourite route")
		return false
	}

	if !m.commitFavourites(ctx, "toggle", prepend(m.saved(route, true), current)) {
		return false
	}
	m.logger.Info().Str("route_id", id).Msg("added favourite route")
	return true
}

// AddFavourite adds the route unless a route with the same identity is already a
// favourite.
func (m *RouteManager) AddFavourite(ctx context.Context, route network.Route) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	current := m.Favourites()
	if indexOf(current, route.ID(), routeID) >= 0 {
		return
	}
	m.commitFavourites(ctx, "add", prepend(m.saved(route, true), current))
}

// RemoveFavourite removes the route with the given id, if any.
func (m *RouteManager) RemoveFavourite(ctx context.Context, id string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	m.commitFavourites(ctx, "remove", without(m.Favourites(), id, routeID))
}

// AddToHistory records a searched route. A route already in the history moves to the
// front with a fresh timestamp; the oldest entries beyond the limit are dropped.
func (m *RouteManager) AddToHistory(ctx context.Context, route network.Route) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	next := prepend(m.saved(route, false), without(m.historySnapshot(), route.ID(), routeID))
	if len(next) > m.historyLimit {
		next = next[:m.historyLimit]
	}
	m.commitHistory(ctx, "history", next)
}

// ClearHistory drops every history entry.
func (m *RouteManager) ClearHistory(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	if m.commitHistory(ctx, "clear_history", []SavedRoute{}) {
		m.logger.Info().Msg("cleared route history")
	}
}

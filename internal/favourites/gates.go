package favourites

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/kvstore"
	"github.com/starseeker/starseeker/internal/network"
)

// GateManagerConfig holds configuration for the gate favourites manager.
type GateManagerConfig struct {
	Store  kvstore.Store
	Logger zerolog.Logger

	// Now overrides the clock used for timestamps (default: time.Now).
	Now func() time.Time
}

// GateManager maintains the favourite gates in memory and in the store. Mutations are
// serialized and only take effect in memory once the store accepted them. No method
// returns an error: storage failures are logged and leave the state unchanged.
type GateManager struct {
	store  kvstore.Store
	logger zerolog.Logger
	now    func() time.Time

	opMu sync.Mutex // one load or mutation at a time

	mu    sync.RWMutex
	state State
	items []FavouriteGate
}

// NewGateManager creates a gate favourites manager. Call Load before reading.
func NewGateManager(cfg GateManagerConfig) *GateManager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &GateManager{
		store:  cfg.Store,
		logger: cfg.Logger.With().Str("component", "gate_favourites").Logger(),
		now:    now,
		items:  []FavouriteGate{},
	}
}

// Load reads the persisted favourites, replacing the in-memory list.
func (m *GateManager) Load(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.load(ctx)
}

func (m *GateManager) load(ctx context.Context) {
	m.setState(StateLoading)

	items := readList[FavouriteGate](ctx, m.store, GateFavouritesKey, m.logger)

	m.mu.Lock()
	m.items = items
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Debug().Int("count", len(items)).Msg("loaded favourite gates")
}

// ensureLoaded loads once before the first mutation so a mutation can never overwrite
// stored favourites with a list built from an empty cache. Caller holds opMu.
func (m *GateManager) ensureLoaded(ctx context.Context) {
	if m.State() != StateReady {
		m.load(ctx)
	}
}

func (m *GateManager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State returns the manager lifecycle state.
func (m *GateManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Loading reports whether the favourites have not been loaded yet.
func (m *GateManager) Loading() bool {
	return m.State() != StateReady
}

// IsFavourite reports whether the gate code is a favourite.
func (m *GateManager) IsFavourite(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return indexOf(m.items, code, gateCode) >= 0
}

// Favourites returns the favourite gates, most recently added first.
func (m *GateManager) Favourites() []FavouriteGate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.items)
}

func (m *GateManager) snapshot() []FavouriteGate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items
}

// commit persists next and, on success, makes it the in-memory list.
func (m *GateManager) commit(ctx context.Context, op string, next []FavouriteGate) bool {
	if err := writeList(ctx, m.store, GateFavouritesKey, next); err != nil {
		m.logger.Error().Err(err).Str("op", op).Msg("failed to persist favourite gates")
		return false
	}

	m.mu.Lock()
	m.items = next
	m.mu.Unlock()
	return true
}

// ToggleFavourite removes the gate if it is a favourite and adds it otherwise. It returns
// whether the gate is a favourite afterwards.
func (m *GateManager) ToggleFavourite(ctx context.Context, gate network.Gate) bool {
	if strings.TrimSpace(gate.Code) == "" {
		m.logger.Warn().Msg("ignoring toggle of a gate without a code")
		return false
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	favourite, _ := m.toggle(ctx, gate.Code, func() network.Gate { return gate })
	return favourite
}

// GateLookup resolves a gate code to its details.
type GateLookup func(ctx context.Context, code string) (*network.Gate, error)

// ToggleByCode toggles the gate with the given code. When the toggle adds the gate,
// lookup supplies the details to store; it runs under the mutation lock so the
// membership it was called for cannot change underneath it. saved reports whether the
// store accepted the change. Lookup errors are returned and change nothing.
func (m *GateManager) ToggleByCode(ctx context.Context, code string, lookup GateLookup) (favourite, saved bool, err error) {
	if strings.TrimSpace(code) == "" {
		m.logger.Warn().Msg("ignoring toggle of a gate without a code")
		return false, false, nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	if !m.IsFavourite(code) {
		details, err := lookup(ctx, code)
		if err != nil {
			return false, false, err
		}
		gate := *details
		favourite, saved = m.toggle(ctx, code, func() network.Gate { return gate })
		return favourite, saved, nil
	}

	favourite, saved = m.toggle(ctx, code, nil)
	return favourite, saved, nil
}

// toggle flips membership of code. gate supplies the stored details on add. Caller
// holds opMu.
func (m *GateManager) toggle(ctx context.Context, code string, gate func() network.Gate) (favourite, saved bool) {
	current := m.snapshot()
	if indexOf(current, code, gateCode) >= 0 {
		if !m.commit(ctx, "toggle", without(current, code, gateCode)) {
			return true, false
		}
		m.logger.Info().Str("code", code).Msg("removed favourite gate")
		return false, true
	}

	g := network.Gate{Code: code}
	if gate != nil {
		g = gate()
	}
	next := prepend(FavouriteGate{Gate: g, Timestamp: m.now().UnixMilli()}, current)
	if !m.commit(ctx, "toggle", next) {
		return false, false
	}
	m.logger.Info().Str("code", code).Msg("added favourite gate")
	return true, true
}

// AddFavourite adds the gate unless it already is a favourite.
func (m *GateManager) AddFavourite(ctx context.Context, gate network.Gate) {
	if strings.TrimSpace(gate.Code) == "" {
		m.logger.Warn().Msg("ignoring add of a gate without a code")
		return
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	current := m.snapshot()
	if indexOf(current, gate.Code, gateCode) >= 0 {
		return
	}
	m.commit(ctx, "add", prepend(FavouriteGate{Gate: gate, Timestamp: m.now().UnixMilli()}, current))
}

// RemoveFavourite removes the gate. Removing a gate that is not a favourite changes
// nothing.
func (m *GateManager) RemoveFavourite(ctx context.Context, code string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.ensureLoaded(ctx)

	current := m.snapshot()
	m.commit(ctx, "remove", without(current, code, gateCode))
}

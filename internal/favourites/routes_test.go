package favourites_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/kvstore"
	"github.com/starseeker/starseeker/internal/network"
)

func newRouteManager(store kvstore.Store, clock *fixedClock) *favourites.RouteManager {
	return favourites.NewRouteManager(favourites.RouteManagerConfig{
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    clock.Now,
	})
}

func testRoute(from, to string, cost float64, path ...string) network.Route {
	return network.Route{
		From:      network.Gate{Code: from, Name: from},
		To:        network.Gate{Code: to, Name: to},
		Route:     path,
		TotalCost: cost,
	}
}

func TestRouteManager_Toggle(t *testing.T) {
	ctx := context.Background()
	mgr := newRouteManager(kvstore.NewMemoryStore(), newClock())
	mgr.Load(ctx)

	route := testRoute("SOL", "SIR", 42, "SOL", "PRX", "SIR")

	assert.True(t, mgr.ToggleFavourite(ctx, route))
	assert.True(t, mgr.IsFavourite(route.ID()))
	assert.True(t, mgr.IsFavouriteRoute(route))

	favs := mgr.Favourites()
	require.Len(t, favs, 1)
	assert.Equal(t, "SOL-SIR-42-SOL-PRX-SIR", favs[0].ID)
	assert.True(t, favs[0].IsFavourite)

	assert.False(t, mgr.ToggleFavourite(ctx, route))
	assert.False(t, mgr.IsFavouriteRoute(route))
}

func TestRouteManager_DistinctPathsAreDistinctFavourites(t *testing.T) {
	ctx := context.Background()
	mgr := newRouteManager(kvstore.NewMemoryStore(), newClock())
	mgr.Load(ctx)

	cheap := testRoute("SOL", "SIR", 42, "SOL", "PRX", "SIR")
	direct := testRoute("SOL", "SIR", 100, "SOL", "SIR")

	mgr.ToggleFavourite(ctx, cheap)
	mgr.ToggleFavourite(ctx, direct)

	assert.Len(t, mgr.Favourites(), 2)
}

func TestRouteManager_ScenarioD(t *testing.T) {
	ctx := context.Background()
	mgr := newRouteManager(kvstore.NewMemoryStore(), newClock())
	mgr.Load(ctx)

	first := testRoute("SOL", "SIR", 42, "SOL", "PRX", "SIR")
	second := testRoute("SOL", "SIR", 42, "SOL", "PRX", "SIR")

	mgr.AddFavourite(ctx, first)
	mgr.AddFavourite(ctx, second)

	favs := mgr.Favourites()
	require.Len(t, favs, 1)
	assert.Equal(t, first.ID(), favs[0].ID)
}

func TestRouteManager_RemoveFavourite(t *testing.T) {
	ctx := context.Background()
	mgr := newRouteManager(kvstore.NewMemoryStore(), newClock())
	mgr.Load(ctx)

	route := testRoute("SOL", "SIR", 42, "SOL", "SIR")
	mgr.ToggleFavourite(ctx, route)

	before := mgr.Favourites()
	mgr.RemoveFavourite(ctx, "unknown")
	assert.Equal(t, before, mgr.Favourites())

	mgr.RemoveFavourite(ctx, route.ID())
	assert.Empty(t, mgr.Favourites())
}

func TestRouteManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	clock := newClock()

	first := newRouteManager(store, clock)
	first.Load(ctx)
	first.ToggleFavourite(ctx, testRoute("SOL", "SIR", 42, "SOL", "PRX", "SIR"))
	clock.Advance(time.Second)
	first.ToggleFavourite(ctx, testRoute("SOL", "PRX", 10.25, "SOL", "PRX"))
	first.AddToHistory(ctx, testRoute("PRX", "SIR", 7, "PRX", "SIR"))

	second := newRouteManager(store, clock)
	second.Load(ctx)

	assert.Equal(t, first.Favourites(), second.Favourites())
	assert.Equal(t, first.History(), second.History())
}

func TestRouteManager_HistoryTruncation(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	mgr := newRouteManager(kvstore.NewMemoryStore(), clock)
	mgr.Load(ctx)

	for i := 0; i < favourites.DefaultHistoryLimit+1; i++ {
		to := fmt.Sprintf("G%02d", i)
		mgr.AddToHistory(ctx, testRoute("SOL", to, float64(i+1), "SOL", to))
		clock.Advance(time.Second)
	}

	history := mgr.History()
	require.Len(t, history, favourites.DefaultHistoryLimit)
	assert.Equal(t, "G20", history[0].To.Code, "newest first")
	assert.Equal(t, "G01", history[len(history)-1].To.Code, "oldest evicted")
	for _, h := range history {
		assert.NotEqual(t, "G00", h.To.Code)
	}
}

func TestRouteManager_HistoryRecencyBump(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	mgr := newRouteManager(kvstore.NewMemoryStore(), clock)
	mgr.Load(ctx)

	a := testRoute("SOL", "SIR", 42, "SOL", "SIR")
	b := testRoute("SOL", "PRX", 10, "SOL", "PRX")

	mgr.AddToHistory(ctx, a)
	firstSeen := mgr.History()[0].Timestamp
	clock.Advance(time.Second)
	mgr.AddToHistory(ctx, b)
	clock.Advance(time.Second)
	mgr.AddToHistory(ctx, a)

	history := mgr.History()
	require.Len(t, history, 2, "no duplicate entry")
	assert.Equal(t, a.ID(), history[0].ID)
	assert.Greater(t, history[0].Timestamp, firstSeen)
	assert.False(t, history[0].IsFavourite)
	assert.Equal(t, b.ID(), history[1].ID)
}

func TestRouteManager_HistoryReflectsFavourites(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	mgr := newRouteManager(store, newClock())
	mgr.Load(ctx)

	a := testRoute("SOL", "SIR", 42, "SOL", "SIR")
	b := testRoute("SOL", "PRX", 10, "SOL", "PRX")
	mgr.AddToHistory(ctx, a)
	mgr.AddToHistory(ctx, b)

	mgr.ToggleFavourite(ctx, a)
	history := mgr.History()
	require.Len(t, history, 2)
	assert.False(t, history[0].IsFavourite)
	assert.True(t, history[1].IsFavourite)

	reloaded := newRouteManager(store, newClock())
	reloaded.Load(ctx)
	assert.True(t, reloaded.History()[1].IsFavourite)

	mgr.ToggleFavourite(ctx, a)
	assert.False(t, mgr.History()[1].IsFavourite)
}

func TestRouteManager_ClearHistory(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	mgr := newRouteManager(store, newClock())
	mgr.Load(ctx)

	mgr.AddToHistory(ctx, testRoute("SOL", "SIR", 42, "SOL", "SIR"))
	mgr.ToggleFavourite(ctx, testRoute("SOL", "SIR", 42, "SOL", "SIR"))
	mgr.ClearHistory(ctx)

	assert.Empty(t, mgr.History())
	assert.Len(t, mgr.Favourites(), 1, "favourites are untouched")
}

func TestRouteManager_IndependentKeyFailures(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, favourites.RouteFavouritesKey, `{broken`))
	require.NoError(t, store.Set(ctx, favourites.RouteHistoryKey,
		`{"version":1,"items":[{"id":"SOL-SIR-1-SOL-SIR","from":{"code":"SOL","name":"Sol"},"to":{"code":"SIR","name":"Sirius"},"route":["SOL","SIR"],"totalCost":1,"timestamp":1,"isFavorite":false}]}`))

	mgr := newRouteManager(store, newClock())
	mgr.Load(ctx)

	assert.Empty(t, mgr.Favourites())
	require.Len(t, mgr.History(), 1)
	assert.Equal(t, "SOL-SIR-1-SOL-SIR", mgr.History()[0].ID)
}

func TestRouteManager_PersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	mgr := newRouteManager(store, newClock())
	mgr.Load(ctx)

	store.FailOn("set", errDiskFull)
	route := testRoute("SOL", "SIR", 42, "SOL", "SIR")

	assert.False(t, mgr.ToggleFavourite(ctx, route))
	mgr.AddToHistory(ctx, route)

	assert.Empty(t, mgr.Favourites())
	assert.Empty(t, mgr.History())
}

func TestRouteManager_MigratesLegacyArray(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	legacy := `[{"id":"SOL-SIR-42-SOL-SIR","from":{"code":"SOL","name":"Sol"},"to":{"code":"SIR","name":"Sirius"},"route":["SOL","SIR"],"totalCost":42,"timestamp":1700000000000,"isFavorite":true}]`
	require.NoError(t, store.Set(ctx, favourites.RouteFavouritesKey, legacy))

	mgr := newRouteManager(store, newClock())
	mgr.Load(ctx)

	require.Len(t, mgr.Favourites(), 1)
	assert.True(t, mgr.IsFavourite("SOL-SIR-42-SOL-SIR"))
	assert.InDelta(t, 42.0, mgr.Favourites()[0].TotalCost, 0)
}

func TestRouteManager_MutationBeforeLoad(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	seed := newRouteManager(store, newClock())
	seed.Load(ctx)
	seed.ToggleFavourite(ctx, testRoute("SOL", "SIR", 42, "SOL", "SIR"))

	mgr := newRouteManager(store, newClock())
	assert.True(t, mgr.Loading())
	mgr.ToggleFavourite(ctx, testRoute("SOL", "PRX", 10, "SOL", "PRX"))

	assert.Len(t, mgr.Favourites(), 2)
}

// Package favourites keeps the user's favourite gates, favourite routes and route search
// history, persisted through a kvstore.Store.
package favourites

import (
	"time"

	"github.com/starseeker/starseeker/internal/network"
)

// Storage keys. Each manager only touches its own keys.
const (
	GateFavouritesKey  = "@gates/favorite-gates"
	RouteFavouritesKey = "@routes/favorites"
	RouteHistoryKey    = "@routes/search-history"
)

// DefaultHistoryLimit bounds the route search history.
const DefaultHistoryLimit = 20

// FavouriteGate is a gate the user bookmarked.
type FavouriteGate struct {
	network.Gate
	Timestamp int64 `json:"timestamp"` // unix milliseconds
}

// SavedRoute is a route kept as a favourite or as a history entry.
type SavedRoute struct {
	network.Route
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
	IsFavourite bool   `json:"isFavorite"`
}

// Time returns the timestamp as a time.Time.
func (r SavedRoute) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Time returns the timestamp as a time.Time.
func (g FavouriteGate) Time() time.Time {
	return time.UnixMilli(g.Timestamp)
}

// State is the lifecycle of a manager.
type State int

// Manager states.
const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

func gateCode(g FavouriteGate) string { return g.Code }

func routeID(r SavedRoute) string { return r.ID }

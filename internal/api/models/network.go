package models

import (
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

// GateView is a gate annotated with the caller's favourite flag.
type GateView struct {
	network.Gate
	IsFavourite bool `json:"isFavorite"`
}

// GateList is the response of GET /v1/gates.
type GateList struct {
	Items []GateView `json:"items"`
	Count int        `json:"count"`
}

// RouteView is a route annotated with its identity and favourite flag.
type RouteView struct {
	network.Route
	ID          string `json:"id"`
	Stops       int    `json:"stops"`
	IsFavourite bool   `json:"isFavorite"`
}

// NewRouteView builds the view of a route.
func NewRouteView(r network.Route, favourite bool) RouteView {
	return RouteView{Route: r, ID: r.ID(), Stops: r.Stops(), IsFavourite: favourite}
}

// RouteList is the response of GET /v1/routes.
type RouteList struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Items []RouteView `json:"items"`
	Count int         `json:"count"`
}

// CostView is a priced journey with derived display fields.
type CostView struct {
	network.JourneyCost
	Distance       float64 `json:"distance"`
	Passengers     int     `json:"passengers"`
	ParkingDays    int     `json:"parkingDays"`
	TotalCost      float64 `json:"totalCost"`
	CurrencySymbol string  `json:"currencySymbol"`
}

// NewCostView builds the view of a priced journey.
func NewCostView(q network.CostQuery, c network.JourneyCost) CostView {
	return CostView{
		JourneyCost:    c,
		Distance:       q.Distance,
		Passengers:     q.Passengers,
		ParkingDays:    q.ParkingDays,
		TotalCost:      c.Total(),
		CurrencySymbol: network.CurrencySymbol(c.Currency),
	}
}

// FavouriteGateList is the response of GET /v1/favourites/gates.
type FavouriteGateList struct {
	Items []favourites.FavouriteGate `json:"items"`
	Count int                        `json:"count"`
}

// SavedRouteList is the response of the favourite route and history listings.
type SavedRouteList struct {
	Items []favourites.SavedRoute `json:"items"`
	Count int                     `json:"count"`
}

// ToggleRouteRequest is the body of POST /v1/favourites/routes/toggle.
type ToggleRouteRequest struct {
	Route network.Route `json:"route"`
}

// ToggleResult reports membership after a toggle.
type ToggleResult struct {
	ID          string `json:"id"`
	IsFavourite bool   `json:"isFavorite"`
}

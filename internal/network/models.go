// Package network provides the gate network domain model: gates, routes between them and
// journey costs, together with the Gateway contract used to fetch them.
package network

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Gateway defines the interface for the remote gate network API.
type Gateway interface {
	// ListGates returns every gate in the network.
	ListGates(ctx context.Context) ([]Gate, error)
	// GetGate returns a single gate including its links.
	GetGate(ctx context.Context, code string) (*Gate, error)
	// FindRoute returns the server-chosen route between two gates.
	FindRoute(ctx context.Context, from, to string) (*Route, error)
	// FindAllRoutes returns every route the server knows between two gates.
	FindAllRoutes(ctx context.Context, from, to string) ([]Route, error)
	// GetTransportCost prices a journey of the given distance.
	GetTransportCost(ctx context.Context, q CostQuery) (*JourneyCost, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Coordinates is a position in the network's 3D space.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GateLink is a direct hyperspace connection to another gate.
type GateLink struct {
	Code string `json:"code"`
	HU   string `json:"hu"` // cost in hyperplane units, string-encoded by the API
}

// Cost parses the string-encoded link cost.
func (l GateLink) Cost() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(l.HU), 64)
}

// Gate is a node in the network.
type Gate struct {
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	System      string       `json:"system,omitempty"`
	UUID        string       `json:"uuid,omitempty"`
	CreatedAt   *int64       `json:"createdAt,omitempty"`
	UpdatedAt   *int64       `json:"updatedAt,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Links       []GateLink   `json:"links,omitempty"`
}

// Route is a server-computed path between two gates.
type Route struct {
	From      Gate     `json:"from"`
	To        Gate     `json:"to"`
	Route     []string `json:"route"` // gate codes, endpoints included
	TotalCost float64  `json:"totalCost"`
}

// ID derives the route identity from its content. Distinct paths or costs between the
// same two gates yield distinct identities.
func (r Route) ID() string {
	parts := []string{
		r.From.Code,
		r.To.Code,
		strconv.FormatFloat(r.TotalCost, 'f', -1, 64),
	}
	parts = append(parts, r.Route...)
	return strings.Join(parts, "-")
}

// Stops returns the number of hops along the route.
func (r Route) Stops() int {
	if len(r.Route) < 2 {
		return 0
	}
	return len(r.Route) - 1
}

// SortRoutesByCost orders routes from cheapest to most expensive, keeping the server
// order for equal costs.
func SortRoutesByCost(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].TotalCost < routes[j].TotalCost
	})
}

// RecommendedTransport is the vehicle the API recommends for a journey.
type RecommendedTransport struct {
	Name      string  `json:"name"`
	RatePerAU float64 `json:"ratePerAu"`
}

// JourneyCost is the priced journey returned by the transport endpoint.
type JourneyCost struct {
	RecommendedTransport RecommendedTransport `json:"recommendedTransport"`
	JourneyCost          float64              `json:"journeyCost"`
	ParkingFee           float64              `json:"parkingFee"`
	Currency             string               `json:"currency"`
}

// Total returns the journey cost including parking.
func (c JourneyCost) Total() float64 {
	return c.JourneyCost + c.ParkingFee
}

// DefaultCurrency is the network's own currency.
const DefaultCurrency = "HU"

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"HU":  "Ħ",
}

// CurrencySymbol returns the display symbol for a currency code. Unknown codes are
// returned unchanged.
func CurrencySymbol(code string) string {
	if code == "" {
		code = DefaultCurrency
	}
	if sym, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return sym
	}
	return code
}

// CostQuery is the input to a transport cost lookup.
type CostQuery struct {
	Distance    float64 // astronomical units
	Passengers  int
	ParkingDays int // zero when the traveller does not park
}

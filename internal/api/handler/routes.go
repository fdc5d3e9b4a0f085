package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

// RoutesHandler handles route searches and journey pricing.
type RoutesHandler struct {
	network *network.Service
	routes  *favourites.RouteManager
}

// NewRoutesHandler creates a new RoutesHandler.
func NewRoutesHandler(svc *network.Service, routes *favourites.RouteManager) *RoutesHandler {
	return &RoutesHandler{network: svc, routes: routes}
}

// FindRoutes handles GET /v1/routes?from=&to=&all= - routes between two gates, cheapest
// first. Every returned route is recorded in the search history.
func (h *RoutesHandler) FindRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")

	all, err := parseBool(q.Get("all"))
	if err != nil {
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
			{Field: "all", Message: "must be a boolean", Code: "INVALID"},
		})
		return
	}

	var routes []network.Route
	if all {
		routes, err = h.network.FindAllRoutes(r.Context(), from, to)
	} else {
		routes, err = h.network.FindRoutes(r.Context(), from, to)
	}
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	// Oldest first so the cheapest route ends up at the top of the history.
	for i := len(routes) - 1; i >= 0; i-- {
		h.routes.AddToHistory(r.Context(), routes[i])
	}

	items := make([]models.RouteView, 0, len(routes))
	for _, route := range routes {
		items = append(items, models.NewRouteView(route, h.routes.IsFavouriteRoute(route)))
	}
	response.JSON(w, r, http.StatusOK, models.RouteList{
		From:  strings.ToUpper(strings.TrimSpace(from)),
		To:    strings.ToUpper(strings.TrimSpace(to)),
		Items: items,
		Count: len(items),
	})
}

// TransportCost handles GET /v1/transport/cost?distance=&passengers=&parking= - prices a
// journey.
func (h *RoutesHandler) TransportCost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrors []models.FieldError
	distance, err := strconv.ParseFloat(q.Get("distance"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "distance", Message: "must be a number", Code: "INVALID"})
	}
	passengers, err := strconv.Atoi(q.Get("passengers"))
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "passengers", Message: "must be an integer", Code: "INVALID"})
	}
	parking := 0
	if raw := q.Get("parking"); raw != "" {
		if parking, err = strconv.Atoi(raw); err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "parking", Message: "must be an integer", Code: "INVALID"})
		}
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	query := network.CostQuery{Distance: distance, Passengers: passengers, ParkingDays: parking}
	cost, err := h.network.GetTransportCost(r.Context(), query)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewCostView(query, *cost))
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// FavouritesHandler handles favourite gates, favourite routes and route history.
type FavouritesHandler struct {
	network *network.Service
	gates   *favourites.GateManager
	routes  *favourites.RouteManager
}

// NewFavouritesHandler creates a new FavouritesHandler.
func NewFavouritesHandler(svc *network.Service, gates *favourites.GateManager, routes *favourites.RouteManager) *FavouritesHandler {
	return &FavouritesHandler{network: svc, gates: gates, routes: routes}
}

// ListGates handles GET /v1/favourites/gates.
func (h *FavouritesHandler) ListGates(w http.ResponseWriter, r *http.Request) {
	items := h.gates.Favourites()
	response.JSON(w, r, http.StatusOK, models.FavouriteGateList{Items: items, Count: len(items)})
}

// ToggleGate handles PUT /v1/favourites/gates/{code}/toggle. A gate that is already a
// favourite is removed without consulting the network; otherwise its details are looked
// up first so the stored favourite is complete.
func (h *FavouritesHandler) ToggleGate(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	if err := network.ValidateGateCode("code", code); err != nil {
		response.FromError(w, r, err)
		return
	}

	favourite, _, err := h.gates.ToggleByCode(r.Context(), code, h.network.GetGate)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ToggleResult{ID: code, IsFavourite: favourite})
}

// RemoveGate handles DELETE /v1/favourites/gates/{code}. Removing a gate that is not a
// favourite succeeds.
func (h *FavouritesHandler) RemoveGate(w http.ResponseWriter, r *http.Request) {
	h.gates.RemoveFavourite(r.Context(), strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code"))))
	response.NoContent(w, r)
}

// ListRoutes handles GET /v1/favourites/routes.
func (h *FavouritesHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	items := h.routes.Favourites()
	response.JSON(w, r, http.StatusOK, models.SavedRouteList{Items: items, Count: len(items)})
}

// ToggleRoute handles POST /v1/favourites/routes/toggle with the route in the body.
func (h *FavouritesHandler) ToggleRoute(w http.ResponseWriter, r *http.Request) {
	var input models.ToggleRouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := network.ValidateRouteQuery(input.Route.From.Code, input.Route.To.Code); err != nil {
		response.FromError(w, r, err)
		return
	}

	favourite := h.routes.ToggleFavourite(r.Context(), input.Route)
	response.JSON(w, r, http.StatusOK, models.ToggleResult{ID: input.Route.ID(), IsFavourite: favourite})
}

// RemoveRoute handles DELETE /v1/favourites/routes/{id}.
func (h *FavouritesHandler) RemoveRoute(w http.ResponseWriter, r *http.Request) {
	h.routes.RemoveFavourite(r.Context(), chi.URLParam(r, "id"))
	response.NoContent(w, r)
}

// ListHistory handles GET /v1/history/routes - most recent search first.
func (h *FavouritesHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	items := h.routes.History()
	response.JSON(w, r, http.StatusOK, models.SavedRouteList{Items: items, Count: len(items)})
}

// ClearHistory handles DELETE /v1/history/routes.
func (h *FavouritesHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.routes.ClearHistory(r.Context())
	response.NoContent(w, r)
}

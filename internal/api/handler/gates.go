// Package handler provides HTTP handlers for the Star Seeker API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

// GatesHandler handles gate lookups.
type GatesHandler struct {
	network   *network.Service
	favourite *favourites.GateManager
}

// NewGatesHandler creates a new GatesHandler.
func NewGatesHandler(svc *network.Service, gates *favourites.GateManager) *GatesHandler {
	return &GatesHandler{network: svc, favourite: gates}
}

// ListGates handles GET /v1/gates - every gate in the network.
func (h *GatesHandler) ListGates(w http.ResponseWriter, r *http.Request) {
	gates, err := h.network.ListGates(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	items := make([]models.GateView, 0, len(gates))
	for _, g := range gates {
		items = append(items, models.GateView{Gate: g, IsFavourite: h.favourite.IsFavourite(g.Code)})
	}
	response.JSON(w, r, http.StatusOK, models.GateList{Items: items, Count: len(items)})
}

// GetGate handles GET /v1/gates/{code} - a single gate with its links.
func (h *GatesHandler) GetGate(w http.ResponseWriter, r *http.Request) {
	gate, err := h.network.GetGate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.GateView{Gate: *gate, IsFavourite: h.favourite.IsFavourite(gate.Code)})
}

package handler

import (
	"net/http"
	"time"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
	"github.com/starseeker/starseeker/internal/provider/resilience"
)

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	Network   *network.Service
	Gates     *favourites.GateManager
	Routes    *favourites.RouteManager
	Registry  *resilience.Registry
	Now       func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once both favourites
// managers have loaded their persisted state.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	gates := h.cfg.Gates.State()
	routes := h.cfg.Routes.State()

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Details: map[string]any{
			"gateFavourites":  gates.String(),
			"routeFavourites": routes.String(),
		},
	}
	status := http.StatusOK
	if gates != favourites.StateReady || routes != favourites.StateReady {
		health.Status = models.HealthStatusFail
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - gateway circuit breaker and cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Subsystems: []models.SubsystemStatus{
			managerStatus("gate-favourites", h.cfg.Gates.State()),
			managerStatus("route-favourites", h.cfg.Routes.State()),
		},
		Providers: []models.ProviderStatus{},
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.Snapshot() {
			ps := providerStatus(ph)
			status.Providers = append(status.Providers, ps)
			status.Status = worst(status.Status, ps.Status)
		}
	}
	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}

	stats := h.cfg.Network.Stats()
	status.Cache = models.CacheStatus{
		Entries:       stats.Entries,
		Hits:          stats.Hits,
		Misses:        stats.Misses,
		Revalidations: stats.Revalidations,
	}
	response.JSON(w, r, http.StatusOK, status)
}

// InvalidateCache handles POST /v1/ops/cache/invalidate?prefix= - drops cached queries.
func (h *OpsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	removed := h.cfg.Network.Invalidate(prefix)
	response.JSON(w, r, http.StatusOK, models.InvalidateResponse{Prefix: prefix, Removed: removed})
}

func managerStatus(name string, state favourites.State) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
	if state != favourites.StateReady {
		detail := state.String()
		s.Status = models.HealthStatusDegraded
		s.Detail = &detail
	}
	return s
}

func providerStatus(ph resilience.Health) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
	}
	switch ph.Level() {
	case resilience.LevelUnhealthy:
		ps.Status = models.HealthStatusFail
	case resilience.LevelDegraded:
		ps.Status = models.HealthStatusDegraded
	}
	if !ph.LastSuccessAt.IsZero() {
		ts := models.Timestamp(ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if !ph.LastFailureAt.IsZero() {
		ts := models.Timestamp(ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

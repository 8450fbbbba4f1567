package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports readiness. Liveness is chi's Heartbeat on /health.
type HealthHandler struct {
	repo    Pinger
	backend string
	clients func() int
}

// NewHealthHandler creates a readiness handler. clients may be nil.
func NewHealthHandler(repo Pinger, backend string, clients func() int) *HealthHandler {
	return &HealthHandler{repo: repo, backend: backend, clients: clients}
}

// RegisterHealth registers the readiness route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Ready)
}

// Ready pings the store backend.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"status":  "ok",
		"backend": h.backend,
	}
	if h.clients != nil {
		body["live_clients"] = h.clients()
	}

	if err := h.repo.Ping(ctx); err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	JSON(w, http.StatusOK, body)
}

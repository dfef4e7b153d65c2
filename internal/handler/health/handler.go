package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esperancapontalsul/hope/backend/pkg/utils"
)

// Handler reports liveness and whether the model is configured.
type Handler struct {
	aiReady bool
}

// New creates the health handler.
func New(aiReady bool) *Handler {
	return &Handler{aiReady: aiReady}
}

// RegisterRoutes mounts the health route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ai":     h.aiReady,
	})
}

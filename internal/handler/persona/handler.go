package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
	"github.com/esperancapontalsul/hope/backend/pkg/utils"
)

// Source provides the active persona.
type Source interface {
	Persona() persona.Persona
}

// Handler exposes the public side of the assistant persona.
type Handler struct {
	source Source
}

// New creates the persona handler.
func New(source Source) *Handler {
	return &Handler{source: source}
}

// RegisterRoutes mounts the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleGetPersona)
}

type personaResponse struct {
	Name     string `json:"name"`
	Church   string `json:"church"`
	Greeting string `json:"greeting"`
}

// handleGetPersona returns the greeting shown when a chat widget opens. The
// instruction and rules stay server-side.
func (h *Handler) handleGetPersona(w http.ResponseWriter, _ *http.Request) {
	p := h.source.Persona()
	utils.RespondJSON(w, http.StatusOK, personaResponse{
		Name:     p.Name,
		Church:   p.Church,
		Greeting: p.Greeting,
	})
}

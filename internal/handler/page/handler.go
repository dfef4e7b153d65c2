package page

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
)

//go:embed templates/*.html
var templateFS embed.FS

var chatTemplate = template.Must(template.ParseFS(templateFS, "templates/chat.html"))

// Unavailable replaces the greeting when the model is not configured.
const Unavailable = "Serviço de IA indisponível."

// Handler renders the chat page.
type Handler struct {
	persona   persona.Persona
	available bool
	logger    logrus.FieldLogger
}

// New creates the page handler. available tells whether the conversation
// engine is up.
func New(p persona.Persona, available bool, logger logrus.FieldLogger) *Handler {
	return &Handler{
		persona:   p,
		available: available,
		logger:    logger.WithField("component", "page"),
	}
}

// RegisterRoutes mounts the page routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
}

type chatPage struct {
	Name     string
	Church   string
	Greeting string
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := chatPage{
		Name:     h.persona.Name,
		Church:   h.persona.Church,
		Greeting: h.persona.Greeting,
	}
	if !h.available {
		data.Greeting = Unavailable
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatTemplate.Execute(w, data); err != nil {
		h.logger.WithError(err).Error("failed to render chat page")
	}
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/config"
	"github.com/esperancapontalsul/hope/backend/internal/handler/admin"
	"github.com/esperancapontalsul/hope/backend/internal/handler/chat"
	"github.com/esperancapontalsul/hope/backend/internal/handler/health"
	"github.com/esperancapontalsul/hope/backend/internal/handler/page"
	"github.com/esperancapontalsul/hope/backend/internal/handler/persona"
	middlewarePkg "github.com/esperancapontalsul/hope/backend/internal/middleware"
	chatService "github.com/esperancapontalsul/hope/backend/internal/service/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/intent"
	"github.com/esperancapontalsul/hope/backend/internal/service/knowledge"
	"github.com/esperancapontalsul/hope/backend/internal/service/session"
)

// Deps are the services the HTTP surface is built on. Engine and Intents may
// be nil.
type Deps struct {
	Engine    *chatService.Engine
	Intents   *intent.Router
	Knowledge *knowledge.Base
	Sessions  *session.Store
	Session   config.SessionConfig
	Admin     config.AdminConfig
	Logger    logrus.FieldLogger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	sessions := middlewarePkg.NewSessions(deps.Session.Secret, deps.Session.TTL, deps.Sessions, deps.Session.Secure, deps.Logger)

	pageHandler := page.New(deps.Knowledge.Persona(), deps.Engine != nil, deps.Logger)
	chatHandler := chat.New(deps.Engine, deps.Intents, deps.Knowledge, deps.Sessions, deps.Logger)
	personaHandler := persona.New(deps.Knowledge)
	healthHandler := health.New(deps.Engine != nil)
	adminHandler := admin.New(deps.Admin, deps.Knowledge, deps.Sessions, sessions, deps.Logger)

	r.Group(func(web chi.Router) {
		web.Use(sessions.Handler)
		pageHandler.RegisterRoutes(web)
		web.Route("/admin", adminHandler.RegisterRoutes)
	})

	r.Route("/api", func(api chi.Router) {
		healthHandler.RegisterRoutes(api)
		personaHandler.RegisterRoutes(api)

		api.Group(func(stateful chi.Router) {
			stateful.Use(sessions.Handler)
			chatHandler.RegisterRoutes(stateful)
		})
	})

	return r
}

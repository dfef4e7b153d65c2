package admin

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/esperancapontalsul/hope/backend/internal/config"
	"github.com/esperancapontalsul/hope/backend/internal/middleware"
)

const (
	loginPath     = "/admin/login"
	knowledgePath = "/admin/knowledge"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Knowledge is the editable knowledge text.
type Knowledge interface {
	Knowledge() string
	UpdateKnowledge(text string) error
}

// Sessions flags sessions as logged into the admin area.
type Sessions interface {
	middleware.AdminChecker
	SetAdmin(ctx context.Context, id string, admin bool) error
}

// Renewer moves the current session to a fresh id and cookie.
type Renewer interface {
	Renew(w http.ResponseWriter, r *http.Request) (string, error)
}

// Handler serves the knowledge editor and its login gate.
type Handler struct {
	cfg       config.AdminConfig
	knowledge Knowledge
	sessions  Sessions
	renewer   Renewer
	logger    logrus.FieldLogger
}

// New creates the admin handler.
func New(cfg config.AdminConfig, knowledge Knowledge, sessions Sessions, renewer Renewer, logger logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:       cfg,
		knowledge: knowledge,
		sessions:  sessions,
		renewer:   renewer,
		logger:    logger.WithField("component", "admin"),
	}
}

// RegisterRoutes mounts the admin routes. Without configured credentials the
// editor is served ungated.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	r.Group(func(editor chi.Router) {
		if h.cfg.Enabled() {
			editor.Use(middleware.RequireAdmin(h.sessions, loginPath))
		}
		editor.Get("/knowledge", h.handleKnowledgePage)
		editor.Post("/knowledge", h.handleSaveKnowledge)
	})
}

type loginPage struct {
	Error string
}

type knowledgePage struct {
	Content string
	Saved   bool
	Error   string
	Gated   bool
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Enabled() {
		http.Redirect(w, r, knowledgePath, http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "login.html", loginPage{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Enabled() {
		http.Redirect(w, r, knowledgePath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "login.html", loginPage{Error: "Formulário inválido."})
		return
	}

	if !h.checkCredentials(r.PostFormValue("username"), r.PostFormValue("password")) {
		h.logger.WithField("remote", r.RemoteAddr).Warn("admin login failed")
		h.render(w, http.StatusUnauthorized, "login.html", loginPage{Error: "Usuário ou senha inválidos."})
		return
	}

	// a fresh id keeps a planted cookie from inheriting the admin flag
	sessionID, err := h.renewer.Renew(w, r)
	if err != nil {
		h.logger.WithError(err).Error("failed to renew session")
		h.render(w, http.StatusInternalServerError, "login.html", loginPage{Error: "Não foi possível iniciar a sessão."})
		return
	}
	if err := h.sessions.SetAdmin(r.Context(), sessionID, true); err != nil {
		h.logger.WithError(err).Error("failed to mark session as admin")
		h.render(w, http.StatusInternalServerError, "login.html", loginPage{Error: "Não foi possível iniciar a sessão."})
		return
	}

	h.logger.WithField("session", sessionID).Info("admin logged in")
	http.Redirect(w, r, knowledgePath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SetAdmin(r.Context(), middleware.SessionID(r.Context()), false); err != nil {
		h.logger.WithError(err).Debug("logout on unknown session")
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *Handler) handleKnowledgePage(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "knowledge.html", knowledgePage{
		Content: h.knowledge.Knowledge(),
		Gated:   h.cfg.Enabled(),
	})
}

func (h *Handler) handleSaveKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "knowledge.html", knowledgePage{
			Content: h.knowledge.Knowledge(),
			Error:   "Formulário inválido.",
			Gated:   h.cfg.Enabled(),
		})
		return
	}

	content := r.PostFormValue("conhecimento")
	if err := h.knowledge.UpdateKnowledge(content); err != nil {
		h.logger.WithError(err).Error("failed to save knowledge")
		h.render(w, http.StatusInternalServerError, "knowledge.html", knowledgePage{
			Content: content,
			Error:   "Não foi possível salvar o banco de conhecimento. A versão anterior continua em uso.",
			Gated:   h.cfg.Enabled(),
		})
		return
	}

	h.logger.WithField("bytes", len(content)).Info("knowledge updated")
	h.render(w, http.StatusOK, "knowledge.html", knowledgePage{
		Content: h.knowledge.Knowledge(),
		Saved:   true,
		Gated:   h.cfg.Enabled(),
	})
}

// checkCredentials compares the username in constant time and always runs
// bcrypt so both failure paths cost the same.
func (h *Handler) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(password))
	return userOK && passErr == nil
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.WithError(err).WithField("template", name).Error("failed to render admin page")
	}
}

package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/middleware"
	chatService "github.com/esperancapontalsul/hope/backend/internal/service/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/intent"
	"github.com/esperancapontalsul/hope/backend/internal/service/transcript"
	"github.com/esperancapontalsul/hope/backend/pkg/utils"
)

// Transcripts is the part of the session store the chat endpoints need.
type Transcripts interface {
	Transcript(ctx context.Context, id string) transcript.Stored
	SaveTranscript(ctx context.Context, id string, stored transcript.Stored) error
	ResetTranscript(ctx context.Context, id string)
	Lock(id string) func()
}

// Knowledge supplies the grounding for each turn.
type Knowledge interface {
	Instruction() string
	RandomVerse() string
}

// Handler serves the chat API.
type Handler struct {
	engine    *chatService.Engine
	router    *intent.Router
	knowledge Knowledge
	sessions  Transcripts
	logger    logrus.FieldLogger
}

// New creates the chat handler. engine may be nil when the model is not
// configured: verse and contact requests are still answered. router may be
// nil to send every message to the engine.
func New(engine *chatService.Engine, router *intent.Router, knowledge Knowledge, sessions Transcripts, logger logrus.FieldLogger) *Handler {
	return &Handler{
		engine:    engine,
		router:    router,
		knowledge: knowledge,
		sessions:  sessions,
		logger:    logger.WithField("component", "chat_handler"),
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/reset", h.handleReset)
}

type chatRequest struct {
	Message string `json:"message"`
	// Pergunta is the field name used by older widgets.
	Pergunta string `json:"pergunta"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// verseIntro prefixes verses sent on request.
const verseIntro = "Claro! O Espírito Santo inspirou uma Palavra para o seu coração:\n\n"

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "message is too long")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = strings.TrimSpace(payload.Pergunta)
	}
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	sessionID := middleware.SessionID(ctx)
	unlock := h.sessions.Lock(sessionID)
	defer unlock()

	decision := intent.Decision{Kind: intent.KindChat}
	if h.router != nil {
		decision = h.router.Route(ctx, message)
	}

	switch decision.Kind {
	case intent.KindVerse:
		reply := verseIntro + h.knowledge.RandomVerse()
		h.record(ctx, sessionID, message, reply)
		utils.RespondJSON(w, http.StatusOK, chatResponse{Reply: reply})

	case intent.KindButton:
		h.record(ctx, sessionID, message, decision.Button.PreText+" "+decision.Button.ButtonURL)
		utils.RespondJSON(w, http.StatusOK, decision.Button)

	default:
		if h.engine == nil {
			utils.RespondJSON(w, http.StatusServiceUnavailable, chatResponse{Reply: chatService.ApologyUnavailable})
			return
		}
		stored := h.sessions.Transcript(ctx, sessionID)
		reply, updated := h.engine.Respond(ctx, sessionID, stored, message, h.knowledge.Instruction())
		h.save(ctx, sessionID, updated)
		utils.RespondJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionID(r.Context())
	unlock := h.sessions.Lock(sessionID)
	defer unlock()

	h.sessions.ResetTranscript(r.Context(), sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// record stores a turn answered without the model; it works with or without
// an engine.
func (h *Handler) record(ctx context.Context, sessionID, message, reply string) {
	updated, err := chatService.Record(h.sessions.Transcript(ctx, sessionID), message, reply)
	if err != nil {
		h.logger.WithField("session", sessionID).WithError(err).Warn("discarding corrupted transcript")
	}
	h.save(ctx, sessionID, updated)
}

func (h *Handler) save(ctx context.Context, sessionID string, stored transcript.Stored) {
	if err := h.sessions.SaveTranscript(ctx, sessionID, stored); err != nil {
		h.logger.WithField("session", sessionID).WithError(err).Error("failed to save transcript")
	}
}

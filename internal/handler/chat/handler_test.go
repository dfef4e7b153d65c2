package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esperancapontalsul/hope/backend/internal/middleware"
	chatModel "github.com/esperancapontalsul/hope/backend/internal/model/chat"
	"github.com/esperancapontalsul/hope/backend/internal/model/contact"
	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
	"github.com/esperancapontalsul/hope/backend/internal/service/ai"
	chatService "github.com/esperancapontalsul/hope/backend/internal/service/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/intent"
	"github.com/esperancapontalsul/hope/backend/internal/service/knowledge"
	"github.com/esperancapontalsul/hope/backend/internal/service/session"
	"github.com/esperancapontalsul/hope/backend/internal/service/transcript"
	"github.com/esperancapontalsul/hope/backend/pkg/utils"
)

const testSession = "session-1"

type fakeModel struct {
	reply       string
	err         error
	calls       int
	instruction string
}

func (f *fakeModel) Send(_ context.Context, _ []chatModel.Message, instruction, _ string) (string, error) {
	f.calls++
	f.instruction = instruction
	return f.reply, f.err
}

type testEnv struct {
	router   *chi.Mux
	model    *fakeModel
	sessions *session.Store
}

func setupRouter(t *testing.T, withEngine bool) testEnv {
	t.Helper()
	log, _ := logtest.NewNullLogger()

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	store := knowledge.NewFileStore(
		write("conhecimento.txt", "Cultos aos domingos às 18h."),
		write("contatos.json", `{"whatsapp":{"url":"https://wa.me/5500","text":"Falar no WhatsApp","style_class":"fab fa-whatsapp"}}`),
		write("versiculos.txt", "João 3:16\n"),
		log,
	)
	base := knowledge.NewBase(store, persona.Default(), log)
	sessions := session.NewStore(time.Hour)

	model := &fakeModel{reply: "Os cultos são aos domingos às 18h."}
	var engine *chatService.Engine
	if withEngine {
		var err error
		engine, err = chatService.NewEngine(model, log)
		require.NoError(t, err)
	}

	handler := New(engine, intent.NewRouter(nil, base, log), base, sessions, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSessionID(r.Context(), testSession)))
		})
	})
	handler.RegisterRoutes(r)
	return testEnv{router: r, model: model, sessions: sessions}
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeReply(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Reply
}

func storedMessages(t *testing.T, env testEnv) []chatModel.Message {
	t.Helper()
	messages, err := transcript.Decode(env.sessions.Transcript(context.Background(), testSession))
	require.NoError(t, err)
	return messages
}

func TestChatAnswersAndStoresTranscript(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "Qual o horário do culto?"})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Os cultos são aos domingos às 18h.", decodeReply(t, resp))
	assert.Contains(t, env.model.instruction, "Cultos aos domingos às 18h.")
	assert.Equal(t, []chatModel.Message{
		chatModel.UserMessage("Qual o horário do culto?"),
		chatModel.ModelMessage("Os cultos são aos domingos às 18h."),
	}, storedMessages(t, env))
}

func TestChatAcceptsLegacyField(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"pergunta": "Olá"})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, env.model.calls)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "   "})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, env.model.calls)
}

func TestChatRejectsInvalidBody(t *testing.T) {
	env := setupRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatRejectsOversizedBody(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": strings.Repeat("a", utils.MaxBodyBytes)})

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Zero(t, env.model.calls)
}

func TestChatButtonWithoutEngine(t *testing.T) {
	env := setupRouter(t, false)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "me manda o link do whatsapp"})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "https://wa.me/5500")
	assert.Len(t, storedMessages(t, env), 2)
}

func TestChatWithoutEngine(t *testing.T) {
	env := setupRouter(t, false)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "Olá"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, chatService.ApologyUnavailable, decodeReply(t, resp))
}

func TestChatRemoteFailureKeepsUserTurn(t *testing.T) {
	env := setupRouter(t, true)
	env.model.err = &ai.RemoteError{Op: "send", Err: errors.New("rate limited")}

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "Olá"})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, chatService.ApologyBusy, decodeReply(t, resp))
	assert.Equal(t, []chatModel.Message{chatModel.UserMessage("Olá")}, storedMessages(t, env))
}

func TestChatContactButton(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "me manda o link do whatsapp"})

	require.Equal(t, http.StatusOK, resp.Code)
	var button contact.Button
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&button))
	assert.Equal(t, "button", button.Type)
	assert.Equal(t, "https://wa.me/5500", button.ButtonURL)
	assert.Equal(t, "fab fa-whatsapp", button.ButtonIcon)
	assert.Zero(t, env.model.calls)
	assert.Len(t, storedMessages(t, env), 2)
}

func TestChatVerse(t *testing.T) {
	env := setupRouter(t, true)

	resp := postJSON(t, env.router, "/chat", map[string]string{"message": "Me dá um versículo"})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, verseIntro+"João 3:16", decodeReply(t, resp))
	assert.Zero(t, env.model.calls)
}

func TestChatReset(t *testing.T) {
	env := setupRouter(t, true)
	postJSON(t, env.router, "/chat", map[string]string{"message": "Olá"})
	require.NotEmpty(t, storedMessages(t, env))

	resp := postJSON(t, env.router, "/chat/reset", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, storedMessages(t, env))
}

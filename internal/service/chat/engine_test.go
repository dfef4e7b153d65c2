package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/ai"
	"github.com/esperancapontalsul/hope/backend/internal/service/transcript"
)

type sendCall struct {
	history     []chat.Message
	instruction string
	text        string
}

type fakeModel struct {
	replies []string
	errs    []error
	panics  bool
	calls   []sendCall
}

func (f *fakeModel) Send(_ context.Context, history []chat.Message, instruction, text string) (string, error) {
	f.calls = append(f.calls, sendCall{
		history:     append([]chat.Message(nil), history...),
		instruction: instruction,
		text:        text,
	})
	if f.panics {
		panic("nil pointer in request builder")
	}

	idx := len(f.calls) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.replies) {
		return f.replies[idx], nil
	}
	return "resposta", nil
}

func rateLimited() error {
	return &ai.RemoteError{Op: "chat", Err: errors.New("429 resource exhausted")}
}

func newEngine(t *testing.T, model Model, opts ...Option) (*Engine, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	engine, err := NewEngine(model, log, opts...)
	require.NoError(t, err)
	engine.sleep = func(context.Context, time.Duration) error { return nil }
	return engine, hook
}

func decode(t *testing.T, stored transcript.Stored) []chat.Message {
	t.Helper()
	messages, err := transcript.Decode(stored)
	require.NoError(t, err)
	return messages
}

func TestNewEngineRequiresModel(t *testing.T) {
	_, err := NewEngine(nil, logrus.New())
	assert.ErrorIs(t, err, ErrModelRequired)
}

func TestRespondFreshConversation(t *testing.T) {
	model := &fakeModel{replies: []string{"Os cultos são aos domingos às 10h."}}
	engine, _ := newEngine(t, model)

	reply, stored := engine.Respond(context.Background(), "s1", nil, "Qual o horário do culto?", "INSTR")

	assert.Equal(t, "Os cultos são aos domingos às 10h.", reply)
	require.Len(t, model.calls, 1)
	assert.Empty(t, model.calls[0].history)
	assert.Equal(t, "INSTR", model.calls[0].instruction)
	assert.Equal(t, "Qual o horário do culto?", model.calls[0].text)

	assert.Equal(t, []chat.Message{
		chat.UserMessage("Qual o horário do culto?"),
		chat.ModelMessage("Os cultos são aos domingos às 10h."),
	}, decode(t, stored))
}

func TestRespondContinuesPartialHistory(t *testing.T) {
	model := &fakeModel{replies: []string{"Que bom te ver!"}}
	engine, _ := newEngine(t, model)

	stored := transcript.Stored{
		map[string]any{"role": "user", "parts": []any{map[string]any{"text": "oi"}}},
	}

	_, updated := engine.Respond(context.Background(), "s2", stored, "tudo bem?", "INSTR")

	messages := decode(t, updated)
	require.Len(t, messages, 3)
	assert.Equal(t, chat.UserMessage("oi"), messages[0])
	assert.Equal(t, chat.UserMessage("tudo bem?"), messages[1])
	assert.Equal(t, chat.ModelMessage("Que bom te ver!"), messages[2])
	assert.Equal(t, []chat.Message{chat.UserMessage("oi")}, model.calls[0].history)
}

func TestRespondRecoversFromCorruptedTranscript(t *testing.T) {
	corrupted := []transcript.Stored{
		{map[string]any{"role": "user"}},
		{map[string]any{"parts": []any{"oi"}}},
		{map[string]any{"role": "user", "parts": []any{}}},
		{"not a mapping"},
		{42, map[string]any{"role": "model", "parts": []any{"ok"}}},
	}

	for _, stored := range corrupted {
		model := &fakeModel{replies: []string{"Olá!"}}
		engine, hook := newEngine(t, model)

		reply, updated := engine.Respond(context.Background(), "s3", stored, "oi", "INSTR")

		assert.Equal(t, "Olá!", reply)
		assert.Empty(t, model.calls[0].history, "corrupted history must not reach the model")
		assert.Equal(t, []chat.Message{chat.UserMessage("oi"), chat.ModelMessage("Olá!")}, decode(t, updated))

		entry := hook.Entries[0]
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "s3", entry.Data["session"])
	}
}

func TestRespondRemoteErrorKeepsUserTurnOnly(t *testing.T) {
	model := &fakeModel{errs: []error{rateLimited()}}
	engine, hook := newEngine(t, model)

	reply, stored := engine.Respond(context.Background(), "s4", nil, "Qual o horário do culto?", "INSTR")

	assert.Equal(t, ApologyBusy, reply)
	assert.Equal(t, []chat.Message{chat.UserMessage("Qual o horário do culto?")}, decode(t, stored))

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "Qual o horário do culto?", last.Data["question"])
}

func TestRespondRetryAfterFailureDoesNotDuplicateUserTurn(t *testing.T) {
	failing := &fakeModel{errs: []error{rateLimited()}}
	engine, _ := newEngine(t, failing)
	_, stored := engine.Respond(context.Background(), "s5", nil, "Tem culto hoje?", "INSTR")

	working := &fakeModel{replies: []string{"Sim, às 20h."}}
	engine, _ = newEngine(t, working)
	reply, stored := engine.Respond(context.Background(), "s5", stored, "Tem culto hoje?", "INSTR")

	assert.Equal(t, "Sim, às 20h.", reply)
	assert.Empty(t, working.calls[0].history)
	assert.Equal(t, []chat.Message{
		chat.UserMessage("Tem culto hoje?"),
		chat.ModelMessage("Sim, às 20h."),
	}, decode(t, stored))
}

func TestRespondUnexpectedErrorReturnsBoundedExcerpt(t *testing.T) {
	detail := "request builder exploded: " + strings.Repeat("x", 500)
	model := &fakeModel{errs: []error{errors.New(detail)}}
	engine, hook := newEngine(t, model, WithRetry(3, time.Millisecond, time.Second))

	reply, stored := engine.Respond(context.Background(), "s6", nil, "oi", "INSTR")

	assert.True(t, strings.HasPrefix(reply, ApologyUnexpected))
	assert.Contains(t, reply, "request builder exploded")
	assert.Less(t, len([]rune(reply)), len([]rune(ApologyUnexpected))+errorExcerptLen+20)
	assert.Len(t, model.calls, 1, "unexpected errors are not retried")
	assert.Equal(t, []chat.Message{chat.UserMessage("oi")}, decode(t, stored))
	assert.Equal(t, "s6", hook.LastEntry().Data["session"])
}

func TestRespondRecoversModelPanic(t *testing.T) {
	model := &fakeModel{panics: true}
	engine, _ := newEngine(t, model)

	reply, stored := engine.Respond(context.Background(), "s7", nil, "oi", "INSTR")

	assert.True(t, strings.HasPrefix(reply, ApologyUnexpected))
	assert.Len(t, decode(t, stored), 1)
}

func TestRespondRetriesRemoteErrors(t *testing.T) {
	model := &fakeModel{
		errs:    []error{rateLimited(), rateLimited()},
		replies: []string{"", "", "Terceira tentativa deu certo."},
	}
	engine, _ := newEngine(t, model, WithRetry(3, time.Second, 10*time.Second))

	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	reply, stored := engine.Respond(context.Background(), "s8", nil, "oi", "INSTR")

	assert.Equal(t, "Terceira tentativa deu certo.", reply)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	assert.Len(t, decode(t, stored), 2, "retries must not duplicate the user turn")
	for _, call := range model.calls {
		assert.Empty(t, call.history)
	}
}

func TestRespondRetryCapsAttemptsAndWait(t *testing.T) {
	model := &fakeModel{errs: []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}}
	engine, _ := newEngine(t, model, WithRetry(4, time.Second, 2*time.Second))

	reply, stored := engine.Respond(context.Background(), "s9", nil, "oi", "INSTR")

	assert.Equal(t, ApologyBusy, reply)
	// 1s then 2s would exceed the 2s budget, so only one retry happens
	assert.Len(t, model.calls, 2)
	assert.Len(t, decode(t, stored), 1)
}

func TestRespondCancelledWhileWaiting(t *testing.T) {
	model := &fakeModel{errs: []error{rateLimited(), rateLimited()}}
	engine, _ := newEngine(t, model, WithRetry(3, time.Second, 10*time.Second))
	engine.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, _ := engine.Respond(ctx, "s10", nil, "oi", "INSTR")
	assert.Equal(t, ApologyBusy, reply)
	assert.Len(t, model.calls, 1)
}

func TestRecordAppendsTurnWithoutModel(t *testing.T) {
	model := &fakeModel{}
	engine, _ := newEngine(t, model)

	stored := engine.Record(context.Background(), "s11", nil, "me manda o whatsapp", "WhatsApp: https://wa.me/55")

	assert.Empty(t, model.calls)
	assert.Equal(t, []chat.Message{
		chat.UserMessage("me manda o whatsapp"),
		chat.ModelMessage("WhatsApp: https://wa.me/55"),
	}, decode(t, stored))
}

func TestRecordWithoutEngineResetsCorruptedTranscript(t *testing.T) {
	stored, err := Record(transcript.Stored{"not a turn"}, "um versículo", "João 3:16")

	assert.ErrorIs(t, err, transcript.ErrCorrupted)
	assert.Equal(t, []chat.Message{
		chat.UserMessage("um versículo"),
		chat.ModelMessage("João 3:16"),
	}, decode(t, stored))
}

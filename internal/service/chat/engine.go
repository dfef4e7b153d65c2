// Package chat runs one conversational turn against the hosted model and is
// the only code allowed to change a session's transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/logger"
	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/ai"
	"github.com/esperancapontalsul/hope/backend/internal/service/transcript"
)

// Replies shown to visitors when a turn cannot be answered by the model.
const (
	ApologyBusy        = "Desculpe, o servidor da minha inteligência está muito ocupado agora. Por favor, tente fazer a pergunta novamente em instantes."
	ApologyUnexpected  = "Ocorreu um erro inesperado na assistente. Por favor, tente novamente."
	ApologyUnavailable = "A assistente está temporariamente indisponível. Por favor, fale com a secretaria da igreja."
)

const (
	questionLogLimit = 120
	errorExcerptLen  = 80
)

// ErrModelRequired is returned by NewEngine when no model is supplied.
var ErrModelRequired = errors.New("chat model is required")

// Model is the remote chat contract: history holds earlier turns, text is the
// new user turn and instruction goes in the system slot.
type Model interface {
	Send(ctx context.Context, history []chat.Message, instruction, text string) (string, error)
}

// Engine answers user turns and keeps transcripts consistent across failures.
type Engine struct {
	model  Model
	logger logrus.FieldLogger

	maxAttempts int
	baseDelay   time.Duration
	maxWait     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithRetry retries remote failures with exponential backoff. maxAttempts
// caps the number of calls and maxWait caps the total time spent sleeping.
func WithRetry(maxAttempts int, baseDelay, maxWait time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		e.maxAttempts = maxAttempts
		e.baseDelay = baseDelay
		e.maxWait = maxWait
	}
}

// NewEngine creates an engine bound to model.
func NewEngine(model Model, log logrus.FieldLogger, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, ErrModelRequired
	}

	engine := &Engine{
		model:       model,
		logger:      log.WithField("component", "conversation"),
		maxAttempts: 1,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Respond answers userMessage in the context of the stored transcript and
// returns the reply together with the transcript to store back.
//
// It never fails: a corrupted transcript restarts the conversation, and a
// failed model call yields an apology while keeping the user's turn.
func (e *Engine) Respond(ctx context.Context, sessionID string, stored transcript.Stored, userMessage, instruction string) (string, transcript.Stored) {
	log := e.logger.WithField("session", sessionID)

	messages, err := transcript.Decode(stored)
	if err != nil {
		log.WithError(err).Warn("discarding corrupted transcript")
		messages = []chat.Message{}
	}

	messages = appendUserTurn(messages, userMessage)
	history := messages[:len(messages)-1]

	reply, err := e.send(ctx, log, history, instruction, userMessage)
	if err == nil {
		messages = append(messages, chat.ModelMessage(reply))
		return reply, transcript.Encode(messages)
	}

	fields := logrus.Fields{
		"question": logger.Truncate(userMessage, questionLogLimit),
		"turns":    len(messages),
	}
	if ai.IsRemote(err) {
		log.WithFields(fields).WithError(err).Error("model call failed")
		return ApologyBusy, transcript.Encode(messages)
	}

	log.WithFields(fields).WithError(err).Error("unexpected error while answering")
	reply = fmt.Sprintf("%s (detalhe: %s)", ApologyUnexpected, logger.Truncate(err.Error(), errorExcerptLen))
	return reply, transcript.Encode(messages)
}

// Record appends a turn answered without the model, such as a contact button
// or a verse, so later turns keep the context.
func (e *Engine) Record(ctx context.Context, sessionID string, stored transcript.Stored, userMessage, reply string) transcript.Stored {
	updated, err := Record(stored, userMessage, reply)
	if err != nil {
		e.logger.WithField("session", sessionID).WithError(err).Warn("discarding corrupted transcript")
	}
	return updated
}

// Record appends userMessage and reply to stored without any model. A
// corrupted transcript is replaced by the new turn and the decode error is
// returned alongside it.
func Record(stored transcript.Stored, userMessage, reply string) (transcript.Stored, error) {
	messages, err := transcript.Decode(stored)
	if err != nil {
		messages = []chat.Message{}
	}

	messages = appendUserTurn(messages, userMessage)
	messages = append(messages, chat.ModelMessage(reply))
	return transcript.Encode(messages), err
}

func (e *Engine) send(ctx context.Context, log logrus.FieldLogger, history []chat.Message, instruction, text string) (string, error) {
	var waited time.Duration
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		reply, err := e.callModel(ctx, history, instruction, text)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !ai.IsRemote(err) || attempt == e.maxAttempts {
			break
		}

		delay := e.baseDelay << (attempt - 1)
		if waited+delay > e.maxWait {
			break
		}

		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("model call failed, retrying")

		if err := e.sleep(ctx, delay); err != nil {
			return "", &ai.RemoteError{Op: "chat", Err: err}
		}
		waited += delay
	}

	return "", lastErr
}

// callModel shields the caller from panics raised inside the model client.
func (e *Engine) callModel(ctx context.Context, history []chat.Message, instruction, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model client panic: %v", r)
		}
	}()
	return e.model.Send(ctx, history, instruction, text)
}

// appendUserTurn adds the user turn unless the transcript already ends with
// the same question from an attempt that got no answer.
func appendUserTurn(messages []chat.Message, text string) []chat.Message {
	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Role == chat.RoleUser && last.Text() == text {
			return messages
		}
	}
	return append(messages, chat.UserMessage(text))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	analysis "github.com/esperancapontalsul/hope/backend/internal/analysis/intent"
	"github.com/esperancapontalsul/hope/backend/internal/model/contact"
)

// ChatKey is the classification for anything that should go to the
// conversation engine.
const ChatKey = "chat"

// Kind tells the caller how to answer a message.
type Kind string

const (
	KindChat   Kind = "chat"
	KindButton Kind = "button"
	KindVerse  Kind = "verse"
)

// Decision is the routing result for one message.
type Decision struct {
	Kind   Kind
	Key    string
	Button contact.Button
}

// Classifier runs a short single-answer prompt against the model.
type Classifier interface {
	Classify(ctx context.Context, instruction, text string) (string, error)
}

// ContactSource provides the current contact table.
type ContactSource interface {
	Contacts() contact.Table
}

// Router short-circuits requests for contact links before they reach the
// conversation engine.
type Router struct {
	classifier Classifier
	contacts   ContactSource
	logger     logrus.FieldLogger
}

// NewRouter creates a router. A nil classifier makes it rely on keyword
// heuristics only.
func NewRouter(classifier Classifier, contacts ContactSource, logger logrus.FieldLogger) *Router {
	return &Router{
		classifier: classifier,
		contacts:   contacts,
		logger:     logger.WithField("component", "intent"),
	}
}

// Route decides how message should be answered. Verse requests win, then
// contact intents; everything else is chat.
func (r *Router) Route(ctx context.Context, message string) Decision {
	if analysis.IsVerseRequest(message) {
		return Decision{Kind: KindVerse}
	}

	table := r.contacts.Contacts()
	key := r.classify(ctx, message, table)
	if key == ChatKey {
		return Decision{Kind: KindChat}
	}

	return Decision{
		Kind:   KindButton,
		Key:    key,
		Button: contact.ButtonFor(table[key]),
	}
}

// Classify returns the contact key message asks for, or ChatKey. Classifier
// failures always resolve to ChatKey.
func (r *Router) Classify(ctx context.Context, message string) string {
	return r.classify(ctx, message, r.contacts.Contacts())
}

func (r *Router) classify(ctx context.Context, message string, table contact.Table) string {
	if len(table) == 0 || strings.TrimSpace(message) == "" {
		return ChatKey
	}

	keys := table.Keys()
	if r.classifier == nil {
		decision := analysis.Analyze(message, keys)
		if decision.Kind == analysis.Contact {
			return decision.Key
		}
		return ChatKey
	}

	answer, err := r.classifier.Classify(ctx, classifierInstruction(keys), message)
	if err != nil {
		r.logger.WithError(err).Warn("intent classifier failed, falling back to chat")
		return ChatKey
	}

	key := parseAnswer(answer)
	if _, ok := table[key]; !ok {
		return ChatKey
	}
	return key
}

// parseAnswer takes the first word of the classifier output.
func parseAnswer(answer string) string {
	fields := strings.Fields(analysis.Normalize(answer))
	if len(fields) == 0 {
		return ChatKey
	}
	return strings.Trim(fields[0], `.,;:!?"'`)
}

func classifierInstruction(keys []string) string {
	return fmt.Sprintf(
		"Você classifica mensagens enviadas ao site de uma igreja. "+
			"Se a mensagem pedir explicitamente um link ou contato de um destes canais, responda somente com a chave correspondente: %s. "+
			"Em qualquer outro caso responda somente: %s. "+
			"Responda com uma única palavra, sem pontuação e sem explicações.",
		strings.Join(keys, ", "), ChatKey,
	)
}
